package status

import (
	"bytes"
	"facestream/internal/logger"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Text(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{Status{Kind: KindConnecting}, "Connecting to classifier..."},
		{Status{Kind: KindConnected}, "Connected"},
		{Status{Kind: KindReconnecting, Attempt: 2, MaxAttempts: 5, Delay: 2 * time.Second}, "Connection lost, retrying in 2.0s (attempt 2/5)"},
		{Status{Kind: KindFatal, Message: "gave up"}, "Fatal: gave up"},
		{Status{Kind: KindRemoteError, Message: "invalid image data"}, "Classifier error: invalid image data"},
		{Status{Kind: KindError, Message: "EOF"}, "Connection error: EOF"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.status.Text(), tt.status.Kind.String())
	}
}

func TestMulti_ReportsToAllInOrder(t *testing.T) {
	var seen []string
	m := Multi{
		ReporterFunc(func(s Status) { seen = append(seen, "a:"+s.Kind.String()) }),
		nil,
		ReporterFunc(func(s Status) { seen = append(seen, "b:"+s.Kind.String()) }),
	}

	m.Report(Status{Kind: KindConnected})

	assert.Equal(t, []string{"a:connected", "b:connected"}, seen)
}

func TestLogReporter_Levels(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewLogReporter(logger.New(&out, &errOut, logger.LevelInfo))

	r.Report(Status{Kind: KindConnected})
	r.Report(Status{Kind: KindFatal, Message: "retries exhausted"})

	assert.Contains(t, out.String(), "INFO")
	assert.Contains(t, out.String(), "Connected")
	assert.Contains(t, errOut.String(), "retries exhausted")
	assert.True(t, Status{Kind: KindFatal}.Fatal())
}
