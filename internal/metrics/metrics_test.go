package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.IncSent()
	m.IncDropped(DropRateLimited)
	m.IncDropped(DropRateLimited)
	m.IncInbound("emotion")
	m.SetLinkState(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesSent))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesDropped.WithLabelValues(DropRateLimited)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InboundMessages.WithLabelValues("emotion")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LinkState))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncSent()
		m.IncDropped(DropNoRegion)
		m.IncInbound("malformed")
		m.IncReconnects()
		m.SetLinkState(1)
		m.SetViewers(3)
		m.ObserveExtract(0.001)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.IncReconnects()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "facestream_link_reconnects_total 1")
}
