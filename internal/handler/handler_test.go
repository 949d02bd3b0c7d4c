package handler

import (
	"encoding/json"
	"facestream/internal/config"
	"facestream/internal/display"
	"facestream/internal/dto"
	"facestream/internal/link"
	"facestream/internal/logger"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	snap link.Snapshot
}

func (f fakeInspector) Snapshot() link.Snapshot { return f.snap }
func (f fakeInspector) Policy() link.Policy { return link.DefaultPolicy }

type fixedCount int

func (c fixedCount) ClientCount() int { return int(c) }

func TestStatusHandler(t *testing.T) {
	state := display.New()
	state.Set("happy (75.0%)")
	inspector := fakeInspector{snap: link.Snapshot{
		State:      link.StateReconnecting,
		Attempt:    2,
		Delay:      2 * time.Second,
		LastReason: "read: EOF",
	}}
	h := StatusHandler("abc", inspector, state, fixedCount(3), logger.Discard())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got dto.StatusSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, dto.StatusSnapshot{
		SessionID:   "abc",
		State:       "reconnecting",
		Attempt:     2,
		MaxAttempts: link.DefaultPolicy.MaxAttempts,
		LastReason:  "read: EOF",
		Label:       "happy (75.0%)",
		Viewers:     3,
	}, got)
}

func TestStatusHandler_RejectsPost(t *testing.T) {
	h := StatusHandler("abc", fakeInspector{}, display.New(), nil, logger.Discard())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLogsHandlers(t *testing.T) {
	dir := t.TempDir()
	l := logger.NewLogger(&config.Config{LogDirectory: dir, LogLevel: "info"})
	l.Warning("link dropped")

	show := ShowLogsHandler(l, "warning.log")
	rec := httptest.NewRecorder()
	show(rec, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "link dropped")
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	clearLogs := ClearLogsHandler(l, "warning.log")
	rec = httptest.NewRecorder()
	clearLogs(rec, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	data, err := os.ReadFile(filepath.Join(dir, "warning.log"))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestShowLogsHandler_MissingFile(t *testing.T) {
	l := logger.NewLogger(&config.Config{LogDirectory: t.TempDir(), LogLevel: "info"})

	rec := httptest.NewRecorder()
	ShowLogsHandler(l, "missing.log")(rec, httptest.NewRequest(http.MethodGet, "/logs/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShowLogsHandler_WriterOnlyLogger(t *testing.T) {
	rec := httptest.NewRecorder()
	ShowLogsHandler(logger.Discard(), "info.log")(rec, httptest.NewRequest(http.MethodGet, "/logs/info", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearLogsHandler_RejectsGet(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearLogsHandler(logger.Discard(), "info.log")(rec, httptest.NewRequest(http.MethodGet, "/logs/info/clear", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
