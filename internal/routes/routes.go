package routes

import (
	"facestream/internal/display"
	"facestream/internal/handler"
	"facestream/internal/logger"
	"facestream/internal/metrics"
	"facestream/internal/viewer"
	"net/http"
)

// Deps is everything the HTTP surface reads from.
type Deps struct {
	SessionID string
	Hub       *viewer.Hub
	Link      handler.LinkInspector
	Display   *display.State
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

// SetupRoutes registers the viewer socket, the status API, metrics and the
// log endpoints.
func SetupRoutes(deps Deps) http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(deps.Hub, deps.Logger))
	mux.HandleFunc("/api/status", handler.StatusHandler(deps.SessionID, deps.Link, deps.Display, deps.Hub, deps.Logger))
	mux.Handle("/metrics", deps.Metrics.Handler())

	// Log endpoints
	for _, name := range []string{"trace", "info", "warning", "error"} {
		file := name + ".log"
		mux.HandleFunc("/logs/"+name, handler.ShowLogsHandler(deps.Logger, file))
		mux.HandleFunc("/logs/"+name+"/clear", handler.ClearLogsHandler(deps.Logger, file))
	}

	return mux
}
