package handler

import (
	"encoding/json"
	"facestream/internal/display"
	"facestream/internal/dto"
	"facestream/internal/link"
	"facestream/internal/logger"
	"net/http"
)

// LinkInspector exposes the link state for reporting. *link.Machine satisfies it.
type LinkInspector interface {
	Snapshot() link.Snapshot
	Policy() link.Policy
}

// ViewerCounter is satisfied by *viewer.Hub.
type ViewerCounter interface {
	ClientCount() int
}

// StatusHandler reports the session's link state as JSON.
func StatusHandler(sessionID string, inspector LinkInspector, state *display.State, viewers ViewerCounter, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		snap := inspector.Snapshot()
		resp := dto.StatusSnapshot{
			SessionID:   sessionID,
			State:       snap.State.String(),
			Attempt:     snap.Attempt,
			MaxAttempts: inspector.Policy().MaxAttempts,
			LastReason:  snap.LastReason,
		}
		if label, ok := state.Label(); ok {
			resp.Label = label
		}
		if viewers != nil {
			resp.Viewers = viewers.ClientCount()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("Failed to encode status: %v", err)
		}
	}
}
