package dto

import "time"

const (
	ViewerMessageFrame   = "frame"
	ViewerMessageStatus  = "status"
	ViewerMessageWelcome = "welcome"
)

// ViewerMessage is pushed to browser viewers over /api/view.
type ViewerMessage struct {
	Type      string    `json:"type"`
	Image     string    `json:"image,omitempty"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	ClientID  string    `json:"clientId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusSnapshot is the /api/status response body.
type StatusSnapshot struct {
	SessionID   string `json:"sessionId"`
	State       string `json:"state"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"maxAttempts"`
	LastReason  string `json:"lastReason,omitempty"`
	Label       string `json:"label,omitempty"`
	Viewers     int    `json:"viewers"`
}
