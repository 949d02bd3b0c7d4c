package dto

// InboundMessage is a classifier reply: either a classification or an error.
// Pointers distinguish a missing field from a zero value.
type InboundMessage struct {
	Emotion    *string  `json:"emotion,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Error      *string  `json:"error,omitempty"`
}
