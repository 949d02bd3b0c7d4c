// Package inbound interprets classifier replies.
package inbound

import (
	"encoding/json"
	"errors"
	"facestream/internal/display"
	"facestream/internal/dto"
	"facestream/internal/logger"
	"facestream/internal/metrics"
	"facestream/internal/status"
	"fmt"
	"math"
)

// Inbound message kinds, as counted in metrics.
const (
	KindClassification = "classification"
	KindRemoteError    = "remote_error"
	KindMalformed      = "malformed"
)

var ErrMalformed = errors.New("malformed classifier message")

type Handler struct {
	display  *display.State
	reporter status.Reporter
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewHandler(state *display.State, reporter status.Reporter, log *logger.Logger, m *metrics.Metrics) *Handler {
	if reporter == nil {
		reporter = status.Multi{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{display: state, reporter: reporter, logger: log, metrics: m}
}

// HandleMessage applies one reply. Malformed replies are logged and dropped;
// error replies become a transient status and leave the label alone.
func (h *Handler) HandleMessage(data []byte) {
	msg, err := Parse(data)
	if err != nil {
		h.metrics.IncInbound(KindMalformed)
		h.logger.Warning("Dropping classifier message: %v", err)
		return
	}

	if msg.Error != nil {
		h.metrics.IncInbound(KindRemoteError)
		h.reporter.Report(status.Status{Kind: status.KindRemoteError, Message: *msg.Error})
		return
	}

	h.metrics.IncInbound(KindClassification)
	h.display.Set(FormatLabel(*msg.Emotion, *msg.Confidence))
}

// Parse decodes a reply and checks it is either an error or a complete
// classification with a confidence in [0,1].
func Parse(data []byte) (dto.InboundMessage, error) {
	var msg dto.InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return dto.InboundMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Error != nil {
		return msg, nil
	}
	if msg.Emotion == nil || *msg.Emotion == "" {
		return dto.InboundMessage{}, fmt.Errorf("%w: missing emotion", ErrMalformed)
	}
	if msg.Confidence == nil {
		return dto.InboundMessage{}, fmt.Errorf("%w: missing confidence", ErrMalformed)
	}
	c := *msg.Confidence
	if math.IsNaN(c) || c < 0 || c > 1 {
		return dto.InboundMessage{}, fmt.Errorf("%w: confidence %v out of range", ErrMalformed, c)
	}
	return msg, nil
}

// FormatLabel renders "emotion (confidence%)" with one decimal place.
func FormatLabel(emotion string, confidence float64) string {
	return fmt.Sprintf("%s (%.1f%%)", emotion, confidence*100)
}
