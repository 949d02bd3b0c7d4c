package dto

import (
	"encoding/base64"
	"encoding/json"
)

// OutboundMessage carries one face snapshot to the classifier.
type OutboundMessage struct {
	Image string `json:"image"`
}

// NewOutboundMessage base64-encodes a JPEG payload.
func NewOutboundMessage(jpeg []byte) OutboundMessage {
	return OutboundMessage{Image: base64.StdEncoding.EncodeToString(jpeg)}
}

func (m OutboundMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}
