// Command stubclassifier is a local stand-in for the emotion classifier. It
// answers every snapshot with a rotating label so the streamer can be run
// without the real service.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"facestream/internal/dto"
	"flag"
	"image/jpeg"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var emotions = []string{"neutral", "happy", "surprise", "sad"}

type reply struct {
	Emotion    string  `json:"emotion,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

var received atomic.Int64

// Replies the real classifier sends for bad input.
const (
	errInvalidJSON  = "invalid json"
	errMissingImage = "missing image field"
	errInvalidImage = "invalid image data"
)

func classify(data []byte) reply {
	var msg dto.OutboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return reply{Error: errInvalidJSON}
	}
	if msg.Image == "" {
		return reply{Error: errMissingImage}
	}
	img, err := base64.StdEncoding.DecodeString(msg.Image)
	if err != nil {
		return reply{Error: errInvalidImage}
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return reply{Error: errInvalidImage}
	}

	n := received.Add(1)
	log.Printf("Snapshot %d: %dx%d, %d bytes", n, cfg.Width, cfg.Height, len(img))
	return reply{Emotion: emotions[int(n)%len(emotions)], Confidence: 0.5}
}

func wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade error: %v", err)
		return
	}
	defer conn.Close()
	log.Printf("Streamer connected (session %s)", r.Header.Get("X-Session-Id"))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Streamer disconnected: %v", err)
			return
		}
		if err := conn.WriteJSON(classify(data)); err != nil {
			log.Printf("Error sending reply: %v", err)
			return
		}
	}
}

func main() {
	addr := flag.String("addr", "0.0.0.0:8000", "listen address")
	flag.Parse()

	http.HandleFunc("/ws/emotion", wsHandler)

	log.Printf("Stub classifier running on ws://%s/ws/emotion", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}
