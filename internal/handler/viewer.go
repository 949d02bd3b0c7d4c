package handler

import (
	"facestream/internal/logger"
	"facestream/internal/viewer"
	"net/http"

	"github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler upgrades a viewer connection and registers it with the
// hub. Viewers only listen; anything they send is discarded.
func ViewWebsocketHandler(hub *viewer.Hub, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		client := hub.Register(connection)
		defer hub.Unregister(client)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warning("Viewer %s disconnected with error: %v", client.ID, err)
				}
				return
			}
		}
	}
}
