package viewer

import (
	"context"
	"encoding/json"
	"facestream/internal/dto"
	"facestream/internal/logger"
	"facestream/internal/metrics"
	"facestream/internal/status"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func startHub(t *testing.T) (*Hub, *metrics.Metrics, string) {
	t.Helper()
	m := metrics.New()
	hub := NewHub("session-1", logger.Discard(), m)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := hub.Register(conn)
		defer hub.Unregister(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return hub, m, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dialViewer(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) dto.ViewerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(waitFor))
	var msg dto.ViewerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_WelcomesViewer(t *testing.T) {
	hub, m, url := startHub(t)
	conn := dialViewer(t, url)

	msg := readMessage(t, conn)

	assert.Equal(t, dto.ViewerMessageWelcome, msg.Type)
	assert.Equal(t, "session-1", msg.SessionID)
	assert.NotEmpty(t, msg.ClientID)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, waitFor, tick)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ViewerClients))
}

func TestHub_BroadcastsStatus(t *testing.T) {
	hub, _, url := startHub(t)
	conn := dialViewer(t, url)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, waitFor, tick)

	hub.Report(status.Status{Kind: status.KindReconnecting, Attempt: 2, MaxAttempts: 5, Delay: 2 * time.Second})

	msg := readMessage(t, conn)
	assert.Equal(t, dto.ViewerMessageStatus, msg.Type)
	assert.Equal(t, "reconnecting", msg.Status)
	assert.Equal(t, "Connection lost, retrying in 2.0s (attempt 2/5)", msg.Message)
}

func TestHub_LateViewerGetsLastStatus(t *testing.T) {
	hub, _, url := startHub(t)
	hub.Report(status.Status{Kind: status.KindConnected})

	conn := dialViewer(t, url)
	readMessage(t, conn)
	msg := readMessage(t, conn)

	assert.Equal(t, dto.ViewerMessageStatus, msg.Type)
	assert.Equal(t, "connected", msg.Status)
}

func TestHub_ShowsFramesOnlyToViewers(t *testing.T) {
	hub, _, url := startHub(t)
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	// No viewers: nothing is queued.
	hub.Show(frame)
	assert.Empty(t, hub.broadcast)

	conn := dialViewer(t, url)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, waitFor, tick)

	hub.Show(frame)

	msg := readMessage(t, conn)
	assert.Equal(t, dto.ViewerMessageFrame, msg.Type)
	assert.NotEmpty(t, msg.Image)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHub("s", logger.Discard(), nil)

	accepted := 0
	for i := 0; i < broadcastQueue*2; i++ {
		if hub.Broadcast([]byte(`{}`)) {
			accepted++
		}
	}

	assert.Equal(t, broadcastQueue, accepted)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, _, url := startHub(t)
	conn := dialViewer(t, url)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, waitFor, tick)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, waitFor, tick)
}

func TestHub_StatusMessageIsJSON(t *testing.T) {
	hub := NewHub("s", logger.Discard(), nil)

	hub.Report(status.Status{Kind: status.KindFatal, Message: "camera unavailable"})

	data := <-hub.broadcast
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "fatal", msg["status"])
	assert.Equal(t, "Fatal: camera unavailable", msg["message"])
	require.NotNil(t, hub.LastStatus())
}
