package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelforge/sentinelforge-backend/internal/models"
)

func dialStream(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	return raw
}

func TestStreamAckAndBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(ctx)
	go hub.Run()
	defer hub.Stop()

	handler := NewHandler(ctx, hub, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	defer srv.Close()

	conn := dialStream(t, srv)
	defer conn.Close()

	// Any client text frame is acknowledged.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	var ack map[string]string
	require.NoError(t, json.Unmarshal(readFrame(t, conn), &ack))
	assert.Equal(t, "ping", ack["type"])
	assert.Equal(t, "connected", ack["message"])

	// A recorded detection reaches the dialed subscriber.
	require.NoError(t, hub.BroadcastThreatDetected(models.ThreatDetectedMessage{
		Type:     "threat_detected",
		ThreatID: "t-1",
		Severity: "high",
		Pod:      "web-1",
	}))
	var got models.ThreatDetectedMessage
	require.NoError(t, json.Unmarshal(readFrame(t, conn), &got))
	assert.Equal(t, "threat_detected", got.Type)
	assert.Equal(t, "t-1", got.ThreatID)
	assert.Equal(t, "web-1", got.Pod)
}

func TestClientSendAfterCloseIsSafe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(ctx)

	c := newTestClient(ctx, hub, "a")
	require.True(t, c.trySend([]byte("queued")))

	c.closeSend()
	assert.False(t, c.trySend([]byte("late ack")))
	c.closeSend()
}
