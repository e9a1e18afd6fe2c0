package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gift-backend/internal/interfaces"
	"gift-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestWebSocketPushDeliversToSubscribersOfTheGift(t *testing.T) {
	push := NewWebSocketPushService(testLogger())
	defer push.Stop()

	hash := CommitmentHash("c1")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		push.HandleWebSocket(w, r, r.URL.Query().Get("commitment"))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?commitment="+hash, nil)
	require.NoError(t, err)
	defer conn.Close()

	other, _, err := websocket.DefaultDialer.Dial(wsURL+"?commitment="+CommitmentHash("c2"), nil)
	require.NoError(t, err)
	defer other.Close()

	require.Eventually(t, func() bool { return push.ActiveConnections() == 2 }, 2*time.Second, 10*time.Millisecond)

	push.PushLifecycleEvent(&interfaces.LifecycleEvent{
		EventID:        "evt-1",
		CommitmentHash: hash,
		Status:         models.GiftStatusDelivered,
		Timestamp:      time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC).Unix(),
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type           string         `json:"type"`
		MessageID      string         `json:"message_id"`
		CommitmentHash string         `json:"commitment_hash"`
		Data           GiftStatusData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	require.Equal(t, "gift_status", msg.Type)
	require.Equal(t, "evt-1", msg.MessageID)
	require.Equal(t, hash, msg.CommitmentHash)
	require.Equal(t, models.GiftStatusDelivered, msg.Data.Status)
	require.Equal(t, 100, msg.Data.Progress)

	// the other gift's subscriber hears nothing
	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = other.ReadMessage()
	require.Error(t, err)

	conn.Close()
	require.Eventually(t, func() bool { return push.ActiveConnections() < 2 }, 2*time.Second, 10*time.Millisecond)
}
