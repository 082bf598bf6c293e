package notify

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, h *Hub, topic string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.SubscriberCount(topic) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("topic %s never reached %d subscribers", topic, want)
}

func TestHubDeliversSubscribedTopics(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := dialHub(t, h)

	err := conn.WriteJSON(clientMessage{Action: "subscribe", Topics: []string{TopicAppointmentCreated}})
	require.NoError(t, err)
	waitForSubscribers(t, h, TopicAppointmentCreated, 1)

	payload := map[string]string{"appointment_id": "a-1"}
	require.NoError(t, h.Publish(context.Background(), TopicAppointmentCreated, payload))

	// An event on a topic the client never asked for must not arrive.
	require.NoError(t, h.Publish(context.Background(), TopicFollowUpDue, payload))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, TopicAppointmentCreated, ev.Topic)

	var data map[string]string
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	assert.Equal(t, "a-1", data["appointment_id"])

	// Nothing else is queued.
	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	assert.Error(t, conn.ReadJSON(&ev), "unsubscribed topic must not be delivered")
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := dialHub(t, h)

	require.NoError(t, conn.WriteJSON(clientMessage{Action: "subscribe", Topics: []string{TopicAppointmentStatus}}))
	waitForSubscribers(t, h, TopicAppointmentStatus, 1)

	require.NoError(t, conn.WriteJSON(clientMessage{Action: "unsubscribe", Topics: []string{TopicAppointmentStatus}}))
	waitForSubscribers(t, h, TopicAppointmentStatus, 0)
}

func TestHubDropsClientOnDisconnect(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := dialHub(t, h)

	require.NoError(t, conn.WriteJSON(clientMessage{Action: "subscribe", Topics: []string{TopicAppointmentCreated}}))
	waitForSubscribers(t, h, TopicAppointmentCreated, 1)

	require.NoError(t, conn.Close())
	waitForSubscribers(t, h, TopicAppointmentCreated, 0)
}

func TestHubPublishWithNoSubscribers(t *testing.T) {
	h := NewHub(zerolog.Nop())
	assert.NoError(t, h.Publish(context.Background(), TopicAppointmentCreated, map[string]string{"k": "v"}))
}
