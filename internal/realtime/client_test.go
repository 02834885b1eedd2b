package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer runs a Client per connection that answers every inbound event
// with an event of the same name.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, RoleVisitor, 8)
		client.Run(r.Context(), func(ctx context.Context, env Envelope) {
			var p SessionPayload
			if err := env.Decode(&p); err != nil {
				client.Send(NewError(env.Event, err.Error()))
				return
			}
			client.Send(Event{Name: env.Event, Data: p})
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn) map[string]any {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var ev map[string]any
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestClient_RoundTripPreservesOrder(t *testing.T) {
	conn, ctx := dial(t, echoServer(t))

	for i := 0; i < 5; i++ {
		msg := `{"event":"join-session","data":{"sessionId":"s` + string(rune('0'+i)) + `"}}`
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(msg)))
	}

	for i := 0; i < 5; i++ {
		ev := readEvent(t, ctx, conn)
		assert.Equal(t, EventJoinSession, ev["event"])
		data := ev["data"].(map[string]any)
		assert.Equal(t, "s"+string(rune('0'+i)), data["sessionId"])
	}
}

func TestClient_InvalidEnvelope(t *testing.T) {
	conn, ctx := dial(t, echoServer(t))

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	ev := readEvent(t, ctx, conn)
	assert.Equal(t, EventError, ev["event"])

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"event":"join-session"}`)))
	ev = readEvent(t, ctx, conn)
	assert.Equal(t, EventError, ev["event"])
	assert.Equal(t, EventJoinSession, ev["data"].(map[string]any)["event"])
}

func TestClient_SendAfterClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, RoleOperator, 1)
		assert.Equal(t, RoleOperator, client.Role())
		assert.NotEmpty(t, client.ID())

		assert.True(t, client.Send(Event{Name: EventChatListUpdate}))
		assert.False(t, client.Send(Event{Name: EventChatListUpdate}), "queue of one is full")

		client.Close(websocket.StatusNormalClosure, "done")
		assert.False(t, client.Send(Event{Name: EventChatListUpdate}))
	}))
	defer server.Close()

	conn, ctx := dial(t, server)
	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}
