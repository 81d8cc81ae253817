package chat

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
	"go.uber.org/goleak"
)

// leakOptions ignores the client transport, which winds down on its own.
func leakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	}
}

func startHubServer(t *testing.T, hub *Hub) (*httptest.Server, <-chan struct{}) {
	t.Helper()
	done := make(chan struct{}, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() { done <- struct{}{} }()
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		_ = hub.Serve(r.Context(), conn)
	}))
	return srv, done
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Count() == n }, 5*time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastAndAck(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions()...)

	hub := NewHub(DefaultHubConfig(), nil, nil)
	srv, done := startHubServer(t, hub)
	defer srv.Close()

	a := dialHub(t, srv)
	b := dialHub(t, srv)
	waitForClients(t, hub, 2)

	view := View{ID: 1, Username: "ada", Content: "hello"}
	hub.Broadcast(Envelope{Type: EventMessage, Message: &view})

	for _, conn := range []*websocket.Conn{a, b} {
		env := readEnvelope(t, conn)
		assert.Equal(t, EventMessage, env.Type)
		require.NotNil(t, env.Message)
		assert.Equal(t, "hello", env.Message.Content)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Write(ctx, websocket.MessageText, []byte("ping")))
	ack := readEnvelope(t, a)
	assert.Equal(t, EventAck, ack.Type)
	assert.Equal(t, "ping", ack.Echo)

	require.NoError(t, a.Close(websocket.StatusNormalClosure, ""))
	require.NoError(t, b.Close(websocket.StatusNormalClosure, ""))
	<-done
	<-done
	waitForClients(t, hub, 0)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions()...)

	hub := NewHub(DefaultHubConfig(), nil, nil)
	srv, done := startHubServer(t, hub)
	defer srv.Close()

	conn := dialHub(t, srv)
	waitForClients(t, hub, 1)

	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	<-done

	assert.ErrorIs(t, hub.Serve(context.Background(), nil), ErrHubClosed)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := NewHub(HubConfig{SendBuffer: 1}, nil, nil)

	slow := newClient(nil, 1)
	fast := newClient(nil, 4)
	require.True(t, hub.register(slow))
	require.True(t, hub.register(fast))

	hub.Broadcast(Envelope{Type: EventMessagesCleared})
	hub.Broadcast(Envelope{Type: EventMessagesCleared})

	assert.Equal(t, 1, hub.Count())
	select {
	case <-slow.kicked:
		assert.Equal(t, websocket.StatusPolicyViolation, slow.kickStatus)
	default:
		t.Fatal("slow client was not kicked")
	}
	assert.Len(t, fast.send, 2)
}
