package ws_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wshandler "github.com/alanyang/agent-queue/internal/transport/ws"
)

func init() { gin.SetMode(gin.TestMode) }

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_SnapshotThenBroadcast(t *testing.T) {
	hub := wshandler.NewHub([]string{"*"})
	hub.SetSnapshot(func(greet func(any)) { greet(map[string]string{"type": "roster"}) })

	r := gin.New()
	hub.Register(r.Group("/ws"))
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dial(t, srv)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck

	_, first, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"roster"}`, string(first))

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	hub.Broadcast(context.Background(), map[string]string{"type": "error", "error": "boom"})

	_, second, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","error":"boom"}`, string(second))
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := wshandler.NewHub([]string{"https://painel.example.com"})
	r := gin.New()
	hub.Register(r.Group("/ws"))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := map[string][]string{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, 403, resp.StatusCode)
	}
}

func TestHub_SlowClientDoesNotStallBroadcast(t *testing.T) {
	hub := wshandler.NewHub(nil)
	r := gin.New()
	hub.Register(r.Group("/ws"))
	srv := httptest.NewServer(r)
	defer srv.Close()

	// Connected but never reads.
	dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	payload := map[string]string{"roster": strings.Repeat("x", 256<<10)}
	start := time.Now()
	for range 200 {
		hub.Broadcast(context.Background(), payload)
	}
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHub_GreetingPrecedesBroadcasts(t *testing.T) {
	hub := wshandler.NewHub(nil)

	// greet runs under the caller's lock; broadcasts wait for it.
	var mu sync.Mutex
	hub.SetSnapshot(func(greet func(any)) {
		mu.Lock()
		defer mu.Unlock()
		greet(map[string]int{"seq": 0})
	})

	r := gin.New()
	hub.Register(r.Group("/ws"))
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	for i := 1; i <= 3; i++ {
		mu.Lock()
		hub.Broadcast(context.Background(), map[string]int{"seq": i})
		mu.Unlock()
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	for want := 0; want <= 3; want++ {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, fmt.Sprintf(`{"seq":%d}`, want), string(data))
	}
}
