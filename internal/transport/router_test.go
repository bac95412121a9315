package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alanyang/agent-queue/internal/adapter/memory"
	authsvc "github.com/alanyang/agent-queue/internal/service/auth"
	wshandler "github.com/alanyang/agent-queue/internal/transport/ws"
)

const toolsCall = `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"call_next","arguments":{"client_name":"Roberto"}}}`

type routerFixture struct {
	srv      *httptest.Server
	mcpCalls *atomic.Int32
	token    string
}

func newSecuredRouter(t *testing.T) routerFixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("123"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := authsvc.NewService("secret", time.Hour, map[string]string{"ana@call.com": string(hash)}, nil)
	tok, err := auth.Login("ana@call.com", "123")
	require.NoError(t, err)

	calls := &atomic.Int32{}
	mcp := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	r := NewRouter(RouterDeps{
		Auth:           auth,
		Hub:            wshandler.NewHub([]string{"*"}),
		MCP:            mcp,
		Cache:          memory.NewCache(),
		IdempotencyTTL: time.Minute,
		AllowedOrigins: []string{"*"},
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return routerFixture{srv: srv, mcpCalls: calls, token: tok.Token}
}

func TestRouter_MCPRequiresToken(t *testing.T) {
	f := newSecuredRouter(t)

	post := func(token string) int {
		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/mcp", strings.NewReader(toolsCall))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, post(""))
	assert.Equal(t, http.StatusUnauthorized, post("forged"))
	assert.Equal(t, int32(0), f.mcpCalls.Load())

	assert.Equal(t, http.StatusOK, post(f.token))
	assert.Equal(t, int32(1), f.mcpCalls.Load())
}

func TestRouter_WebSocketRequiresToken(t *testing.T) {
	f := newSecuredRouter(t)
	base := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/ws"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"?"+AccessTokenParam+"=forged", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"?"+AccessTokenParam+"="+f.token, nil)
	require.NoError(t, err)
	conn.Close()

	header := http.Header{"Authorization": {"Bearer " + f.token}}
	conn, _, err = websocket.DefaultDialer.Dial(base, header)
	require.NoError(t, err)
	conn.Close()
}
