package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	authsvc "github.com/alanyang/agent-queue/internal/service/auth"
)

const (
	ContextClaims     = "claims"
	IdempotencyHeader = "Idempotency-Key"
	AccessTokenParam  = "access_token"
)

// noisyPaths are high-frequency read paths logged at Debug to keep Info clean.
var noisyPaths = map[string]bool{
	"/api/agents": true,
	"/api/ws":     true,
}

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Request.Method == "OPTIONS" {
			return
		}
		level := slog.LevelInfo
		if c.Request.Method == "GET" && noisyPaths[c.Request.URL.Path] {
			level = slog.LevelDebug
		}

		slog.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func CORSMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+IdempotencyHeader)
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// ResponseCache stores replayable responses. memory.Cache is the implementation.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type cachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// keyedMutex hands out one mutex per key and forgets it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// IdempotencyMiddleware replays the first response of a mutating request for
// ttl when the client repeats its Idempotency-Key. Requests sharing a key are
// serialized so a double click never runs the command twice.
func IdempotencyMiddleware(cache ResponseCache, ttl time.Duration) gin.HandlerFunc {
	inflight := &keyedMutex{locks: make(map[string]*refMutex)}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		cacheKey := c.Request.Method + " " + c.Request.URL.Path + " " + key
		ctx := c.Request.Context()

		unlock := inflight.lock(cacheKey)
		defer unlock()

		if raw, err := cache.Get(ctx, cacheKey); err == nil {
			var cached cachedResponse
			if err := json.Unmarshal(raw, &cached); err == nil {
				c.Header("Idempotent-Replayed", "true")
				c.Data(cached.Status, "application/json; charset=utf-8", cached.Body)
				c.Abort()
				return
			}
		}

		rec := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		if rec.Status() >= http.StatusInternalServerError {
			return
		}
		raw, err := json.Marshal(cachedResponse{Status: rec.Status(), Body: rec.body.Bytes()})
		if err != nil {
			return
		}
		if err := cache.Set(ctx, cacheKey, raw, ttl); err != nil {
			slog.WarnContext(ctx, "idempotency cache write failed", "error", err)
		}
	}
}

// AuthMiddleware requires a valid bearer token. With auth disabled every
// request passes as an admin.
func AuthMiddleware(svc *authsvc.Service) gin.HandlerFunc {
	return authenticate(svc, bearerToken)
}

// UpgradeAuthMiddleware also accepts the token in the access_token query
// parameter, since browsers cannot set headers on a WebSocket upgrade.
func UpgradeAuthMiddleware(svc *authsvc.Service) gin.HandlerFunc {
	return authenticate(svc, func(c *gin.Context) string {
		if token := bearerToken(c); token != "" {
			return token
		}
		return c.Query(AccessTokenParam)
	})
}

func bearerToken(c *gin.Context) string {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return token
}

func authenticate(svc *authsvc.Service, tokenOf func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !svc.Enabled() {
			c.Set(ContextClaims, &authsvc.Claims{Email: "anonymous", Admin: true})
			c.Next()
			return
		}
		token := tokenOf(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := svc.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, _ := c.Get(ContextClaims)
		claims, ok := v.(*authsvc.Claims)
		if !ok || !claims.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}
