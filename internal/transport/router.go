package transport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	authsvc "github.com/alanyang/agent-queue/internal/service/auth"
	queuesvc "github.com/alanyang/agent-queue/internal/service/queue"

	agenthandler "github.com/alanyang/agent-queue/internal/transport/agent"
	authhandler "github.com/alanyang/agent-queue/internal/transport/auth"
	queuehandler "github.com/alanyang/agent-queue/internal/transport/queue"
	wshandler "github.com/alanyang/agent-queue/internal/transport/ws"
)

type RouterDeps struct {
	Queue          *queuesvc.Coordinator
	Auth           *authsvc.Service
	Hub            *wshandler.Hub
	MCP            http.Handler
	Cache          ResponseCache
	IdempotencyTTL time.Duration
	AllowedOrigins []string
}

func NewRouter(d RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(CORSMiddleware(d.AllowedOrigins))

	api := r.Group("/api")
	authhandler.Register(api.Group("/auth"), d.Auth)
	d.Hub.Register(api.Group("/ws", UpgradeAuthMiddleware(d.Auth)))

	protected := api.Group("", AuthMiddleware(d.Auth), IdempotencyMiddleware(d.Cache, d.IdempotencyTTL))
	agenthandler.Register(protected.Group("/agents"), d.Queue, RequireAdmin())
	queuehandler.Register(protected.Group("/queue"), d.Queue)

	if d.MCP != nil {
		r.Any("/mcp", AuthMiddleware(d.Auth), gin.WrapH(d.MCP))
	}
	return r
}
