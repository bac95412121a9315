package queue

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainagent "github.com/alanyang/agent-queue/internal/domain/agent"
	queuesvc "github.com/alanyang/agent-queue/internal/service/queue"
	"github.com/alanyang/agent-queue/internal/transport/respond"
)

func Register(rg *gin.RouterGroup, svc *queuesvc.Coordinator) {
	rg.POST("/next", callNext(svc))
	rg.POST("/reorder", reorder(svc))
	rg.POST("/refresh", refresh(svc))
}

func callNext(svc *queuesvc.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var s domainagent.SessionStart
		if err := c.ShouldBindJSON(&s); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		out, err := svc.CallNext(c.Request.Context(), s)
		respond.Outcome(c, http.StatusOK, out, err)
	}
}

type reorderReq struct {
	ActiveID int64 `json:"active_id" binding:"required"`
	OverID   int64 `json:"over_id" binding:"required"`
}

func reorder(svc *queuesvc.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reorderReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		out, err := svc.Reorder(c.Request.Context(), req.ActiveID, req.OverID)
		respond.Outcome(c, http.StatusOK, out, err)
	}
}

func refresh(svc *queuesvc.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		roster, err := svc.Refresh(c.Request.Context())
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, roster)
	}
}
