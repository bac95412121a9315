// Package respond maps service errors and outcomes onto HTTP responses.
package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainagent "github.com/alanyang/agent-queue/internal/domain/agent"
	queuesvc "github.com/alanyang/agent-queue/internal/service/queue"
)

func Status(err error) int {
	switch {
	case domainagent.IsValidation(err):
		return http.StatusBadRequest
	case domainagent.IsNotFound(err):
		return http.StatusNotFound
	case queuesvc.IsRejection(err):
		return http.StatusConflict
	case domainagent.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Error(c *gin.Context, err error) {
	c.JSON(Status(err), gin.H{"error": err.Error()})
}

// Outcome writes a command result. Failed commands still carry the settled
// roster so the dashboard can redraw without a second request.
func Outcome(c *gin.Context, okStatus int, out queuesvc.Outcome, err error) {
	if err == nil {
		c.JSON(okStatus, out)
		return
	}
	code := Status(err)
	if out.Status == queuesvc.StatusReverted {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"error":   err.Error(),
		"outcome": out.Status,
		"roster":  out.Roster,
	})
}
