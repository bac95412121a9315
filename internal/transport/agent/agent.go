package agent

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainagent "github.com/alanyang/agent-queue/internal/domain/agent"
	domainqueue "github.com/alanyang/agent-queue/internal/domain/queue"
	queuesvc "github.com/alanyang/agent-queue/internal/service/queue"
	"github.com/alanyang/agent-queue/internal/transport/respond"
)

// Register mounts the roster routes. admin guards create, edit and delete.
func Register(rg *gin.RouterGroup, svc *queuesvc.Coordinator, admin gin.HandlerFunc) {
	rg.GET("", listAgents(svc))
	rg.GET("/:id", getAgent(svc))
	rg.POST("", admin, createAgent(svc))
	rg.PATCH("/:id", admin, editAgent(svc))
	rg.DELETE("/:id", admin, deleteAgent(svc))
	rg.POST("/:id/toggle", toggleAvailability(svc))
	rg.POST("/:id/finish", finishSession(svc))
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func listAgents(svc *queuesvc.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts := domainqueue.ViewOptions{Sort: domainqueue.SortManual, Search: c.Query("q")}

		if v := c.Query("sort"); v != "" {
			opts.Sort = domainqueue.SortOption(v)
			if !opts.Sort.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sort"})
				return
			}
		}
		if v := c.Query("available"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid available"})
				return
			}
			opts.AvailableOnly = b
		}

		c.JSON(http.StatusOK, svc.View(opts))
	}
}

func getAgent(svc *queuesvc.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		a, err := svc.Get(id)
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func createAgent(svc *queuesvc.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f domainagent.Fields
		if err := c.ShouldBindJSON(&f); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		out, err := svc.Add(c.Request.Context(), f)
		respond.Outcome(c, http.StatusCreated, out, err)
	}
}

func editAgent(svc *queuesvc.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var f domainagent.Fields
		if err := c.ShouldBindJSON(&f); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		out, err := svc.Edit(c.Request.Context(), id, f)
		respond.Outcome(c, http.StatusOK, out, err)
	}
}

func deleteAgent(svc *queuesvc.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		out, err := svc.Delete(c.Request.Context(), id)
		respond.Outcome(c, http.StatusOK, out, err)
	}
}

// toggleAvailability takes an optional session body; with one, turning the
// agent off starts a call instead of pausing. The body may arrive chunked, so
// an empty body is detected by reading it, not by Content-Length.
func toggleAvailability(svc *queuesvc.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var session *domainagent.SessionStart
		if body := c.Request.Body; body != nil && body != http.NoBody {
			var s domainagent.SessionStart
			switch err := c.ShouldBindJSON(&s); {
			case err == nil:
				session = &s
			case !errors.Is(err, io.EOF):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		out, err := svc.Toggle(c.Request.Context(), id, session)
		respond.Outcome(c, http.StatusOK, out, err)
	}
}

func finishSession(svc *queuesvc.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		out, err := svc.Finish(c.Request.Context(), id)
		respond.Outcome(c, http.StatusOK, out, err)
	}
}
