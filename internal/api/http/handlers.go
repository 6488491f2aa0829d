// Package http implements the synchronous REST surface: revise, session
// inspection, and service health.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forgeworks/appforge/internal/domain/blueprint"
	"github.com/forgeworks/appforge/internal/domain/build"
	"github.com/forgeworks/appforge/internal/domain/session"
	"github.com/forgeworks/appforge/internal/infrastructure/logging"
	"github.com/forgeworks/appforge/internal/infrastructure/monitoring"
	"github.com/forgeworks/appforge/internal/shared/validate"
)

// Handlers carries the dependencies of the REST surface.
type Handlers struct {
	store   *session.Store
	orch    *build.Orchestrator
	metrics *monitoring.Metrics
	log     *logging.Logger
	body    *validate.JSONSizeValidator
}

// NewHandlers creates the REST handler set.
func NewHandlers(store *session.Store, orch *build.Orchestrator, metrics *monitoring.Metrics, log *logging.Logger) *Handlers {
	return &Handlers{
		store:   store,
		orch:    orch,
		metrics: metrics,
		log:     log,
		body:    validate.DefaultJSONValidator(),
	}
}

type reviseRequest struct {
	SessionID string          `json:"session_id"`
	Delta     json.RawMessage `json:"delta"`
	Prompt    string          `json:"prompt"`
}

// Revise applies one revision synchronously: the response carries the URLs
// of the freshly published build. Clients wanting progress detail use the
// streaming gateway instead.
func (h *Handlers) Revise(c *gin.Context) {
	// Read one byte past the cap so an oversized body is detected without
	// buffering all of it.
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, validate.MaxJSONSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "could not read request body",
		})
		return
	}
	if err := h.body.ValidateSize(raw); err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	var req reviseRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid request: " + err.Error(),
		})
		return
	}

	if err := validate.SessionID(req.SessionID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	var result *build.Result
	switch {
	case len(req.Delta) > 0:
		if verr := validate.Delta(req.Delta); verr != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   verr.Error(),
			})
			return
		}
		delta, perr := blueprint.ParseDelta(req.Delta)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   perr.Error(),
			})
			return
		}
		result, err = h.orch.Revise(c.Request.Context(), req.SessionID, delta)
	case req.Prompt != "":
		result, err = h.orch.ReviseText(c.Request.Context(), req.SessionID, req.Prompt)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "either delta or prompt is required",
		})
		return
	}

	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, build.ErrBusy) {
			status = http.StatusTooManyRequests
		}
		h.log.Warn("revise failed",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"session_id":      result.Session.ID,
		"build_id":        result.BuildID,
		"app_url":         result.Artifacts.AppURL,
		"http_url":        result.Artifacts.HTTPURL,
		"download_url":    result.Artifacts.DownloadURL,
		"new_collections": result.Report.NewCollections,
		"conflicts":       len(result.Report.Conflicts),
	})
}

// ListSessions returns snapshots of every live session.
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.store.List()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// GetSession returns one session by id.
func (h *Handlers) GetSession(c *gin.Context) {
	snap, err := h.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": snap,
	})
}

// GetBlueprint returns just the session's current blueprint.
func (h *Handlers) GetBlueprint(c *gin.Context) {
	snap, err := h.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, snap.Blueprint)
}

// Root describes the service.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "appforge",
		"version": "1.0.0",
		"endpoints": gin.H{
			"revise":   "POST /revise",
			"sessions": "GET /sessions",
			"stream":   "GET /stream",
			"apps":     "GET /apps/{app}/",
			"health":   "GET /health",
			"metrics":  "GET /metrics",
		},
	})
}

// Health reports liveness plus coarse store statistics.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"uptime":   h.metrics.Uptime().String(),
		"sessions": h.store.Stats().TotalSessions,
	})
}
