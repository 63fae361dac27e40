package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-saferoute/internal/models"
	"github.com/mr1hm/go-saferoute/internal/orchestrator"
	"github.com/mr1hm/go-saferoute/internal/repository"
)

func (h *Handler) createSession(c *gin.Context) {
	o, err := h.deps.Sessions.Create()
	if err != nil {
		if errors.Is(err, orchestrator.ErrTooManySessions) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusCreated, o.Snapshot())
}

// session resolves the :id parameter, writing a 404 when it is unknown.
func (h *Handler) session(c *gin.Context) (*orchestrator.Orchestrator, bool) {
	o, ok := h.deps.Sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return o, true
}

func (h *Handler) getSession(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, o.Snapshot())
}

func (h *Handler) deleteSession(c *gin.Context) {
	if !h.deps.Sessions.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type locationRequest struct {
	coordinateRequest
	Address string `json:"address"`
}

func (h *Handler) setLocation(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	loc := models.Location{Coordinate: req.coordinate(), Address: req.Address}
	h.applyInput(c, o, o.SetLocation(loc))
}

func (h *Handler) clearLocation(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}
	h.applyInput(c, o, o.ClearLocation())
}

type disasterRequest struct {
	DisasterType string                     `json:"disaster_type" binding:"required"`
	Assessment   *models.DisasterAssessment `json:"assessment"`
}

func (h *Handler) setDisaster(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}
	var req disasterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Assessment != nil {
		if err := h.validate.Struct(req.Assessment); err != nil {
			badRequest(c, err)
			return
		}
	}
	h.applyInput(c, o, o.SetDisaster(req.DisasterType, req.Assessment))
}

func (h *Handler) clearDisaster(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}
	h.applyInput(c, o, o.ClearDisaster())
}

func (h *Handler) refresh(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}
	h.applyInput(c, o, o.Refresh())
}

// applyInput answers an input change with the snapshot of the generation it
// started. Later steps arrive through the events stream.
func (h *Handler) applyInput(c *gin.Context, o *orchestrator.Orchestrator, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, o.Snapshot())
	case errors.Is(err, orchestrator.ErrInvalidLocation), errors.Is(err, orchestrator.ErrUnknownHazard):
		badRequest(c, err)
	case errors.Is(err, orchestrator.ErrClosed):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// events streams the session's snapshots as server-sent events, starting
// with the current one.
func (h *Handler) events(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}

	id, ch := h.deps.Broadcaster.Subscribe(o.ID())
	defer h.deps.Broadcaster.Unsubscribe(id)

	slog.Info("client subscribed to session events", "subscriber_id", id, "session_id", o.ID())

	current := o.Snapshot()
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("snapshot", current)
	c.Writer.Flush()

	lastGen, lastState := current.Generation, current.State
	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			slog.Info("client disconnected from session events", "subscriber_id", id)
			return false
		case snap, ok := <-ch:
			if !ok {
				return false
			}
			if snap.Follows(lastGen, lastState) {
				lastGen, lastState = snap.Generation, snap.State
				c.SSEvent("snapshot", snap)
			}
			return true
		}
	})
}

func (h *Handler) sessionGeoJSON(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, toGeoJSON(o.Snapshot()))
}

func (h *Handler) sessionHistory(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}

	filter := repository.Filter{
		SessionID: o.ID(),
		Limit:     20,
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
		}
	}
	h.listHistory(c, filter)
}
