package http

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/rescp17/tutorCall/pkg/videocall"
)

type handlers struct {
	svc Service
}

type startRequest struct {
	RoomID        string `json:"roomId" binding:"required"`
	ParticipantID string `json:"participantId" binding:"required"`
	QuestionID    string `json:"questionId"`
}

// GET /api/session
func (h *handlers) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Snapshot())
}

// GET /api/session/events streams a "snapshot" event per change until the
// client goes away.
func (h *handlers) streamSession(c *gin.Context) {
	snaps, cancel := h.svc.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	log.Debug().Str("module", "adapters.http").Str("request_id", c.GetString("request_id")).Msg("event stream opened")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case s, ok := <-snaps:
			if !ok {
				return false
			}
			c.SSEvent("snapshot", s)
			return true
		}
	})
}

// POST /api/session/start
func (h *handlers) startSession(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "roomId and participantId are required", "kind": "bad_request"})
		return
	}
	err := h.svc.RequestStartSession(c.Request.Context(), videocall.StartRequest{
		RoomID:        req.RoomID,
		ParticipantID: req.ParticipantID,
		QuestionID:    req.QuestionID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Snapshot())
}

// POST /api/session/end
func (h *handlers) endSession(c *gin.Context) {
	if err := h.svc.RequestEndSession(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Snapshot())
}

// POST /api/media/{device}/toggle
func (h *handlers) toggle(device string, fn func(context.Context) (bool, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		on, err := fn(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"device": device, "enabled": on})
	}
}
