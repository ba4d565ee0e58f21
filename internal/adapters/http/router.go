// Package http exposes the session service to a host shell as a small local
// REST API with a server-sent event stream of snapshots.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rescp17/tutorCall/internal/config"
	"github.com/rescp17/tutorCall/pkg/concurrency"
	"github.com/rescp17/tutorCall/pkg/identity"
	"github.com/rescp17/tutorCall/pkg/media"
	"github.com/rescp17/tutorCall/pkg/room"
	"github.com/rescp17/tutorCall/pkg/videocall"
)

// Service is the part of videocall.App the API drives.
type Service interface {
	Snapshot() videocall.Snapshot
	Subscribe() (<-chan videocall.Snapshot, func())
	RequestStartSession(ctx context.Context, req videocall.StartRequest) error
	RequestEndSession(ctx context.Context) error
	ToggleCamera(ctx context.Context) (bool, error)
	ToggleMicrophone(ctx context.Context) (bool, error)
}

var _ Service = (*videocall.App)(nil)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every request with an id, reusing the caller's.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func SetupRouter(cfg *config.Config, svc Service) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())

	h := &handlers{svc: svc}
	api := r.Group("/api")
	api.GET("/session", h.getSession)
	api.GET("/session/events", h.streamSession)
	api.POST("/session/start", h.startSession)
	api.POST("/session/end", h.endSession)
	api.POST("/media/camera/toggle", h.toggle("camera", svc.ToggleCamera))
	api.POST("/media/microphone/toggle", h.toggle("microphone", svc.ToggleMicrophone))

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}

// statusFor maps a command failure to an HTTP status.
func statusFor(err error) int {
	var authErr *identity.AuthError
	var mediaErr *media.MediaError
	switch {
	case errors.Is(err, videocall.ErrNoSession),
		errors.Is(err, concurrency.ErrBusy),
		errors.Is(err, identity.ErrIdentityConflict):
		return http.StatusConflict
	case errors.As(err, &authErr):
		if authErr.Code == identity.CodeInvalidParticipant {
			return http.StatusBadRequest
		}
		return http.StatusUnauthorized
	case errors.As(err, &mediaErr):
		return http.StatusUnprocessableEntity
	}
	switch room.KindOf(err) {
	case room.KindInvalidRoomID:
		return http.StatusBadRequest
	case room.KindEntitlementDenied:
		return http.StatusForbidden
	case room.KindBusy:
		return http.StatusConflict
	case room.KindRoomUnavailable, room.KindTransientUnavailable, room.KindCancelled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	log.Warn().Err(err).Str("module", "adapters.http").
		Str("path", c.FullPath()).
		Str("request_id", c.GetString("request_id")).
		Int("status", status).
		Msg("command failed")
	c.AbortWithStatusJSON(status, gin.H{
		"error": err.Error(),
		"kind":  videocall.ErrorKind(err),
	})
}
