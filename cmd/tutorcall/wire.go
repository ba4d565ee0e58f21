package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rescp17/tutorCall/api"
	"github.com/rescp17/tutorCall/internal/config"
	"github.com/rescp17/tutorCall/internal/credential"
	"github.com/rescp17/tutorCall/pkg/media"
	"github.com/rescp17/tutorCall/pkg/room"
	"github.com/rescp17/tutorCall/pkg/rtc/wsrtc"
	"github.com/rescp17/tutorCall/pkg/videocall"
)

// buildApp dials the RTC service and assembles the session service from cfg.
// The returned func closes the transport.
func buildApp(ctx context.Context, cfg *config.Config) (*videocall.App, func(), error) {
	transport, err := wsrtc.Dial(ctx, cfg.RTC.ServiceURL, wsrtc.Options{
		SDKAppID:     cfg.RTC.SDKAppID,
		ICEServers:   cfg.RTC.ICEServers,
		LANDiscovery: cfg.RTC.MDNS,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rtc service: %w", err)
	}

	deps := videocall.Deps{
		Transport:   transport,
		Credentials: credential.NewSigner(cfg.RTC.SDKAppID, cfg.RTC.SecretKey, cfg.RTC.SigExpire),
	}
	backend := api.NewClient(cfg.Backend.QuestionURL, cfg.Backend.Token, cfg.Backend.Timeout)
	if backend.Configured() {
		deps.Backend = backend
	} else {
		log.Info().Str("module", "main").Msg("question backend not configured, call notifications disabled")
	}

	opts := videocall.DefaultOptions()
	opts.Room = []room.Option{
		room.WithRetryPolicy(cfg.Room.RetryPolicy()),
		room.WithClassifier(cfg.Room.Classifier()),
		room.WithRoomName(cfg.Room.Name),
	}
	opts.Media = media.Options{
		FrontCamera:  cfg.RTC.FrontCamera,
		VideoQuality: cfg.RTC.Quality(),
		AudioQuality: media.DefaultOptions().AudioQuality,
	}

	closeTransport := func() {
		if err := transport.Close(); err != nil {
			log.Warn().Err(err).Str("module", "main").Msg("failed to close rtc transport")
		}
	}
	return videocall.New(deps, opts), closeTransport, nil
}
