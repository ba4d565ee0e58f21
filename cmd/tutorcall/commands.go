package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/rescp17/tutorCall/internal/adapters/http"
	"github.com/rescp17/tutorCall/internal/config"
	"github.com/rescp17/tutorCall/internal/logging"
	"github.com/rescp17/tutorCall/pkg/room"
	"github.com/rescp17/tutorCall/pkg/ui"
	"github.com/rescp17/tutorCall/pkg/videocall"
)

const (
	debugLogFile    = "debug.log"
	shutdownTimeout = 10 * time.Second
)

func newSessionCmd(flags *rootFlags) *cobra.Command {
	var req videocall.StartRequest
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Join a tutoring room and show the call screen",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := logging.OpenFile(debugLogFile)
			if err != nil {
				return err
			}
			defer f.Close()

			cfg, err := loadConfig(flags, f, false)
			if err != nil {
				return err
			}
			return runSession(cmd.Context(), cfg, req)
		},
	}
	cmd.Flags().StringVar(&req.RoomID, "room", "", "Room id to create or join")
	cmd.Flags().StringVar(&req.ParticipantID, "participant", "", "Tutor participant id")
	cmd.Flags().StringVar(&req.QuestionID, "question", "", "Question the call is about")
	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("participant")
	return cmd
}

func runSession(ctx context.Context, cfg *config.Config, req videocall.StartRequest) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app, closeTransport, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeTransport()

	p := tea.NewProgram(ui.NewModel(app, req))
	runErr := make(chan error, 1)
	go func() {
		err := app.Run(ctx)
		if err != nil {
			log.Error().Err(err).Str("module", "main").Msg("session service stopped")
			p.Quit()
		}
		runErr <- err
	}()

	_, uiErr := p.Run()
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	shutdownErr := app.Shutdown(shutdownCtx)
	if err := <-runErr; err != nil && uiErr == nil {
		uiErr = err
	}
	return errors.Join(uiErr, shutdownErr)
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session manager behind an HTTP control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags, os.Stderr, true)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	app, closeTransport, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeTransport()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           httpadapter.SetupRouter(cfg, app),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("module", "main").Str("addr", cfg.Listen).Msg("control API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control API: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), app.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <room-id>",
		Short: "Print the room id the service would use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := room.NewDescriptor(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), d.NormalizedID)
			return err
		},
	}
}

// loadConfig reads the config and points the global logger at w.
func loadConfig(flags *rootFlags, w io.Writer, console bool) (*config.Config, error) {
	if err := logging.Setup("info", w, console); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	if err := logging.Setup(level, w, console); err != nil {
		return nil, err
	}
	return cfg, nil
}
