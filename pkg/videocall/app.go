// Package videocall is the UI-facing session service. It ties login, room
// setup, devices and presence together behind a small command surface and an
// observable Snapshot.
package videocall

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rescp17/tutorCall/internal/app"
	appevents "github.com/rescp17/tutorCall/internal/app_events"
	"github.com/rescp17/tutorCall/internal/app_events/session"
	"github.com/rescp17/tutorCall/pkg/concurrency"
	"github.com/rescp17/tutorCall/pkg/identity"
	"github.com/rescp17/tutorCall/pkg/media"
	"github.com/rescp17/tutorCall/pkg/presence"
	"github.com/rescp17/tutorCall/pkg/room"
	"github.com/rescp17/tutorCall/pkg/rtc"
)

// ErrNoSession is returned by device commands outside an established call.
var ErrNoSession = errors.New("no active call")

// Notifier tells the question backend about call boundaries.
type Notifier interface {
	NotifyCallStarted(ctx context.Context, questionID, roomID string) error
	NotifyCallEnded(ctx context.Context, questionID string) error
}

// Deps are the collaborators of an App. Backend may be nil.
type Deps struct {
	Transport   rtc.Transport
	Credentials identity.CredentialProvider
	Backend     Notifier
}

type Options struct {
	Room  []room.Option
	Media media.Options
	// CommandTimeout bounds commands received on AppEvents.
	CommandTimeout time.Duration
	// NotifyTimeout bounds each backend notification.
	NotifyTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Media:          media.DefaultOptions(),
		CommandTimeout: 30 * time.Second,
		NotifyTimeout:  10 * time.Second,
	}
}

// StartRequest names the room to create or join and who joins it.
type StartRequest struct {
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
	QuestionID    string `json:"questionId,omitempty"`
}

const (
	guardCamera     = "camera"
	guardMicrophone = "microphone"
)

// App owns one identity manager, orchestrator, media facade and presence
// tracker for its whole lifetime.
type App struct {
	transport rtc.Transport
	identity  *identity.Manager
	rooms     *room.Orchestrator
	media     *media.Facade
	presence  *presence.Tracker
	backend   Notifier
	guards    *concurrency.KeyedGuard
	store     *app.StateManager[Snapshot]
	opts      Options

	uiMessages chan appevents.AppUIMessage
	appEvents  chan appevents.AppEvent

	mu         sync.Mutex
	questionID string
	lastErr    error
	// ends counts RequestEndSession calls; a start that sees it move is void.
	ends uint64
	// lastNotify is closed when the previously queued notification is done.
	lastNotify chan struct{}

	bg           sync.WaitGroup
	shutdownOnce sync.Once
	shutdownErr  error
}

func New(deps Deps, opts Options) *App {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 30 * time.Second
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	a := &App{
		transport:  deps.Transport,
		identity:   identity.NewManager(deps.Transport, deps.Credentials),
		rooms:      room.NewOrchestrator(deps.Transport, opts.Room...),
		media:      media.NewFacade(deps.Transport, opts.Media),
		presence:   presence.NewTracker(),
		backend:    deps.Backend,
		guards:     concurrency.NewKeyedGuard(),
		store:      app.NewStateManager(Snapshot{State: room.StateIdle}),
		opts:       opts,
		uiMessages: make(chan appevents.AppUIMessage, 32),
		appEvents:  make(chan appevents.AppEvent),
	}
	a.rooms.AddListener(a.onRoomChange)
	a.presence.OnChange(a.onPresenceChange)
	return a
}

// UIMessages carries command results and errors for the UI.
func (a *App) UIMessages() <-chan appevents.AppUIMessage {
	return a.uiMessages
}

// AppEvents accepts commands from the UI while Run is active.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// Snapshot returns the current view.
func (a *App) Snapshot() Snapshot {
	return a.store.Get()
}

// Subscribe streams snapshots, starting with the current one.
func (a *App) Subscribe() (<-chan Snapshot, func()) {
	return a.store.Subscribe()
}

// Run pumps UI commands and transport events until ctx is done or the
// transport goes away.
func (a *App) Run(ctx context.Context) error {
	events, unsubscribe := a.transport.Subscribe()
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case event := <-a.appEvents:
				a.dispatch(gctx, event)
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return fmt.Errorf("transport events: %w", rtc.ErrClosed)
				}
				a.handleTransportEvent(ev)
			}
		}
	})
	return g.Wait()
}

// dispatch runs a UI command in the background; results go to UIMessages.
func (a *App) dispatch(ctx context.Context, event appevents.AppEvent) {
	var op string
	var run func(ctx context.Context) error
	switch e := event.(type) {
	case session.StartSessionEvent:
		op = "start_session"
		req := StartRequest{RoomID: e.RoomID, ParticipantID: e.ParticipantID, QuestionID: e.QuestionID}
		run = func(ctx context.Context) error { return a.RequestStartSession(ctx, req) }
	case session.EndSessionEvent:
		op = "end_session"
		run = a.RequestEndSession
	case session.ToggleCameraEvent:
		op = "toggle_camera"
		run = func(ctx context.Context) error { _, err := a.ToggleCamera(ctx); return err }
	case session.ToggleMicrophoneEvent:
		op = "toggle_microphone"
		run = func(ctx context.Context) error { _, err := a.ToggleMicrophone(ctx); return err }
	default:
		log.Warn().Str("module", "videocall").Str("event", fmt.Sprintf("%T", event)).Msg("unhandled app event")
		return
	}

	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		cctx, cancel := context.WithTimeout(ctx, a.opts.CommandTimeout)
		defer cancel()
		if err := run(cctx); err != nil {
			a.send(appevents.AppErrorMsg{Op: op, Err: err})
		}
	}()
}

func (a *App) send(msg appevents.AppUIMessage) {
	select {
	case a.uiMessages <- msg:
	default:
		log.Debug().Str("module", "videocall").Str("message", fmt.Sprintf("%T", msg)).Msg("ui not listening, message dropped")
	}
}

// RequestStartSession logs in, creates or joins the room, switches devices
// on and tells the backend. Device failures are reported but do not undo the
// call.
func (a *App) RequestStartSession(ctx context.Context, req StartRequest) error {
	logger := log.With().Str("module", "videocall").Str("room", req.RoomID).Str("participant", req.ParticipantID).Logger()

	a.mu.Lock()
	ends := a.ends
	a.mu.Unlock()

	if err := a.login(ctx, req.ParticipantID); err != nil {
		a.recordFailure(err)
		return err
	}
	local, ok := a.identity.Identity()
	if !ok {
		err := &identity.AuthError{Code: identity.CodeUnknown, Message: "signed out during start"}
		a.recordFailure(err)
		return err
	}

	prev := a.rooms.Session()
	if prev.InRoom() && prev.Descriptor.NormalizedID != room.Normalize(req.RoomID) {
		a.endQuestion()
	}

	sess, err := a.rooms.CreateOrJoin(ctx, req.RoomID, local)
	if err != nil {
		if room.IsTerminal(err) {
			a.recordFailure(err)
		}
		return err
	}

	a.mu.Lock()
	if a.ends != ends || !a.stillIn(sess) {
		a.mu.Unlock()
		logger.Info().Msg("call ended while starting")
		if a.stillIn(sess) {
			if err := a.rooms.Exit(ctx); err != nil {
				logger.Warn().Err(err).Msg("leaving room after ended start failed")
			}
		}
		a.refresh()
		return &room.Error{Kind: room.KindCancelled, Op: "start_session", RoomID: sess.Descriptor.NormalizedID, Message: "call ended while starting"}
	}
	startedQuestion := a.questionID != req.QuestionID
	a.questionID = req.QuestionID
	a.lastErr = nil
	if startedQuestion && req.QuestionID != "" {
		a.notifyLocked("start-video", func(ctx context.Context, b Notifier) error {
			return b.NotifyCallStarted(ctx, req.QuestionID, sess.Descriptor.NormalizedID)
		})
	}
	a.mu.Unlock()

	if remote, ok := a.presence.Remote(); ok {
		a.rooms.SetRemote(remote)
	}

	var mediaErr error
	st := a.media.State()
	if !st.CameraOn {
		if err := a.media.SetCamera(ctx, true); err != nil {
			mediaErr = err
		}
	}
	if !st.MicrophoneOn {
		if err := a.media.SetMicrophone(ctx, true); err != nil && mediaErr == nil {
			mediaErr = err
		}
	}
	if !a.stillIn(sess) {
		a.media.Reset()
		mediaErr = nil
	}
	if mediaErr != nil {
		a.recordFailure(mediaErr)
		a.send(appevents.AppErrorMsg{Op: "start_media", Err: mediaErr})
	}
	a.refresh()

	logger.Info().Str("normalized", sess.Descriptor.NormalizedID).Msg("call started")
	return nil
}

// stillIn reports whether the room session is still the one sess started.
func (a *App) stillIn(sess room.Session) bool {
	cur := a.rooms.Session()
	return cur.InRoom() && cur.Descriptor.NormalizedID == sess.Descriptor.NormalizedID
}

// login makes participantID the logged-in identity. A different identity is
// replaced only while no call is active.
func (a *App) login(ctx context.Context, participantID string) error {
	err := a.identity.EnsureLoggedIn(ctx, participantID)
	if !errors.Is(err, identity.ErrIdentityConflict) {
		return err
	}
	if s := a.rooms.Session(); s.State != room.StateIdle {
		return err
	}
	if lerr := a.identity.Logout(ctx); lerr != nil {
		log.Warn().Err(lerr).Str("module", "videocall").Msg("logout before identity switch failed")
	}
	return a.identity.EnsureLoggedIn(ctx, participantID)
}

// RequestEndSession closes devices, tells the backend and leaves the room.
// The call ends locally even if the transport reports a failure.
func (a *App) RequestEndSession(ctx context.Context) error {
	a.mu.Lock()
	a.ends++
	a.mu.Unlock()

	before := a.rooms.Session()
	if before.State == room.StateIdle {
		return nil
	}
	a.media.Reset()
	a.endQuestion()
	err := a.rooms.Exit(ctx)
	a.refresh()
	a.send(session.SessionEndedMsg{RoomID: before.Descriptor.NormalizedID})
	if err != nil {
		log.Warn().Err(err).Str("module", "videocall").Msg("exit reported an error")
	}
	return err
}

// endQuestion fires the end notification for the current question, if any.
func (a *App) endQuestion() {
	a.mu.Lock()
	defer a.mu.Unlock()
	q := a.questionID
	a.questionID = ""
	if q == "" {
		return
	}
	a.notifyLocked("end-video", func(ctx context.Context, b Notifier) error {
		return b.NotifyCallEnded(ctx, q)
	})
}

// notifyLocked runs fn against the backend without blocking the caller.
// Notifications reach the backend in the order they were queued. Failures
// are logged only. a.mu must be held.
func (a *App) notifyLocked(what string, fn func(context.Context, Notifier) error) {
	if a.backend == nil {
		return
	}
	prev, done := a.lastNotify, make(chan struct{})
	a.lastNotify = done
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		ctx, cancel := context.WithTimeout(context.Background(), a.opts.NotifyTimeout)
		defer cancel()
		if err := fn(ctx, a.backend); err != nil {
			log.Warn().Err(err).Str("module", "videocall").Str("call", what).Msg("backend notification failed")
			return
		}
		log.Debug().Str("module", "videocall").Str("call", what).Msg("backend notified")
	}()
}

// ToggleCamera flips the camera. Concurrent toggles of the same device fail
// with concurrency.ErrBusy.
func (a *App) ToggleCamera(ctx context.Context) (bool, error) {
	return a.toggle(ctx, guardCamera, a.media.ToggleCamera)
}

func (a *App) ToggleMicrophone(ctx context.Context) (bool, error) {
	return a.toggle(ctx, guardMicrophone, a.media.ToggleMicrophone)
}

func (a *App) toggle(ctx context.Context, device string, fn func(context.Context) (bool, error)) (bool, error) {
	if !a.rooms.Session().InRoom() {
		return false, ErrNoSession
	}
	var on bool
	err := a.guards.ExecuteContext(ctx, device, func(ctx context.Context) error {
		var err error
		on, err = fn(ctx)
		return err
	})
	a.refresh()
	if err != nil {
		return on, err
	}
	a.send(session.DeviceToggledMsg{Device: device, On: on})
	return on, nil
}

// BindLocalSurface routes the local camera preview to s. Nil unbinds.
func (a *App) BindLocalSurface(s rtc.VideoSurface) {
	a.transport.SetLocalVideoSurface(s)
}

// BindRemoteSurface routes participantID's video to s. Nil unbinds.
func (a *App) BindRemoteSurface(participantID string, s rtc.VideoSurface) {
	a.transport.SetRemoteVideoSurface(participantID, s)
}

func (a *App) handleTransportEvent(ev rtc.Event) {
	a.presence.HandleEvent(ev)
	if ev.Kind != rtc.EventAuthExpired {
		return
	}
	a.identity.Invalidate(ev.Reason)
	err := &identity.AuthError{Code: identity.CodeUnknown, Message: "signed out: " + ev.Reason}
	a.recordFailure(err)
	a.send(appevents.AppErrorMsg{Op: "auth", Err: err})

	if a.rooms.Session().State == room.StateIdle {
		return
	}
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.opts.CommandTimeout)
		defer cancel()
		if err := a.RequestEndSession(ctx); err != nil {
			log.Warn().Err(err).Str("module", "videocall").Msg("leaving room after sign-out failed")
		}
	}()
}

// onRoomChange runs synchronously inside the orchestrator's notification and
// must not call back into it.
func (a *App) onRoomChange(s room.Session) {
	if s.State == room.StateIdle || s.State == room.StateFailed {
		a.media.Reset()
		a.presence.Reset()
	}
	a.refresh()
}

func (a *App) onPresenceChange(p presence.State) {
	a.rooms.SetRemote(p.ParticipantID)
	a.refresh()
}

func (a *App) recordFailure(err error) {
	a.mu.Lock()
	a.lastErr = err
	a.mu.Unlock()
	a.refresh()
}

// refresh rebuilds the snapshot from the components.
func (a *App) refresh() {
	s := a.rooms.Session()
	p := a.presence.Snapshot()
	m := a.media.State()

	a.mu.Lock()
	snap := Snapshot{
		State:         s.State,
		RoomID:        s.Descriptor.NormalizedID,
		QuestionID:    a.questionID,
		Participant:   s.Local.ParticipantID,
		Remote:        p.ParticipantID,
		RemoteVideo:   p.HasVideo,
		RemoteAudio:   p.HasAudio,
		Media:         m,
		LastErrorKind: ErrorKind(a.lastErr),
		Since:         s.Since,
	}
	if a.lastErr != nil {
		snap.LastError = a.lastErr.Error()
	}
	a.store.Set(snap)
	a.mu.Unlock()
}

// Shutdown leaves the room, releases devices, logs out and waits for
// background work. It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		var errs []error
		if err := a.RequestEndSession(ctx); err != nil {
			errs = append(errs, fmt.Errorf("exit room: %w", err))
		}
		a.media.Reset()
		if err := a.identity.Logout(ctx); err != nil {
			errs = append(errs, err)
		}

		done := make(chan struct{})
		go func() {
			a.bg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("waiting for background work: %w", ctx.Err()))
		}
		a.store.Close()
		a.shutdownErr = errors.Join(errs...)
		log.Info().Str("module", "videocall").Msg("session service stopped")
	})
	return a.shutdownErr
}
