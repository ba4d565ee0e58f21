// Package room drives the create-or-join lifecycle of the single tutoring
// room a tutor is in.
package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rescp17/tutorCall/pkg/identity"
	"github.com/rescp17/tutorCall/pkg/rtc"
)

// DefaultRoomName is the display name rooms are created with.
const DefaultRoomName = "1v1 tutoring room"

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithRetryPolicy(p *RetryPolicy) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.policy = p
		}
	}
}

func WithClassifier(c *Classifier) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.classifier = c
		}
	}
}

// WithSleeper replaces the delay function, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sleep = s
		}
	}
}

func WithRoomName(name string) Option {
	return func(o *Orchestrator) {
		if name != "" {
			o.roomName = name
		}
	}
}

// Listener observes every session state change.
type Listener func(Session)

// attempt is one in-flight createOrJoin. It is the only writer of the
// session while it is current. Transport calls run on callCtx, which Exit
// never cancels; ctx bounds the waits between steps.
type attempt struct {
	roomID  string
	callCtx context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	// exiting is set under Orchestrator.mu by an Exit waiting for a.
	exiting bool

	session Session
	err     error
}

// Orchestrator owns the RoomSession. All operations are safe for concurrent
// use; at most one createOrJoin runs at a time.
type Orchestrator struct {
	engine     rtc.RoomEngine
	policy     *RetryPolicy
	classifier *Classifier
	sleep      Sleeper
	roomName   string
	now        func() time.Time

	mu        sync.Mutex
	session   *Session
	current   *attempt
	listeners []Listener

	// exitMu serializes exits; notifyMu keeps listener order consistent.
	exitMu   sync.Mutex
	notifyMu sync.Mutex
}

func NewOrchestrator(engine rtc.RoomEngine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:     engine,
		policy:     DefaultRetryPolicy(),
		classifier: NewClassifier(nil, nil),
		sleep:      sleepContext,
		roomName:   DefaultRoomName,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AddListener registers fn for state changes. fn runs synchronously and must
// not call CreateOrJoin or Exit.
func (o *Orchestrator) AddListener(fn Listener) {
	o.mu.Lock()
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
}

// Session returns the current session snapshot.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Session {
	if o.session == nil {
		return Session{State: StateIdle}
	}
	return *o.session
}

func (o *Orchestrator) notify() {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()
	o.mu.Lock()
	snap := o.snapshotLocked()
	ls := make([]Listener, len(o.listeners))
	copy(ls, o.listeners)
	o.mu.Unlock()
	for _, l := range ls {
		l(snap)
	}
}

// CreateOrJoin brings the local participant into the room named by rawID,
// creating it when possible and joining it otherwise. A call for the room
// already being set up waits for that attempt; a call for a different room
// while one is in flight fails with KindBusy. Being in another room causes
// an exit first.
func (o *Orchestrator) CreateOrJoin(ctx context.Context, rawID string, local identity.Identity) (Session, error) {
	desc, err := NewDescriptor(rawID)
	if err != nil {
		o.classifier.LogError(err.(*Error), "reject")
		return Session{}, err
	}
	id := desc.NormalizedID

	for {
		o.mu.Lock()
		if a := o.current; a != nil {
			o.mu.Unlock()
			if a.roomID == id {
				log.Debug().Str("module", "room").Str("room", id).Msg("joining in-flight attempt")
				return o.await(ctx, a)
			}
			return Session{}, &Error{
				Kind:    KindBusy,
				Op:      "create_or_join",
				RoomID:  id,
				Message: fmt.Sprintf("room %s is still being set up", a.roomID),
			}
		}
		if s := o.session; s != nil {
			switch s.State {
			case StateInRoom:
				if s.Descriptor.NormalizedID == id {
					snap := *s
					o.mu.Unlock()
					return snap, nil
				}
				prev := s.Descriptor.NormalizedID
				o.mu.Unlock()
				log.Info().Str("module", "room").Str("from", prev).Str("to", id).Msg("switching rooms")
				if err := o.Exit(ctx); err != nil {
					log.Warn().Err(err).Str("module", "room").Str("room", prev).Msg("exit before switch failed, continuing")
				}
				continue
			case StateExiting:
				o.mu.Unlock()
				o.exitMu.Lock()
				o.exitMu.Unlock()
				continue
			}
		}
		break
	}

	actx, cancel := context.WithCancel(ctx)
	a := &attempt{roomID: id, callCtx: ctx, ctx: actx, cancel: cancel, done: make(chan struct{})}
	o.current = a
	o.session = &Session{Descriptor: desc, Local: local, State: StateNormalizingID, Since: o.now()}
	o.mu.Unlock()
	o.notify()

	sess, err := o.run(a)

	o.mu.Lock()
	a.session, a.err = sess, err
	o.current = nil
	o.mu.Unlock()
	close(a.done)
	cancel()
	return sess, err
}

func (o *Orchestrator) await(ctx context.Context, a *attempt) (Session, error) {
	select {
	case <-a.done:
		return a.session, a.err
	case <-ctx.Done():
		return Session{}, &Error{Kind: KindCancelled, Op: "create_or_join", RoomID: a.roomID, Err: ctx.Err()}
	}
}

// run performs create, then join with bounded retries.
func (o *Orchestrator) run(a *attempt) (Session, error) {
	id := a.roomID
	logger := log.With().Str("module", "room").Str("room", id).Logger()

	if !o.transition(a, StateCreating) {
		return o.abandon(a, "create_room", nil)
	}
	info := rtc.RoomInfo{
		RoomID:     id,
		Name:       o.roomName,
		Type:       rtc.RoomTypeConference,
		SpeechMode: rtc.SpeechModeFreeToSpeak,
	}
	err := o.engine.CreateRoom(a.callCtx, info)
	if err == nil {
		logger.Info().Msg("room created")
		return o.commit(a)
	}

	if !o.targeting(a) {
		return o.abandon(a, "create_room", err)
	}
	switch kind := o.classifier.Classify(err); kind {
	case KindEntitlementDenied:
		e := o.classifier.Wrap(kind, "create_room", id, err)
		o.classifier.LogError(e, "fail")
		return o.fail(a, e)
	case KindCancelled:
		return o.abandon(a, "create_room", err)
	}
	logger.Info().Err(err).Msg("create failed, room likely exists; joining")

	if err := o.sleep(a.ctx, o.policy.CreateSettleDelay); err != nil {
		return o.abandon(a, "create_room", err)
	}
	if !o.transition(a, StateJoining) {
		return o.abandon(a, "enter_room", nil)
	}
	if _, err = o.engine.EnterRoom(a.callCtx, id); err == nil {
		logger.Info().Msg("joined room")
		return o.commit(a)
	}

	rc := newRetryContext(id, o.policy)
	for retry := 1; ; retry++ {
		if o.classifier.ClassifyTransient(err) == KindCancelled || !o.targeting(a) {
			return o.abandon(a, "enter_room", err)
		}
		rc.AddError(err)
		if retry > o.policy.MaxJoinRetries {
			break
		}
		logger.Warn().Err(err).Int("retry", retry).Dur("delay", o.policy.JoinRetryDelay).Msg("join failed, retrying")

		if serr := o.sleep(a.ctx, o.policy.JoinRetryDelay); serr != nil {
			return o.abandon(a, "enter_room", serr)
		}
		if !o.targeting(a) {
			return o.abandon(a, "enter_room", nil)
		}
		if _, err = o.engine.FetchRoomInfo(a.callCtx, id, rtc.RoomTypeConference); err != nil {
			continue
		}
		if _, err = o.engine.EnterRoom(a.callCtx, id); err == nil {
			logger.Info().Int("retry", retry).Msg("joined room after retry")
			return o.commit(a)
		}
	}

	e := o.classifier.Wrap(KindRoomUnavailable, "enter_room", id, rc.LastError())
	e.Retry = rc
	o.classifier.LogError(e, "fail")
	return o.fail(a, e)
}

// targeting reports whether a may still mutate the session.
func (o *Orchestrator) targeting(a *attempt) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.targetingLocked(a)
}

func (o *Orchestrator) targetingLocked(a *attempt) bool {
	return o.current == a && a.ctx.Err() == nil &&
		o.session != nil && o.session.Descriptor.NormalizedID == a.roomID
}

func (o *Orchestrator) transition(a *attempt, to State) bool {
	o.mu.Lock()
	if !o.targetingLocked(a) {
		o.mu.Unlock()
		return false
	}
	o.session.State = to
	o.mu.Unlock()
	o.notify()
	return true
}

// commit records a transport success. It applies even when an Exit is
// waiting for the attempt so that the Exit tears the room down; the caller
// then gets KindCancelled.
func (o *Orchestrator) commit(a *attempt) (Session, error) {
	o.mu.Lock()
	if o.current != a || o.session == nil || o.session.Descriptor.NormalizedID != a.roomID {
		o.mu.Unlock()
		return Session{}, &Error{Kind: KindCancelled, Op: "create_or_join", RoomID: a.roomID}
	}
	o.session.State = StateInRoom
	o.session.Since = o.now()
	snap := *o.session
	exiting := a.exiting
	o.mu.Unlock()
	o.notify()
	if exiting {
		log.Info().Str("module", "room").Str("room", a.roomID).Msg("entered room while exiting, leaving it")
		return Session{}, &Error{Kind: KindCancelled, Op: "create_or_join", RoomID: a.roomID, Message: "exit requested"}
	}
	return snap, nil
}

func (o *Orchestrator) fail(a *attempt, e *Error) (Session, error) {
	o.mu.Lock()
	if o.current != a || o.session == nil {
		o.mu.Unlock()
		return Session{}, e
	}
	o.session.State = StateFailed
	o.mu.Unlock()
	o.notify()

	o.mu.Lock()
	if o.current == a {
		o.session = nil
	}
	o.mu.Unlock()
	o.notify()
	return Session{}, e
}

func (o *Orchestrator) abandon(a *attempt, op string, cause error) (Session, error) {
	o.mu.Lock()
	reset := o.current == a && o.session != nil && o.session.State != StateInRoom
	if reset {
		o.session = nil
	}
	o.mu.Unlock()
	if reset {
		o.notify()
	}
	if cause == nil {
		cause = a.ctx.Err()
	}
	log.Info().Str("module", "room").Str("room", a.roomID).Str("op", op).Msg("attempt abandoned")
	return Session{}, &Error{Kind: KindCancelled, Op: op, RoomID: a.roomID, Err: cause}
}

// Exit leaves the room. An in-flight attempt stops before its next step and
// its current transport call is awaited; a room it entered meanwhile is left
// too. The local session always ends Idle; a transport failure is returned
// after the local reset.
func (o *Orchestrator) Exit(ctx context.Context) error {
	o.exitMu.Lock()
	defer o.exitMu.Unlock()

	o.mu.Lock()
	a := o.current
	if a != nil {
		a.exiting = true
	}
	o.mu.Unlock()
	if a != nil {
		log.Info().Str("module", "room").Str("room", a.roomID).Msg("cancelling in-flight attempt")
		a.cancel()
		select {
		case <-a.done:
		case <-ctx.Done():
			o.mu.Lock()
			a.exiting = false
			o.mu.Unlock()
			return &Error{Kind: KindCancelled, Op: "exit_room", RoomID: a.roomID, Err: ctx.Err()}
		}
	}

	o.mu.Lock()
	s := o.session
	if s == nil || s.State != StateInRoom {
		o.mu.Unlock()
		return nil
	}
	s.State = StateExiting
	id := s.Descriptor.NormalizedID
	o.mu.Unlock()
	o.notify()

	err := o.engine.ExitRoom(ctx)

	o.mu.Lock()
	if o.session == s {
		o.session = nil
	}
	o.mu.Unlock()
	o.notify()

	if err != nil {
		e := o.classifier.Wrap(o.classifier.ClassifyTransient(err), "exit_room", id, err)
		o.classifier.LogError(e, "reset")
		return e
	}
	log.Info().Str("module", "room").Str("room", id).Msg("left room")
	return nil
}

// SetRemote records the remote participant of an established session.
// Empty id clears it. It is a no-op outside InRoom.
func (o *Orchestrator) SetRemote(participantID string) {
	o.mu.Lock()
	if o.session == nil || o.session.State != StateInRoom || o.session.RemoteID == participantID {
		o.mu.Unlock()
		return
	}
	o.session.RemoteID = participantID
	o.mu.Unlock()
	o.notify()
}
