// Package wsrtc is an rtc.Transport that speaks JSON over a WebSocket to an
// RTC room service and carries media over a pion PeerConnection.
package wsrtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/rescp17/tutorCall/pkg/rtc"
)

// Options configures a Transport.
type Options struct {
	SDKAppID         int
	ICEServers       []string
	LANDiscovery     bool
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// EventBuffer is the per-subscriber channel size.
	EventBuffer int
}

func (o *Options) setDefaults() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 5 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 64
	}
}

// Transport implements rtc.Transport.
type Transport struct {
	opts Options
	conn *websocket.Conn
	api  *webrtc.API

	writeMu sync.Mutex
	// negMu serializes offer/answer rounds.
	negMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Frame
	subs    map[int]chan rtc.Event
	nextSub int
	userID  string
	roomID  string
	media   mediaState

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the room service at serviceURL. http(s) URLs are
// rewritten to ws(s).
func Dial(ctx context.Context, serviceURL string, opts Options) (*Transport, error) {
	opts.setDefaults()
	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL(serviceURL), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rtc service: %w", err)
	}
	t, err := newTransport(conn, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	log.Info().Str("module", "wsrtc").Str("url", serviceURL).Msg("connected")
	return t, nil
}

func newTransport(conn *websocket.Conn, opts Options) (*Transport, error) {
	opts.setDefaults()
	api, err := newAPI(opts)
	if err != nil {
		return nil, err
	}
	t := &Transport{
		opts:    opts,
		conn:    conn,
		api:     api,
		pending: make(map[string]chan Frame),
		subs:    make(map[int]chan rtc.Event),
		media:   mediaState{remote: make(map[string]rtc.VideoSurface)},
		done:    make(chan struct{}),
	}
	go t.readPump()
	return t, nil
}

func wsURL(s string) string {
	switch {
	case strings.HasPrefix(s, "http://"):
		return "ws://" + strings.TrimPrefix(s, "http://")
	case strings.HasPrefix(s, "https://"):
		return "wss://" + strings.TrimPrefix(s, "https://")
	case strings.HasPrefix(s, "ws://"), strings.HasPrefix(s, "wss://"):
		return s
	default:
		return "wss://" + s
	}
}

// Close tears down the connection. Pending calls fail with rtc.ErrClosed and
// subscriber channels are closed.
func (t *Transport) Close() error {
	t.shutdown(rtc.ErrClosed)
	return nil
}

// Done is closed once the transport is unusable.
func (t *Transport) Done() <-chan struct{} { return t.done }

func (t *Transport) shutdown(cause error) {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closeErr = cause
		for id, ch := range t.subs {
			close(ch)
			delete(t.subs, id)
		}
		t.mu.Unlock()
		close(t.done)
		_ = t.conn.Close()
		t.resetMedia()
		log.Info().Err(cause).Str("module", "wsrtc").Msg("transport closed")
	})
}

func (t *Transport) readPump() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
			default:
				log.Warn().Err(err).Str("module", "wsrtc").Msg("read failed")
			}
			t.shutdown(rtc.ErrClosed)
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Error().Err(err).Str("module", "wsrtc").Msg("bad json")
			continue
		}
		t.handleFrame(f)
	}
}

func (t *Transport) handleFrame(f Frame) {
	switch f.Type {
	case TypeResponse:
		t.mu.Lock()
		ch, ok := t.pending[f.ID]
		delete(t.pending, f.ID)
		t.mu.Unlock()
		if !ok {
			log.Debug().Str("module", "wsrtc").Str("id", f.ID).Msg("response for unknown request")
			return
		}
		ch <- f
	case TypeCandidate:
		if f.Candidate != nil {
			t.addRemoteCandidate(*f.Candidate)
		}
	default:
		ev, ok := toEvent(f)
		if !ok {
			log.Warn().Str("module", "wsrtc").Str("type", f.Type).Msg("unknown frame")
			return
		}
		if ev.Kind == rtc.EventRemoteLeft {
			t.SetRemoteVideoSurface(ev.ParticipantID, nil)
		}
		t.broadcast(ev)
	}
}

func (t *Transport) broadcast(ev rtc.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			log.Warn().Str("module", "wsrtc").Str("event", ev.Kind.String()).Msg("subscriber full, event dropped")
		}
	}
}

func (t *Transport) Subscribe() (<-chan rtc.Event, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan rtc.Event, t.opts.EventBuffer)
	select {
	case <-t.done:
		close(ch)
		return ch, func() {}
	default:
	}
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch
	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if c, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(c)
		}
	}
}

func (t *Transport) write(req Request) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout)); err != nil {
		return err
	}
	return t.conn.WriteJSON(req)
}

// call sends req and waits for its response. A non-zero code becomes an
// *rtc.Error carrying the vendor code and message.
func (t *Transport) call(ctx context.Context, req Request) (Frame, error) {
	req.ID = uuid.NewString()
	ch := make(chan Frame, 1)

	t.mu.Lock()
	select {
	case <-t.done:
		t.mu.Unlock()
		return Frame{}, rtc.ErrClosed
	default:
	}
	t.pending[req.ID] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, req.ID)
		t.mu.Unlock()
	}()

	if err := t.write(req); err != nil {
		return Frame{}, fmt.Errorf("send %s: %w", req.Type, err)
	}

	select {
	case f := <-ch:
		if f.Code != 0 {
			return f, &rtc.Error{Op: req.Type, Code: f.Code, Message: f.Message}
		}
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-t.done:
		return Frame{}, rtc.ErrClosed
	}
}

func (t *Transport) Login(ctx context.Context, participantID, credential string) error {
	_, err := t.call(ctx, Request{
		Type:     TypeLogin,
		UserID:   participantID,
		UserSig:  credential,
		SDKAppID: t.opts.SDKAppID,
	})
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.userID = participantID
	t.mu.Unlock()
	return nil
}

func (t *Transport) Logout(ctx context.Context) error {
	_, err := t.call(ctx, Request{Type: TypeLogout})
	t.mu.Lock()
	t.userID = ""
	t.mu.Unlock()
	return err
}

// CreateRoom creates info.RoomID; the creator is in the room on success.
func (t *Transport) CreateRoom(ctx context.Context, info rtc.RoomInfo) error {
	if _, err := t.call(ctx, Request{Type: TypeCreateRoom, Room: &info}); err != nil {
		return err
	}
	t.setRoom(info.RoomID)
	return nil
}

func (t *Transport) EnterRoom(ctx context.Context, roomID string) (rtc.RoomInfo, error) {
	f, err := t.call(ctx, Request{Type: TypeEnterRoom, RoomID: roomID})
	if err != nil {
		return rtc.RoomInfo{}, err
	}
	t.setRoom(roomID)
	if f.Room != nil {
		return *f.Room, nil
	}
	return rtc.RoomInfo{RoomID: roomID}, nil
}

// ExitRoom leaves the room and releases media whatever the service answers.
func (t *Transport) ExitRoom(ctx context.Context) error {
	_, err := t.call(ctx, Request{Type: TypeExitRoom})
	t.setRoom("")
	t.resetMedia()
	return err
}

func (t *Transport) FetchRoomInfo(ctx context.Context, roomID string, roomType rtc.RoomType) (rtc.RoomInfo, error) {
	f, err := t.call(ctx, Request{Type: TypeFetchRoomInfo, RoomID: roomID, RoomType: &roomType})
	if err != nil {
		return rtc.RoomInfo{}, err
	}
	if f.Room == nil {
		return rtc.RoomInfo{}, &rtc.Error{Op: TypeFetchRoomInfo, Code: -1, Message: "response carries no room"}
	}
	return *f.Room, nil
}

func (t *Transport) setRoom(id string) {
	t.mu.Lock()
	t.roomID = id
	t.mu.Unlock()
}

// RoomID returns the room the transport is in, if any.
func (t *Transport) RoomID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.roomID
}

func (t *Transport) session() (userID, roomID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.done:
		return "", "", rtc.ErrClosed
	default:
	}
	if t.roomID == "" {
		return "", "", rtc.ErrNotInRoom
	}
	return t.userID, t.roomID, nil
}

var errNoAnswer = errors.New("publish answer carries no sdp")

var _ rtc.Transport = (*Transport)(nil)
