// Package rtctest provides a scriptable in-memory rtc.Transport for tests.
package rtctest

import (
	"context"
	"sync"
	"time"

	"github.com/rescp17/tutorCall/pkg/rtc"
)

// Operation names recorded by FakeTransport.
const (
	OpLogin          = "login"
	OpLogout         = "logout"
	OpCreateRoom     = "create_room"
	OpEnterRoom      = "enter_room"
	OpExitRoom       = "exit_room"
	OpFetchRoomInfo  = "fetch_room_info"
	OpOpenCamera     = "open_camera"
	OpCloseCamera    = "close_camera"
	OpOpenMicrophone = "open_microphone"
	OpCloseMic       = "close_microphone"
)

// Call is one recorded transport invocation.
type Call struct {
	Op  string
	Arg string
	At  time.Time
}

// FakeTransport records every call and delegates behaviour to optional hooks.
// A nil hook means success.
type FakeTransport struct {
	mu    sync.Mutex
	calls []Call

	login      func(ctx context.Context, participantID, credential string) error
	createRoom func(ctx context.Context, info rtc.RoomInfo) error
	enterRoom  func(ctx context.Context, roomID string) (rtc.RoomInfo, error)
	exitRoom   func(ctx context.Context) error
	fetchRoom  func(ctx context.Context, roomID string) (rtc.RoomInfo, error)
	openCamera func(ctx context.Context) error
	openMic    func(ctx context.Context) error

	cameraOpen     bool
	micOpen        bool
	localSurface   rtc.VideoSurface
	remoteSurfaces map[string]rtc.VideoSurface

	subs    map[int]chan rtc.Event
	nextSub int
}

func New() *FakeTransport {
	return &FakeTransport{
		remoteSurfaces: make(map[string]rtc.VideoSurface),
		subs:           make(map[int]chan rtc.Event),
	}
}

func (f *FakeTransport) OnLogin(fn func(ctx context.Context, participantID, credential string) error) {
	f.mu.Lock()
	f.login = fn
	f.mu.Unlock()
}

func (f *FakeTransport) OnCreateRoom(fn func(ctx context.Context, info rtc.RoomInfo) error) {
	f.mu.Lock()
	f.createRoom = fn
	f.mu.Unlock()
}

func (f *FakeTransport) OnEnterRoom(fn func(ctx context.Context, roomID string) (rtc.RoomInfo, error)) {
	f.mu.Lock()
	f.enterRoom = fn
	f.mu.Unlock()
}

func (f *FakeTransport) OnExitRoom(fn func(ctx context.Context) error) {
	f.mu.Lock()
	f.exitRoom = fn
	f.mu.Unlock()
}

func (f *FakeTransport) OnFetchRoomInfo(fn func(ctx context.Context, roomID string) (rtc.RoomInfo, error)) {
	f.mu.Lock()
	f.fetchRoom = fn
	f.mu.Unlock()
}

func (f *FakeTransport) OnOpenCamera(fn func(ctx context.Context) error) {
	f.mu.Lock()
	f.openCamera = fn
	f.mu.Unlock()
}

func (f *FakeTransport) OnOpenMicrophone(fn func(ctx context.Context) error) {
	f.mu.Lock()
	f.openMic = fn
	f.mu.Unlock()
}

func (f *FakeTransport) record(op, arg string) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: op, Arg: arg, At: time.Now()})
	f.mu.Unlock()
}

// Calls returns a copy of every recorded call in order.
func (f *FakeTransport) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns how many times op was invoked.
func (f *FakeTransport) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// CallsOf returns the recorded calls for op.
func (f *FakeTransport) CallsOf(op string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeTransport) Login(ctx context.Context, participantID, credential string) error {
	f.record(OpLogin, participantID)
	f.mu.Lock()
	fn := f.login
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, participantID, credential)
	}
	return nil
}

func (f *FakeTransport) Logout(ctx context.Context) error {
	f.record(OpLogout, "")
	return nil
}

func (f *FakeTransport) CreateRoom(ctx context.Context, info rtc.RoomInfo) error {
	f.record(OpCreateRoom, info.RoomID)
	f.mu.Lock()
	fn := f.createRoom
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, info)
	}
	return nil
}

func (f *FakeTransport) EnterRoom(ctx context.Context, roomID string) (rtc.RoomInfo, error) {
	f.record(OpEnterRoom, roomID)
	f.mu.Lock()
	fn := f.enterRoom
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, roomID)
	}
	return rtc.RoomInfo{RoomID: roomID}, nil
}

func (f *FakeTransport) ExitRoom(ctx context.Context) error {
	f.record(OpExitRoom, "")
	f.mu.Lock()
	fn := f.exitRoom
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

func (f *FakeTransport) FetchRoomInfo(ctx context.Context, roomID string, roomType rtc.RoomType) (rtc.RoomInfo, error) {
	f.record(OpFetchRoomInfo, roomID)
	f.mu.Lock()
	fn := f.fetchRoom
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, roomID)
	}
	return rtc.RoomInfo{RoomID: roomID, Type: roomType}, nil
}

func (f *FakeTransport) OpenCamera(ctx context.Context, front bool, quality rtc.VideoQuality) error {
	f.record(OpOpenCamera, quality.String())
	f.mu.Lock()
	fn := f.openCamera
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.cameraOpen = true
	f.mu.Unlock()
	return nil
}

func (f *FakeTransport) CloseCamera() {
	f.record(OpCloseCamera, "")
	f.mu.Lock()
	f.cameraOpen = false
	f.mu.Unlock()
}

func (f *FakeTransport) OpenMicrophone(ctx context.Context, quality rtc.AudioQuality) error {
	f.record(OpOpenMicrophone, "")
	f.mu.Lock()
	fn := f.openMic
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.micOpen = true
	f.mu.Unlock()
	return nil
}

func (f *FakeTransport) CloseMicrophone() {
	f.record(OpCloseMic, "")
	f.mu.Lock()
	f.micOpen = false
	f.mu.Unlock()
}

func (f *FakeTransport) CameraOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cameraOpen
}

func (f *FakeTransport) MicrophoneOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.micOpen
}

func (f *FakeTransport) SetLocalVideoSurface(s rtc.VideoSurface) {
	f.mu.Lock()
	f.localSurface = s
	f.mu.Unlock()
}

func (f *FakeTransport) SetRemoteVideoSurface(participantID string, s rtc.VideoSurface) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s == nil {
		delete(f.remoteSurfaces, participantID)
		return
	}
	f.remoteSurfaces[participantID] = s
}

// RemoteSurface reports the surface bound for participantID.
func (f *FakeTransport) RemoteSurface(participantID string) (rtc.VideoSurface, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.remoteSurfaces[participantID]
	return s, ok
}

func (f *FakeTransport) LocalSurface() rtc.VideoSurface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.localSurface
}

func (f *FakeTransport) Subscribe() (<-chan rtc.Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	ch := make(chan rtc.Event, 16)
	f.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Emit delivers ev to every subscriber. Subscriber handlers must not call
// back into the fake while it is delivering.
func (f *FakeTransport) Emit(ev rtc.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- ev
	}
}

// Subscribers reports the number of live subscriptions.
func (f *FakeTransport) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

var _ rtc.Transport = (*FakeTransport)(nil)
