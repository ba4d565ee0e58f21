package videocall

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appevents "github.com/rescp17/tutorCall/internal/app_events"
	"github.com/rescp17/tutorCall/internal/app_events/session"
	"github.com/rescp17/tutorCall/pkg/concurrency"
	"github.com/rescp17/tutorCall/pkg/identity"
	"github.com/rescp17/tutorCall/pkg/room"
	"github.com/rescp17/tutorCall/pkg/rtc"
	"github.com/rescp17/tutorCall/pkg/rtc/rtctest"
)

type backendLog struct {
	mu    sync.Mutex
	calls []string
	fail  error
}

func (b *backendLog) NotifyCallStarted(ctx context.Context, questionID, roomID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "start:"+questionID+":"+roomID)
	return b.fail
}

func (b *backendLog) NotifyCallEnded(ctx context.Context, questionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "end:"+questionID)
	return b.fail
}

func (b *backendLog) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func noWait(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestApp(t *testing.T) (*App, *rtctest.FakeTransport, *backendLog) {
	t.Helper()
	tr := rtctest.New()
	backend := &backendLog{}
	opts := DefaultOptions()
	opts.Room = []room.Option{room.WithSleeper(noWait)}
	a := New(Deps{
		Transport:   tr,
		Credentials: identity.CredentialFunc(func(id string) (string, error) { return "sig-" + id, nil }),
		Backend:     backend,
	}, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return a, tr, backend
}

// runApp runs a until the test ends and waits for the event subscription.
func runApp(t *testing.T, a *App, tr *rtctest.FakeTransport) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	require.Eventually(t, func() bool { return tr.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
}

func ops(tr *rtctest.FakeTransport) []string {
	var out []string
	for _, c := range tr.Calls() {
		out = append(out, c.Op)
	}
	return out
}

func drain(a *App) []appevents.AppUIMessage {
	var out []appevents.AppUIMessage
	for {
		select {
		case m := <-a.UIMessages():
			out = append(out, m)
		default:
			return out
		}
	}
}

var start = StartRequest{RoomID: "abc-123", ParticipantID: "tutor1", QuestionID: "q1"}

func TestRequestStartSession(t *testing.T) {
	t.Run("happy_path", func(t *testing.T) {
		a, tr, backend := newTestApp(t)

		require.NoError(t, a.RequestStartSession(context.Background(), start))

		snap := a.Snapshot()
		assert.True(t, snap.InRoom())
		assert.Equal(t, "abc123", snap.RoomID)
		assert.Equal(t, "q1", snap.QuestionID)
		assert.Equal(t, "tutor1", snap.Participant)
		assert.True(t, snap.Media.CameraOn)
		assert.True(t, snap.Media.MicrophoneOn)
		assert.Empty(t, snap.LastError)
		assert.Equal(t, []string{
			rtctest.OpLogin, rtctest.OpCreateRoom, rtctest.OpOpenCamera, rtctest.OpOpenMicrophone,
		}, ops(tr))
		assert.Equal(t, "720p", tr.CallsOf(rtctest.OpOpenCamera)[0].Arg)
		assert.Eventually(t, func() bool {
			calls := backend.Calls()
			return len(calls) == 1 && calls[0] == "start:q1:abc123"
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("repeat_is_idempotent", func(t *testing.T) {
		a, tr, backend := newTestApp(t)
		require.NoError(t, a.RequestStartSession(context.Background(), start))

		require.NoError(t, a.RequestStartSession(context.Background(), start))

		assert.Equal(t, 1, tr.Count(rtctest.OpLogin))
		assert.Equal(t, 1, tr.Count(rtctest.OpCreateRoom))
		assert.Equal(t, 1, tr.Count(rtctest.OpOpenCamera))
		time.Sleep(20 * time.Millisecond)
		assert.Len(t, backend.Calls(), 1)
	})

	t.Run("entitlement_denied", func(t *testing.T) {
		a, tr, _ := newTestApp(t)
		tr.OnCreateRoom(func(ctx context.Context, info rtc.RoomInfo) error {
			return &rtc.Error{Op: "create_room", Code: 100007, Message: "no package"}
		})

		err := a.RequestStartSession(context.Background(), start)

		assert.ErrorIs(t, err, room.ErrEntitlementDenied)
		snap := a.Snapshot()
		assert.Equal(t, room.StateIdle, snap.State)
		assert.Equal(t, "entitlement_denied", snap.LastErrorKind)
		assert.NotEmpty(t, snap.LastError)
		assert.Zero(t, tr.Count(rtctest.OpEnterRoom))
		assert.Zero(t, tr.Count(rtctest.OpOpenCamera))
	})

	t.Run("invalid_room_id", func(t *testing.T) {
		a, tr, _ := newTestApp(t)

		err := a.RequestStartSession(context.Background(), StartRequest{RoomID: "---", ParticipantID: "tutor1"})

		assert.ErrorIs(t, err, room.ErrInvalidRoomID)
		assert.Equal(t, "invalid_room_id", a.Snapshot().LastErrorKind)
		assert.Zero(t, tr.Count(rtctest.OpCreateRoom))
	})

	t.Run("login_failure", func(t *testing.T) {
		a, tr, _ := newTestApp(t)
		tr.OnLogin(func(ctx context.Context, participantID, credential string) error {
			return &rtc.Error{Op: "login", Code: 70001, Message: "sig expired"}
		})

		err := a.RequestStartSession(context.Background(), start)

		var authErr *identity.AuthError
		require.True(t, errors.As(err, &authErr))
		assert.Equal(t, 70001, authErr.Code)
		assert.Equal(t, "auth_failed", a.Snapshot().LastErrorKind)
		assert.Zero(t, tr.Count(rtctest.OpCreateRoom))
	})

	t.Run("device_failure_keeps_call", func(t *testing.T) {
		a, tr, _ := newTestApp(t)
		tr.OnOpenCamera(func(ctx context.Context) error {
			return &rtc.Error{Op: "publish", Code: -1314, Message: "camera not permitted"}
		})

		require.NoError(t, a.RequestStartSession(context.Background(), start))

		snap := a.Snapshot()
		assert.True(t, snap.InRoom())
		assert.False(t, snap.Media.CameraOn)
		assert.True(t, snap.Media.MicrophoneOn)
		assert.Equal(t, "media_camera", snap.LastErrorKind)
		msgs := drain(a)
		require.Len(t, msgs, 1)
		assert.Equal(t, "start_media", msgs[0].(appevents.AppErrorMsg).Op)
	})

	t.Run("backend_failure_is_ignored", func(t *testing.T) {
		a, _, backend := newTestApp(t)
		backend.fail = errors.New("backend down")

		require.NoError(t, a.RequestStartSession(context.Background(), start))

		assert.True(t, a.Snapshot().InRoom())
	})

	t.Run("switching_participant_logs_out_first", func(t *testing.T) {
		a, tr, _ := newTestApp(t)
		require.NoError(t, a.RequestStartSession(context.Background(), start))
		require.NoError(t, a.RequestEndSession(context.Background()))

		require.NoError(t, a.RequestStartSession(context.Background(), StartRequest{RoomID: "abc123", ParticipantID: "tutor2"}))

		logins := tr.CallsOf(rtctest.OpLogin)
		require.Len(t, logins, 2)
		assert.Equal(t, "tutor2", logins[1].Arg)
		assert.Equal(t, 1, tr.Count(rtctest.OpLogout))
		assert.Equal(t, "tutor2", a.Snapshot().Participant)
	})

	t.Run("switching_participant_in_call_conflicts", func(t *testing.T) {
		a, tr, _ := newTestApp(t)
		require.NoError(t, a.RequestStartSession(context.Background(), start))

		err := a.RequestStartSession(context.Background(), StartRequest{RoomID: "other", ParticipantID: "tutor2"})

		assert.ErrorIs(t, err, identity.ErrIdentityConflict)
		assert.Zero(t, tr.Count(rtctest.OpLogout))
		assert.True(t, a.Snapshot().InRoom())
	})
}

func TestRequestEndSession(t *testing.T) {
	t.Run("tears_down_and_notifies", func(t *testing.T) {
		a, tr, backend := newTestApp(t)
		require.NoError(t, a.RequestStartSession(context.Background(), start))
		drain(a)

		require.NoError(t, a.RequestEndSession(context.Background()))

		snap := a.Snapshot()
		assert.Equal(t, room.StateIdle, snap.State)
		assert.False(t, snap.Media.CameraOn)
		assert.False(t, snap.Media.MicrophoneOn)
		assert.Empty(t, snap.QuestionID)
		assert.False(t, tr.CameraOpen())
		assert.False(t, tr.MicrophoneOpen())
		assert.Equal(t, 1, tr.Count(rtctest.OpExitRoom))
		assert.Zero(t, tr.Count(rtctest.OpLogout))

		msgs := drain(a)
		require.Len(t, msgs, 1)
		assert.Equal(t, session.SessionEndedMsg{RoomID: "abc123"}, msgs[0])
		assert.Eventually(t, func() bool {
			calls := backend.Calls()
			return len(calls) == 2 && calls[1] == "end:q1"
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("noop_when_idle", func(t *testing.T) {
		a, tr, _ := newTestApp(t)

		require.NoError(t, a.RequestEndSession(context.Background()))

		assert.Empty(t, tr.Calls())
	})

	t.Run("transport_failure_still_ends_locally", func(t *testing.T) {
		a, tr, _ := newTestApp(t)
		require.NoError(t, a.RequestStartSession(context.Background(), start))
		tr.OnExitRoom(func(ctx context.Context) error {
			return &rtc.Error{Op: "exit_room", Code: -1, Message: "network"}
		})

		err := a.RequestEndSession(context.Background())

		assert.Error(t, err)
		assert.Equal(t, room.StateIdle, a.Snapshot().State)
	})
}

func endsRequested(a *App) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ends
}

func TestEndDuringStart(t *testing.T) {
	t.Run("while_creating_room", func(t *testing.T) {
		a, tr, backend := newTestApp(t)
		release := make(chan struct{})
		tr.OnCreateRoom(func(ctx context.Context, info rtc.RoomInfo) error {
			<-release
			return nil
		})
		started := make(chan error, 1)
		go func() { started <- a.RequestStartSession(context.Background(), start) }()
		require.Eventually(t, func() bool { return tr.Count(rtctest.OpCreateRoom) == 1 }, time.Second, 5*time.Millisecond)

		ended := make(chan error, 1)
		go func() { ended <- a.RequestEndSession(context.Background()) }()
		require.Eventually(t, func() bool { return endsRequested(a) == 1 }, time.Second, 5*time.Millisecond)
		close(release)

		assert.ErrorIs(t, <-started, room.ErrCancelled)
		assert.NoError(t, <-ended)
		snap := a.Snapshot()
		assert.Equal(t, room.StateIdle, snap.State)
		assert.Empty(t, snap.QuestionID)
		assert.False(t, snap.Media.CameraOn)
		assert.Zero(t, tr.Count(rtctest.OpOpenCamera))
		assert.Equal(t, 1, tr.Count(rtctest.OpExitRoom))
		assert.Never(t, func() bool { return len(backend.Calls()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	})

	t.Run("while_logging_in", func(t *testing.T) {
		a, tr, backend := newTestApp(t)
		release := make(chan struct{})
		tr.OnLogin(func(ctx context.Context, participantID, credential string) error {
			<-release
			return nil
		})
		started := make(chan error, 1)
		go func() { started <- a.RequestStartSession(context.Background(), start) }()
		require.Eventually(t, func() bool { return tr.Count(rtctest.OpLogin) == 1 }, time.Second, 5*time.Millisecond)

		require.NoError(t, a.RequestEndSession(context.Background()))
		close(release)

		assert.ErrorIs(t, <-started, room.ErrCancelled)
		snap := a.Snapshot()
		assert.Equal(t, room.StateIdle, snap.State)
		assert.Empty(t, snap.QuestionID)
		assert.Equal(t, 1, tr.Count(rtctest.OpCreateRoom))
		assert.Equal(t, 1, tr.Count(rtctest.OpExitRoom))
		assert.Zero(t, tr.Count(rtctest.OpOpenCamera))
		assert.Never(t, func() bool { return len(backend.Calls()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	})

	t.Run("later_start_is_unaffected", func(t *testing.T) {
		a, _, backend := newTestApp(t)
		require.NoError(t, a.RequestEndSession(context.Background()))

		require.NoError(t, a.RequestStartSession(context.Background(), start))

		assert.True(t, a.Snapshot().InRoom())
		assert.Eventually(t, func() bool { return len(backend.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	})
}

func TestSwitchRoomEndsPreviousQuestion(t *testing.T) {
	a, tr, backend := newTestApp(t)
	require.NoError(t, a.RequestStartSession(context.Background(), start))

	require.NoError(t, a.RequestStartSession(context.Background(), StartRequest{RoomID: "room2", ParticipantID: "tutor1", QuestionID: "q2"}))

	assert.Equal(t, "room2", a.Snapshot().RoomID)
	assert.Equal(t, "q2", a.Snapshot().QuestionID)
	assert.Equal(t, 1, tr.Count(rtctest.OpExitRoom))
	require.Eventually(t, func() bool { return len(backend.Calls()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"start:q1:abc123", "end:q1", "start:q2:room2"}, backend.Calls())
	assert.True(t, a.Snapshot().Media.CameraOn)
}

func TestToggle(t *testing.T) {
	t.Run("requires_call", func(t *testing.T) {
		a, tr, _ := newTestApp(t)

		_, err := a.ToggleCamera(context.Background())
		assert.ErrorIs(t, err, ErrNoSession)
		_, err = a.ToggleMicrophone(context.Background())
		assert.ErrorIs(t, err, ErrNoSession)
		assert.Empty(t, tr.Calls())
	})

	t.Run("flips_devices", func(t *testing.T) {
		a, tr, _ := newTestApp(t)
		require.NoError(t, a.RequestStartSession(context.Background(), start))
		drain(a)

		on, err := a.ToggleCamera(context.Background())
		require.NoError(t, err)
		assert.False(t, on)
		assert.False(t, tr.CameraOpen())
		assert.False(t, a.Snapshot().Media.CameraOn)

		on, err = a.ToggleCamera(context.Background())
		require.NoError(t, err)
		assert.True(t, on)

		on, err = a.ToggleMicrophone(context.Background())
		require.NoError(t, err)
		assert.False(t, on)
		assert.False(t, a.Snapshot().Media.MicrophoneOn)

		assert.Equal(t, []appevents.AppUIMessage{
			session.DeviceToggledMsg{Device: "camera", On: false},
			session.DeviceToggledMsg{Device: "camera", On: true},
			session.DeviceToggledMsg{Device: "microphone", On: false},
		}, drain(a))
	})

	t.Run("concurrent_toggle_is_busy", func(t *testing.T) {
		a, tr, _ := newTestApp(t)
		require.NoError(t, a.RequestStartSession(context.Background(), start))
		_, err := a.ToggleCamera(context.Background())
		require.NoError(t, err)

		release := make(chan struct{})
		entered := make(chan struct{})
		tr.OnOpenCamera(func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		})
		first := make(chan error, 1)
		go func() {
			_, err := a.ToggleCamera(context.Background())
			first <- err
		}()
		<-entered

		_, err = a.ToggleCamera(context.Background())
		assert.ErrorIs(t, err, concurrency.ErrBusy)
		assert.Equal(t, "busy", ErrorKind(err))

		close(release)
		require.NoError(t, <-first)
		assert.True(t, a.Snapshot().Media.CameraOn)
	})
}

func TestRun_Presence(t *testing.T) {
	a, tr, _ := newTestApp(t)
	runApp(t, a, tr)
	require.NoError(t, a.RequestStartSession(context.Background(), start))

	tr.Emit(rtc.Event{Kind: rtc.EventRemoteJoined, ParticipantID: "student1"})
	tr.Emit(rtc.Event{Kind: rtc.EventRemoteVideoChanged, ParticipantID: "student1", Available: true})
	require.Eventually(t, func() bool {
		s := a.Snapshot()
		return s.Remote == "student1" && s.RemoteVideo && !s.RemoteAudio
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "student1", a.rooms.Session().RemoteID)

	tr.Emit(rtc.Event{Kind: rtc.EventRemoteLeft, ParticipantID: "someone-else"})
	tr.Emit(rtc.Event{Kind: rtc.EventRemoteLeft, ParticipantID: "student1"})
	require.Eventually(t, func() bool {
		s := a.Snapshot()
		return s.Remote == "" && !s.RemoteVideo
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, a.rooms.Session().RemoteID)
	assert.True(t, a.Snapshot().InRoom())
}

func TestRun_RemoteAlreadyPresent(t *testing.T) {
	a, tr, _ := newTestApp(t)
	runApp(t, a, tr)
	tr.Emit(rtc.Event{Kind: rtc.EventRemoteJoined, ParticipantID: "student1"})
	require.Eventually(t, func() bool { return a.Snapshot().Remote == "student1" }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.RequestStartSession(context.Background(), start))

	assert.Equal(t, "student1", a.rooms.Session().RemoteID)
}

func TestRun_AuthExpired(t *testing.T) {
	a, tr, _ := newTestApp(t)
	runApp(t, a, tr)
	require.NoError(t, a.RequestStartSession(context.Background(), start))
	drain(a)

	tr.Emit(rtc.Event{Kind: rtc.EventAuthExpired, Reason: "kicked_offline"})

	require.Eventually(t, func() bool {
		return a.Snapshot().State == room.StateIdle && tr.Count(rtctest.OpExitRoom) == 1
	}, time.Second, 5*time.Millisecond)
	_, loggedIn := a.identity.Identity()
	assert.False(t, loggedIn)
	assert.Equal(t, "auth_failed", a.Snapshot().LastErrorKind)
	assert.Contains(t, a.Snapshot().LastError, "kicked_offline")

	require.NoError(t, a.RequestStartSession(context.Background(), start))
	assert.Equal(t, 2, tr.Count(rtctest.OpLogin))
}

func TestRun_Commands(t *testing.T) {
	a, tr, _ := newTestApp(t)
	runApp(t, a, tr)

	a.AppEvents() <- session.StartSessionEvent{RoomID: "abc123", ParticipantID: "tutor1"}
	require.Eventually(t, func() bool { return a.Snapshot().InRoom() }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return a.Snapshot().Media.MicrophoneOn }, time.Second, 5*time.Millisecond)

	a.AppEvents() <- session.ToggleMicrophoneEvent{}
	select {
	case msg := <-a.UIMessages():
		assert.Equal(t, session.DeviceToggledMsg{Device: "microphone", On: false}, msg)
	case <-time.After(time.Second):
		t.Fatal("no toggle result")
	}

	a.AppEvents() <- session.EndSessionEvent{}
	select {
	case msg := <-a.UIMessages():
		assert.Equal(t, session.SessionEndedMsg{RoomID: "abc123"}, msg)
	case <-time.After(time.Second):
		t.Fatal("no end result")
	}

	a.AppEvents() <- session.ToggleCameraEvent{}
	select {
	case msg := <-a.UIMessages():
		errMsg, ok := msg.(appevents.AppErrorMsg)
		require.True(t, ok)
		assert.Equal(t, "toggle_camera", errMsg.Op)
		assert.ErrorIs(t, errMsg.Err, ErrNoSession)
	case <-time.After(time.Second):
		t.Fatal("no error result")
	}
}

func TestSubscribe(t *testing.T) {
	a, _, _ := newTestApp(t)
	snaps, cancel := a.Subscribe()
	defer cancel()
	assert.Equal(t, room.StateIdle, (<-snaps).State)

	require.NoError(t, a.RequestStartSession(context.Background(), start))

	require.Eventually(t, func() bool {
		select {
		case s := <-snaps:
			return s.InRoom() && s.Media.MicrophoneOn
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

type nopSurface struct{}

func (nopSurface) WriteRTP(*rtp.Packet) error { return nil }

func TestBindSurfaces(t *testing.T) {
	a, tr, _ := newTestApp(t)

	a.BindLocalSurface(nopSurface{})
	a.BindRemoteSurface("student1", nopSurface{})

	assert.NotNil(t, tr.LocalSurface())
	_, ok := tr.RemoteSurface("student1")
	assert.True(t, ok)

	a.BindRemoteSurface("student1", nil)
	_, ok = tr.RemoteSurface("student1")
	assert.False(t, ok)
}

func TestShutdown(t *testing.T) {
	a, tr, _ := newTestApp(t)
	snaps, _ := a.Subscribe()
	require.NoError(t, a.RequestStartSession(context.Background(), start))

	require.NoError(t, a.Shutdown(context.Background()))
	require.NoError(t, a.Shutdown(context.Background()))

	assert.Equal(t, 1, tr.Count(rtctest.OpExitRoom))
	assert.Equal(t, 1, tr.Count(rtctest.OpLogout))
	assert.False(t, tr.CameraOpen())
	for range snaps {
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNoSession, "no_session"},
		{&room.Error{Kind: room.KindRoomUnavailable}, "room_unavailable"},
		{&identity.AuthError{Code: identity.CodeInvalidParticipant}, "invalid_participant"},
		{errors.New("boom"), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err))
	}
}
