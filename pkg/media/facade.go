// Package media switches the local camera and microphone on and off.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/rescp17/tutorCall/pkg/rtc"
)

type Device string

const (
	DeviceCamera     Device = "camera"
	DeviceMicrophone Device = "microphone"
)

// CodeUnknown is reported when the device failure carries no vendor code.
const CodeUnknown = -1

// MediaError is a failure to open a device. It never affects room state.
type MediaError struct {
	Device  Device
	Code    int
	Message string
	Err     error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("open %s failed (%d): %s", e.Device, e.Code, e.Message)
}

func (e *MediaError) Unwrap() error { return e.Err }

// State is the local device state.
type State struct {
	CameraOn     bool `json:"cameraOn"`
	MicrophoneOn bool `json:"microphoneOn"`
}

// Options selects how devices are opened.
type Options struct {
	FrontCamera  bool
	VideoQuality rtc.VideoQuality
	AudioQuality rtc.AudioQuality
}

func DefaultOptions() Options {
	return Options{
		FrontCamera:  true,
		VideoQuality: rtc.VideoQuality720P,
		AudioQuality: rtc.AudioQualityDefault,
	}
}

// Facade forwards device switches to the transport and tracks the result.
type Facade struct {
	devices rtc.Devices
	opts    Options

	mu    sync.Mutex
	state State
}

func NewFacade(devices rtc.Devices, opts Options) *Facade {
	return &Facade{devices: devices, opts: opts}
}

// SetCamera opens or closes the camera. Only opening can fail.
func (f *Facade) SetCamera(ctx context.Context, enabled bool) error {
	if !enabled {
		f.devices.CloseCamera()
		f.set(func(s *State) { s.CameraOn = false })
		log.Debug().Str("module", "media").Msg("camera off")
		return nil
	}
	if err := f.devices.OpenCamera(ctx, f.opts.FrontCamera, f.opts.VideoQuality); err != nil {
		return f.fail(DeviceCamera, err)
	}
	f.set(func(s *State) { s.CameraOn = true })
	log.Debug().Str("module", "media").Str("quality", f.opts.VideoQuality.String()).Msg("camera on")
	return nil
}

// SetMicrophone opens or closes the microphone. Only opening can fail.
func (f *Facade) SetMicrophone(ctx context.Context, enabled bool) error {
	if !enabled {
		f.devices.CloseMicrophone()
		f.set(func(s *State) { s.MicrophoneOn = false })
		log.Debug().Str("module", "media").Msg("microphone off")
		return nil
	}
	if err := f.devices.OpenMicrophone(ctx, f.opts.AudioQuality); err != nil {
		return f.fail(DeviceMicrophone, err)
	}
	f.set(func(s *State) { s.MicrophoneOn = true })
	log.Debug().Str("module", "media").Msg("microphone on")
	return nil
}

// ToggleCamera flips the camera and returns the new setting.
func (f *Facade) ToggleCamera(ctx context.Context) (bool, error) {
	want := !f.State().CameraOn
	if err := f.SetCamera(ctx, want); err != nil {
		return !want, err
	}
	return want, nil
}

// ToggleMicrophone flips the microphone and returns the new setting.
func (f *Facade) ToggleMicrophone(ctx context.Context) (bool, error) {
	want := !f.State().MicrophoneOn
	if err := f.SetMicrophone(ctx, want); err != nil {
		return !want, err
	}
	return want, nil
}

func (f *Facade) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Reset releases any open device.
func (f *Facade) Reset() {
	s := f.State()
	if s.CameraOn {
		f.devices.CloseCamera()
	}
	if s.MicrophoneOn {
		f.devices.CloseMicrophone()
	}
	f.set(func(s *State) { *s = State{} })
}

func (f *Facade) set(fn func(*State)) {
	f.mu.Lock()
	fn(&f.state)
	f.mu.Unlock()
}

func (f *Facade) fail(device Device, err error) error {
	me := &MediaError{Device: device, Code: CodeUnknown, Message: err.Error(), Err: err}
	if vendor, ok := rtc.AsError(err); ok {
		me.Code = vendor.Code
		me.Message = vendor.Message
	} else if errors.Is(err, rtc.ErrNotInRoom) || errors.Is(err, rtc.ErrNotConnected) {
		me.Message = "no active session"
	}
	log.Warn().Str("module", "media").Str("device", string(device)).
		Int("code", me.Code).Str("message", me.Message).Msg("device open failed")
	return me
}
