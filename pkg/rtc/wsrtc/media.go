package wsrtc

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/ice/v4"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/rescp17/tutorCall/pkg/rtc"
)

const MTU uint = 1400

// mediaState is guarded by Transport.mu.
type mediaState struct {
	pc          *webrtc.PeerConnection
	video       *webrtc.TrackLocalStaticRTP
	audio       *webrtc.TrackLocalStaticRTP
	videoSender *webrtc.RTPSender
	audioSender *webrtc.RTPSender
	videoOn     bool
	audioOn     bool
	local       rtc.VideoSurface
	remote      map[string]rtc.VideoSurface
}

func newAPI(opts Options) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	settings := webrtc.SettingEngine{}
	if opts.LANDiscovery {
		settings.SetICEMulticastDNSMode(ice.MulticastDNSModeQueryAndGather)
	} else {
		settings.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)
	}
	settings.SetReceiveMTU(MTU)
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(settings)), nil
}

// peerConnection returns the session's PeerConnection, creating it on first use.
func (t *Transport) peerConnection() (*webrtc.PeerConnection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.media.pc != nil {
		return t.media.pc, nil
	}
	var servers []webrtc.ICEServer
	if len(t.opts.ICEServers) > 0 {
		servers = []webrtc.ICEServer{{URLs: t.opts.ICEServers}}
	}
	pc, err := t.api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "wsrtc").Str("peer_connection_state", s.String()).Msg("peer state")
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().Str("module", "wsrtc").
			Str("kind", track.Kind().String()).
			Str("stream_id", track.StreamID()).
			Msg("remote track")
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go t.forwardRemote(track)
		}
	})
	t.media.pc = pc
	return pc, nil
}

// forwardRemote copies a remote video track to the surface bound for its
// participant. The stream id is the participant id.
func (t *Transport) forwardRemote(track *webrtc.TrackRemote) {
	participant := track.StreamID()
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("module", "wsrtc").Str("participant", participant).Msg("remote track ended")
			return
		}
		t.mu.Lock()
		s := t.media.remote[participant]
		t.mu.Unlock()
		if s == nil {
			continue
		}
		if err := s.WriteRTP(pkt); err != nil {
			log.Debug().Err(err).Str("module", "wsrtc").Str("participant", participant).Msg("remote surface write failed")
		}
	}
}

func (t *Transport) addRemoteCandidate(c webrtc.ICECandidateInit) {
	t.mu.Lock()
	pc := t.media.pc
	t.mu.Unlock()
	if pc == nil {
		log.Debug().Str("module", "wsrtc").Msg("candidate without peer connection")
		return
	}
	if err := pc.AddICECandidate(c); err != nil {
		log.Warn().Err(err).Str("module", "wsrtc").Msg("failed to add ice candidate")
	}
}

// publish runs one offer/answer round for the current track set.
func (t *Transport) publish(ctx context.Context, pc *webrtc.PeerConnection, req Request) error {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("fail to createOffer: %w", err)
	}
	gather := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("fail to set local description: %w", err)
	}
	select {
	case <-gather:
	case <-ctx.Done():
		t.rollback(pc)
		return ctx.Err()
	}

	req.Type = TypePublish
	req.SDP = pc.LocalDescription()
	f, err := t.call(ctx, req)
	if err != nil {
		t.rollback(pc)
		return err
	}
	if f.SDP == nil {
		t.rollback(pc)
		return &rtc.Error{Op: TypePublish, Code: -1, Message: errNoAnswer.Error()}
	}
	if err := pc.SetRemoteDescription(*f.SDP); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	return nil
}

func (t *Transport) rollback(pc *webrtc.PeerConnection) {
	if pc.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		return
	}
	if err := pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}); err != nil {
		log.Debug().Err(err).Str("module", "wsrtc").Msg("rollback failed")
	}
}

// OpenCamera adds the VP8 track on first use and publishes it.
func (t *Transport) OpenCamera(ctx context.Context, front bool, quality rtc.VideoQuality) error {
	userID, _, err := t.session()
	if err != nil {
		return err
	}
	t.negMu.Lock()
	defer t.negMu.Unlock()

	pc, err := t.peerConnection()
	if err != nil {
		return err
	}
	t.mu.Lock()
	track := t.media.video
	t.mu.Unlock()
	if track == nil {
		track, err = webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", userID)
		if err != nil {
			return fmt.Errorf("create video track: %w", err)
		}
		sender, err := pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("add video track: %w", err)
		}
		go drainRTCP(sender)
		t.mu.Lock()
		t.media.video, t.media.videoSender = track, sender
		t.mu.Unlock()
	}

	camera := "back"
	if front {
		camera = "front"
	}
	if err := t.publish(ctx, pc, Request{Kind: KindVideo, Camera: camera, Quality: quality.String()}); err != nil {
		return err
	}
	t.mu.Lock()
	t.media.videoOn = true
	t.mu.Unlock()
	return nil
}

// OpenMicrophone adds the Opus track on first use and publishes it.
func (t *Transport) OpenMicrophone(ctx context.Context, quality rtc.AudioQuality) error {
	userID, _, err := t.session()
	if err != nil {
		return err
	}
	t.negMu.Lock()
	defer t.negMu.Unlock()

	pc, err := t.peerConnection()
	if err != nil {
		return err
	}
	t.mu.Lock()
	track := t.media.audio
	t.mu.Unlock()
	if track == nil {
		track, err = webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", userID)
		if err != nil {
			return fmt.Errorf("create audio track: %w", err)
		}
		sender, err := pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("add audio track: %w", err)
		}
		go drainRTCP(sender)
		t.mu.Lock()
		t.media.audio, t.media.audioSender = track, sender
		t.mu.Unlock()
	}

	if err := t.publish(ctx, pc, Request{Kind: KindAudio, Quality: audioQuality(quality)}); err != nil {
		return err
	}
	t.mu.Lock()
	t.media.audioOn = true
	t.mu.Unlock()
	return nil
}

func (t *Transport) CloseCamera() {
	t.mu.Lock()
	was := t.media.videoOn
	t.media.videoOn = false
	t.mu.Unlock()
	if was {
		t.unpublish(KindVideo)
	}
}

func (t *Transport) CloseMicrophone() {
	t.mu.Lock()
	was := t.media.audioOn
	t.media.audioOn = false
	t.mu.Unlock()
	if was {
		t.unpublish(KindAudio)
	}
}

// unpublish tells the service to stop forwarding kind. Best effort.
func (t *Transport) unpublish(kind string) {
	if _, _, err := t.session(); err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.opts.WriteTimeout)
		defer cancel()
		if _, err := t.call(ctx, Request{Type: TypeUnpublish, Kind: kind}); err != nil {
			log.Debug().Err(err).Str("module", "wsrtc").Str("kind", kind).Msg("unpublish failed")
		}
	}()
}

// WriteLocalVideo sends a captured video packet and mirrors it to the local
// surface. Packets are dropped while the camera is off.
func (t *Transport) WriteLocalVideo(pkt *rtp.Packet) error {
	t.mu.Lock()
	on, track, local := t.media.videoOn, t.media.video, t.media.local
	t.mu.Unlock()
	if !on || track == nil {
		return nil
	}
	if local != nil {
		if err := local.WriteRTP(pkt); err != nil {
			log.Debug().Err(err).Str("module", "wsrtc").Msg("local surface write failed")
		}
	}
	return track.WriteRTP(pkt)
}

// WriteLocalAudio sends a captured audio packet. Dropped while muted.
func (t *Transport) WriteLocalAudio(pkt *rtp.Packet) error {
	t.mu.Lock()
	on, track := t.media.audioOn, t.media.audio
	t.mu.Unlock()
	if !on || track == nil {
		return nil
	}
	return track.WriteRTP(pkt)
}

func (t *Transport) SetLocalVideoSurface(s rtc.VideoSurface) {
	t.mu.Lock()
	t.media.local = s
	t.mu.Unlock()
}

func (t *Transport) SetRemoteVideoSurface(participantID string, s rtc.VideoSurface) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s == nil {
		delete(t.media.remote, participantID)
		return
	}
	t.media.remote[participantID] = s
}

// resetMedia closes the PeerConnection and forgets local tracks. Surface
// bindings are kept.
func (t *Transport) resetMedia() {
	t.mu.Lock()
	pc := t.media.pc
	t.media.pc = nil
	t.media.video, t.media.audio = nil, nil
	t.media.videoSender, t.media.audioSender = nil, nil
	t.media.videoOn, t.media.audioOn = false, false
	t.mu.Unlock()
	if pc == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		if err := pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "wsrtc").Msg("close error")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		log.Warn().Str("module", "wsrtc").Msg("peer connection close timed out")
	}
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func audioQuality(q rtc.AudioQuality) string {
	switch q {
	case rtc.AudioQualitySpeech:
		return "speech"
	case rtc.AudioQualityMusic:
		return "music"
	default:
		return "default"
	}
}
