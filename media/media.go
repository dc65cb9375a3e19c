/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Telnyx LLC
 */

// Package media provides the WebRTC-backed media session used by calls. The
// signaling engine only sees the call.MediaSession boundary; everything
// Pion-specific stays here.
package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"

	callpkg "github.com/team-telnyx/react-native-voice-commons-sub001/call"
)

// Config holds configuration for the media session.
type Config struct {
	// ICEServers is the list of ICE servers (STUN/TURN) to use.
	ICEServers []webrtc.ICEServer
}

// DefaultConfig returns a Config with a public STUN server. The gateway
// needs a srflx candidate to reach a client behind NAT.
func DefaultConfig() *Config {
	return &Config{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.telnyx.com:3478"}},
		},
	}
}

// Session implements call.MediaSession on a Pion peer connection.
type Session struct {
	mu sync.Mutex

	pc         *webrtc.PeerConnection
	localTrack *webrtc.TrackLocalStaticSample

	// Enabled flags per target/kind, consulted by the sample writer.
	streamState map[string]bool

	onRemoteTrack func(track *webrtc.TrackRemote)

	closed bool
}

// NewSession creates a media session with an audio transceiver already
// attached, ready to produce an offer or an answer.
func NewSession(config *Config) (*Session, error) {
	if config == nil {
		config = DefaultConfig()
	}

	// Register the narrow audio codec set the voice gateway negotiates.
	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		PayloadType:        111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("failed to register opus: %w", err)
	}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: 8000},
		PayloadType:        0,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("failed to register PCMU: %w", err)
	}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMA, ClockRate: 8000},
		PayloadType:        8,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("failed to register PCMA: %w", err)
	}

	// Default interceptors (RTCP reports, NACK) are required with a custom
	// MediaEngine, otherwise inbound SRTP is not processed properly.
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("failed to register default interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(registry),
	)

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: config.ICEServers})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	s := &Session{
		pc: pc,
		streamState: map[string]bool{
			streamKey(callpkg.TargetLocal, callpkg.StreamAudio):  true,
			streamKey(callpkg.TargetRemote, callpkg.StreamAudio): true,
		},
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio",
		"voice-commons",
	)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("failed to create audio track: %w", err)
	}
	s.localTrack = track

	transceiver, err := pc.AddTransceiverFromTrack(track,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionSendrecv},
	)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("failed to add audio transceiver: %w", err)
	}

	// Drain RTCP from the sender to keep the transport's feedback loop
	// running.
	go func() {
		sender := transceiver.Sender()
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.mu.Lock()
		handler := s.onRemoteTrack
		s.mu.Unlock()
		if handler != nil {
			handler(track)
		}
	})

	return s, nil
}

// OnRemoteTrack sets the callback invoked when remote audio arrives.
func (s *Session) OnRemoteTrack(handler func(track *webrtc.TrackRemote)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRemoteTrack = handler
}

// LocalTrack exposes the local sample track for the application's audio
// source.
func (s *Session) LocalTrack() *webrtc.TrackLocalStaticSample {
	return s.localTrack
}

// CreateOffer produces a local offer description.
func (s *Session) CreateOffer(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	return offer.SDP, nil
}

// CreateAnswer produces a local answer to a previously applied remote
// offer.
func (s *Session) CreateAnswer(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	return answer.SDP, nil
}

// SetRemoteDescription applies a remote description after a structural
// parse check, as an offer or answer. A duplicate answer while the
// signaling state is already stable is ignored; the gateway can deliver
// the same answer twice across a reconnect.
func (s *Session) SetRemoteDescription(sdpType callpkg.SDPType, rawSDP string) error {
	if err := validateSDP(rawSDP); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kind := webrtc.SDPTypeOffer
	if sdpType == callpkg.SDPAnswer {
		kind = webrtc.SDPTypeAnswer
		if s.pc.SignalingState() == webrtc.SignalingStateStable {
			return nil
		}
	}

	return s.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: kind,
		SDP:  rawSDP,
	})
}

// WaitForICEGatheringComplete blocks until candidate gathering finishes or
// the context is done.
func (s *Session) WaitForICEGatheringComplete(ctx context.Context) error {
	s.mu.Lock()
	done := webrtc.GatheringCompletePromise(s.pc)
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LocalDescription returns the current local description with gathered
// candidates included, or empty if none is set yet.
func (s *Session) LocalDescription() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	desc := s.pc.LocalDescription()
	if desc == nil {
		return ""
	}
	return desc.SDP
}

// SetMediaStreamState toggles the enabled flag on the selected stream. The
// local audio flag gates the application's sample writer; the remote flags
// gate playback.
func (s *Session) SetMediaStreamState(target callpkg.StreamTarget, kind callpkg.StreamKind, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("media session is closed")
	}
	s.streamState[streamKey(target, kind)] = enabled
	return nil
}

// StreamEnabled reports the enabled flag for the selected stream. Unset
// streams default to enabled.
func (s *Session) StreamEnabled(target callpkg.StreamTarget, kind callpkg.StreamKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	enabled, ok := s.streamState[streamKey(target, kind)]
	if !ok {
		return true
	}
	return enabled
}

// Close releases the peer connection. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.pc.Close()
}

// validateSDP rejects descriptions the SDP parser cannot make sense of
// before they reach the peer connection, so a garbled gateway payload
// surfaces as a clear error instead of a deep Pion failure.
func validateSDP(raw string) error {
	if raw == "" {
		return fmt.Errorf("empty session description")
	}
	var parsed sdp.SessionDescription
	if err := parsed.UnmarshalString(raw); err != nil {
		return fmt.Errorf("malformed session description: %w", err)
	}
	if len(parsed.MediaDescriptions) == 0 {
		return fmt.Errorf("session description carries no media sections")
	}
	return nil
}

func streamKey(target callpkg.StreamTarget, kind callpkg.StreamKind) string {
	return string(target) + "/" + string(kind)
}
