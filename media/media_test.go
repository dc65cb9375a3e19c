/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Telnyx LLC
 */

package media

import (
	"context"
	"testing"
	"time"

	callpkg "github.com/team-telnyx/react-native-voice-commons-sub001/call"
)

// localConfig avoids external STUN servers so tests stay on-host.
func localConfig() *Config {
	return &Config{}
}

func TestNewSessionAndClose(t *testing.T) {
	s, err := NewSession(localConfig())
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	if s.LocalTrack() == nil {
		t.Error("Expected a local audio track")
	}
	if s.LocalDescription() != "" {
		t.Error("Expected empty local description before an offer")
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	// Idempotent.
	if err := s.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

func TestCreateOfferProducesAudioSection(t *testing.T) {
	s, err := NewSession(localConfig())
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	offer, err := s.CreateOffer(ctx)
	if err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}
	if err := validateSDP(offer); err != nil {
		t.Errorf("Offer failed validation: %v", err)
	}
	if s.LocalDescription() == "" {
		t.Error("Expected local description to be set after CreateOffer")
	}
}

func TestStreamStateFlags(t *testing.T) {
	s, err := NewSession(localConfig())
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer s.Close()

	if !s.StreamEnabled(callpkg.TargetLocal, callpkg.StreamAudio) {
		t.Error("Expected local audio to start enabled")
	}

	if err := s.SetMediaStreamState(callpkg.TargetLocal, callpkg.StreamAudio, false); err != nil {
		t.Fatalf("SetMediaStreamState failed: %v", err)
	}
	if s.StreamEnabled(callpkg.TargetLocal, callpkg.StreamAudio) {
		t.Error("Expected local audio to be disabled")
	}

	// Unset streams default to enabled.
	if !s.StreamEnabled(callpkg.TargetRemote, callpkg.StreamVideo) {
		t.Error("Expected unset stream to report enabled")
	}

	s.Close()
	if err := s.SetMediaStreamState(callpkg.TargetLocal, callpkg.StreamAudio, true); err == nil {
		t.Error("Expected error toggling a closed session")
	}
}

func TestValidateSDP(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if err := validateSDP(""); err == nil {
			t.Error("Expected error for empty description")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if err := validateSDP("this is not sdp"); err == nil {
			t.Error("Expected error for malformed description")
		}
	})

	t.Run("no media sections", func(t *testing.T) {
		raw := "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"
		if err := validateSDP(raw); err == nil {
			t.Error("Expected error for description without media sections")
		}
	})

	t.Run("valid audio description", func(t *testing.T) {
		raw := "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n" +
			"m=audio 9 UDP/TLS/RTP/SAVPF 0\r\nc=IN IP4 0.0.0.0\r\na=rtpmap:0 PCMU/8000\r\n"
		if err := validateSDP(raw); err != nil {
			t.Errorf("Expected valid description, got %v", err)
		}
	})
}
