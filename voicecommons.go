/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Telnyx LLC
 */

// Package voicecommons is the top-level entry point for the voice
// signaling client. It wires the session orchestrator to a
// WebRTC-backed media factory so typical applications only deal with
// this package, credentials, and call handles.
package voicecommons

import (
	"sync"

	"github.com/team-telnyx/react-native-voice-commons-sub001/call"
	"github.com/team-telnyx/react-native-voice-commons-sub001/media"
	"github.com/team-telnyx/react-native-voice-commons-sub001/session"
	"github.com/team-telnyx/react-native-voice-commons-sub001/voicesdk"
)

// Client is the top-level client for the voice service.
type Client struct {
	credentials voicesdk.Credentials
	config      *voicesdk.Config
	mediaConfig *media.Config

	// Lazily initialized session orchestrator.
	orchestrator *session.Orchestrator

	// Mutex for thread-safe lazy initialization of the orchestrator.
	sessMu sync.Mutex
}

// NewClient creates a new voice client with the given credentials and
// optional configuration. Either a login token or a login/password pair
// must be set; the gateway URL and timeouts come from config, with
// defaults applied for any zero values.
func NewClient(credentials voicesdk.Credentials, config *voicesdk.Config) (*Client, error) {
	if err := credentials.Validate(); err != nil {
		return nil, err
	}
	if config == nil {
		config = voicesdk.DefaultConfig()
	}

	return &Client{
		credentials: credentials,
		config:      config,
	}, nil
}

// SetMediaConfig overrides the ICE configuration used for every media
// session the client creates. Must be called before Session.
func (c *Client) SetMediaConfig(mc *media.Config) {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	c.mediaConfig = mc
}

// Session returns the session orchestrator, creating it on first use
// with a media factory backed by this client's media configuration.
//
// Simple usage:
//
//	sess, err := client.Session()
//	sess.Emitter.On(session.EventIncomingCall, handler)
//	sess.Connect(ctx)
//	defer sess.Close()
func (c *Client) Session() (*session.Orchestrator, error) {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()

	if c.orchestrator != nil {
		return c.orchestrator, nil
	}

	mc := c.mediaConfig
	factory := func() (call.MediaSession, error) {
		return media.NewSession(mc)
	}

	orch, err := session.New(c.credentials, c.config, factory)
	if err != nil {
		return nil, err
	}
	c.orchestrator = orch
	return c.orchestrator, nil
}

// Config returns the client configuration.
func (c *Client) Config() *voicesdk.Config {
	return c.config
}
