/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Telnyx LLC
 */

// Package session implements the session orchestrator: the single point of
// truth for which calls exist, session-wide identity, and resilience to
// connectivity loss. It owns the transaction channel and the call registry,
// routes inbound signaling events to the right call, and resolves ordering
// races between externally queued actions and arriving protocol events.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/team-telnyx/react-native-voice-commons-sub001/call"
	"github.com/team-telnyx/react-native-voice-commons-sub001/channel"
	"github.com/team-telnyx/react-native-voice-commons-sub001/voicesdk"
)

// Session event names published through the orchestrator's Emitter.
const (
	EventConnected       = "connected"
	EventDisconnected    = "disconnected"
	EventReconnecting    = "reconnecting"
	EventReconnectFailed = "reconnect_failed"
	EventIncomingCall    = "incoming_call"
	EventRegistration    = "registration"
)

// Gateway registration states reported via EventRegistration.
const (
	GatewayStateRegistered   = "REGED"
	GatewayStateUnregistered = "NOREG"
)

// actionTimeout bounds the gateway round-trips of an externally queued
// answer/decline execution.
const actionTimeout = 30 * time.Second

// MediaFactory creates a fresh media session for a materializing or
// reattaching call.
type MediaFactory func() (call.MediaSession, error)

// loginParams is the payload of the login request.
type loginParams struct {
	Login      string `json:"login,omitempty"`
	Password   string `json:"passwd,omitempty"`
	LoginToken string `json:"login_token,omitempty"`
	SessionID  string `json:"sessid,omitempty"`
}

// loginResult is the payload of a successful login reply.
type loginResult struct {
	SessionID string `json:"sessid"`
}

// gatewayStateResult is the payload of a gateway state query reply.
type gatewayStateResult struct {
	State string `json:"state"`
}

// pendingAction is an externally queued answer or decline, waiting for its
// call to materialize. At most one of each kind is outstanding; a newer
// request overwrites the older one.
type pendingAction struct {
	headers voicesdk.Headers
}

// Orchestrator owns the channel, the call registry, and the reconnection
// control loop.
type Orchestrator struct {
	mu sync.RWMutex

	config      *voicesdk.Config
	credentials voicesdk.Credentials
	logger      voicesdk.Logger

	ch           *channel.Channel
	mediaFactory MediaFactory

	// sessionID is the gateway-assigned session identity, held explicitly
	// here (not ambient state) and cleared on Close.
	sessionID string

	// Call registry: callOrder preserves insertion order for the legacy
	// current-call accessor; calls is the id lookup.
	calls     map[string]*call.Call
	callOrder []string

	// At most one buffered invite; a later invite overwrites an earlier
	// unconsumed one.
	pendingInvite *call.InviteParams

	// Buffered media events keyed by call id: at most one per id, latest
	// overwrites, consumed the moment the call is created.
	pendingMedia map[string]*call.MediaParams

	// Externally queued actions.
	pendingAnswer *pendingAction
	pendingEnd    *pendingAction

	// Out-of-band correlation to bind to the next materialized call.
	pushCorrelationID string

	// Reconnection state, one instance per orchestrator lifetime.
	reconnecting   bool
	networkKind    string
	reconnectTimer *time.Timer

	unsubscribe func()

	// Emitter publishes session-level events.
	Emitter *voicesdk.EventEmitter
}

// New creates an orchestrator. The media factory is invoked once per
// materializing inbound call and once per reattachment.
func New(credentials voicesdk.Credentials, config *voicesdk.Config, mediaFactory MediaFactory) (*Orchestrator, error) {
	if err := credentials.Validate(); err != nil {
		return nil, err
	}
	if mediaFactory == nil {
		return nil, fmt.Errorf("orchestrator requires a media factory")
	}
	if config == nil {
		config = voicesdk.DefaultConfig()
	}

	o := &Orchestrator{
		config:       config,
		credentials:  credentials,
		logger:       config.GetLogger(),
		mediaFactory: mediaFactory,
		calls:        make(map[string]*call.Call),
		pendingMedia: make(map[string]*call.MediaParams),
		Emitter:      voicesdk.NewEventEmitter(),
	}
	o.attachChannel(channel.New(nil, o.logger))
	return o, nil
}

// attachChannel wires the orchestrator to a channel's message stream and
// lifecycle events.
func (o *Orchestrator) attachChannel(ch *channel.Channel) {
	o.ch = ch
	o.unsubscribe = ch.OnMessage(o.handleMessage)
	ch.Emitter.On(channel.EventError, func(interface{}) {
		o.OnNetworkLost()
	})
}

// Channel exposes the transaction channel, primarily for tests and the
// facade.
func (o *Orchestrator) Channel() *channel.Channel {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.ch
}

// SessionID returns the gateway-assigned session identity, empty before
// login completes.
func (o *Orchestrator) SessionID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sessionID
}

// ---- Connect / login ----

// Connect dials the gateway, logs in, and queries the registration state.
// A buffered invite that arrived before the session was ready is replayed
// once login completes.
func (o *Orchestrator) Connect(ctx context.Context) error {
	if token := o.credentials.LoginToken; token != "" {
		if expiry, err := voicesdk.TokenExpiry(token); err != nil {
			o.logger.Printf("session: could not inspect login token: %v", err)
		} else if !expiry.IsZero() {
			if time.Now().After(expiry) {
				return voicesdk.NewPreconditionError("login", "login token is expired")
			}
			if time.Until(expiry) < o.config.ReconnectTimeout {
				o.logger.Printf("session: login token expires in %s, sooner than the reconnect window", time.Until(expiry).Round(time.Second))
			}
		}
	}

	if err := o.ch.Connect(ctx, o.config.GatewayURL, nil); err != nil {
		return err
	}

	if err := o.login(ctx); err != nil {
		return err
	}

	o.Emitter.Emit(EventConnected, o.SessionID())

	o.queryGatewayState(ctx)
	o.replayPendingInvite()
	return nil
}

// login performs the credential exchange and records the session identity.
func (o *Orchestrator) login(ctx context.Context) error {
	params := &loginParams{
		Login:      o.credentials.Login,
		Password:   o.credentials.Password,
		LoginToken: o.credentials.LoginToken,
		SessionID:  o.credentials.SessionID,
	}
	// Reattaching to a previous session keeps its identity.
	if prior := o.SessionID(); prior != "" {
		params.SessionID = prior
	}

	req, err := channel.NewRequest(call.MethodLogin, params)
	if err != nil {
		return err
	}
	reply, err := o.ch.SendAndWait(ctx, req)
	if err != nil {
		return err
	}
	if reply.Error != nil {
		return voicesdk.NewProtocolError("login", reply.Error.Code, reply.Error.Message)
	}

	var result loginResult
	if err := reply.UnmarshalResult(&result); err != nil {
		return voicesdk.NewProtocolError("login", 0, "malformed login result")
	}

	o.mu.Lock()
	o.sessionID = result.SessionID
	o.mu.Unlock()
	return nil
}

// queryGatewayState asks the gateway for its registration state and emits
// the answer. Best-effort: a failure is logged, not fatal to the session.
func (o *Orchestrator) queryGatewayState(ctx context.Context) {
	req, err := channel.NewRequest(call.MethodGatewayState, struct{}{})
	if err != nil {
		return
	}
	reply, err := o.ch.SendAndWait(ctx, req)
	if err != nil || reply.Error != nil {
		o.logger.Printf("session: gateway state query failed")
		return
	}
	var result gatewayStateResult
	if err := reply.UnmarshalResult(&result); err != nil {
		o.logger.Printf("session: malformed gateway state result")
		return
	}
	o.Emitter.Emit(EventRegistration, result.State)
}

// Close tears down the session: the channel closes permanently, pending
// request/reply callers fail with a connection-closed error, and the
// session identity is discarded. Registered calls are left in place so the
// application can still inspect their final states.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.reconnectTimer != nil {
		o.reconnectTimer.Stop()
		o.reconnectTimer = nil
	}
	o.reconnecting = false
	o.sessionID = ""
	unsubscribe := o.unsubscribe
	o.unsubscribe = nil
	o.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	o.ch.Close()
	o.Emitter.Emit(EventDisconnected, nil)
}

// ---- Call registry ----

// isLive is the single liveness predicate shared by CurrentCall,
// ActiveCalls, and HasActiveCalls: everything but ended counts as active,
// dropped included, because dropped denotes temporary connectivity loss,
// not termination.
func isLive(c *call.Call) bool {
	return c.State() != call.StateEnded
}

// GetCall looks up a call by id.
func (o *Orchestrator) GetCall(id string) *call.Call {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.calls[id]
}

// CurrentCall returns the first live call in registry insertion order, or
// nil. Legacy single-call accessor.
func (o *Orchestrator) CurrentCall() *call.Call {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, id := range o.callOrder {
		if c := o.calls[id]; c != nil && isLive(c) {
			return c
		}
	}
	return nil
}

// ActiveCalls returns all live calls in registry insertion order.
func (o *Orchestrator) ActiveCalls() []*call.Call {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var live []*call.Call
	for _, id := range o.callOrder {
		if c := o.calls[id]; c != nil && isLive(c) {
			live = append(live, c)
		}
	}
	return live
}

// HasActiveCalls reports whether any live call exists.
func (o *Orchestrator) HasActiveCalls() bool {
	return len(o.ActiveCalls()) > 0
}

// RemoveCall removes a call from the registry. Registry entries are only
// removed by this explicit cleanup, never automatically on ended. State is
// the liveness signal, not registry membership, so a just-ended call stays
// inspectable until the application lets it go.
func (o *Orchestrator) RemoveCall(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.calls[id]; !ok {
		return
	}
	delete(o.calls, id)
	for i, existing := range o.callOrder {
		if existing == id {
			o.callOrder = append(o.callOrder[:i], o.callOrder[i+1:]...)
			break
		}
	}
}

// registerCall adds a call to the registry, keeping ids unique.
func (o *Orchestrator) registerCall(c *call.Call) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.calls[c.ID()]; !exists {
		o.callOrder = append(o.callOrder, c.ID())
	}
	o.calls[c.ID()] = c
}

// ---- Outbound calls ----

// NewCall originates an outbound call to the destination and sends its
// invite. The call is registered before dialing so events racing the invite
// acknowledgment still route.
func (o *Orchestrator) NewCall(ctx context.Context, destination string, headers voicesdk.Headers) (*call.Call, error) {
	if o.SessionID() == "" {
		return nil, voicesdk.NewPreconditionError("invite", "session is not established")
	}

	media, err := o.mediaFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create media session: %w", err)
	}

	c, err := call.New(o.ch, call.Config{
		ID:        newCallID(),
		Direction: call.DirectionOutbound,
		SessionID: o.SessionID(),
		Media:     media,
		Logger:    o.logger,
	})
	if err != nil {
		_ = media.Close()
		return nil, err
	}

	o.registerCall(c)

	if err := c.Dial(ctx, destination, headers); err != nil {
		c.Hangup(nil)
		return nil, err
	}
	return c, nil
}

// ---- Externally queued actions ----

// QueueAnswer queues an answer (e.g. from a push-notification accept) to be
// applied to the matching call, which may not exist yet. A newer queued
// answer overwrites an older one; the action is cleared after its one
// execution attempt regardless of outcome, so a failed attempt is never
// silently retried.
func (o *Orchestrator) QueueAnswer(headers voicesdk.Headers) {
	o.mu.Lock()
	o.pendingAnswer = &pendingAction{headers: headers}
	o.mu.Unlock()

	if c := o.CurrentCall(); c != nil && c.State() == call.StateRinging {
		o.executePendingActions(c)
	}
}

// QueueDecline queues a decline/end for the matching call, which may not
// exist yet. Same overwrite and clear-after-attempt semantics as
// QueueAnswer.
func (o *Orchestrator) QueueDecline(headers voicesdk.Headers) {
	o.mu.Lock()
	o.pendingEnd = &pendingAction{headers: headers}
	o.mu.Unlock()

	if c := o.CurrentCall(); c != nil && c.State() == call.StateRinging {
		o.executePendingActions(c)
	}
}

// SetPushCorrelationID records an out-of-band correlation identifier (from
// a push notification) to bind to the next materialized inbound call. The
// binding happens exactly once, at call construction.
func (o *Orchestrator) SetPushCorrelationID(id string) {
	o.mu.Lock()
	o.pushCorrelationID = id
	o.mu.Unlock()
}

// executePendingActions consumes the outstanding actions and applies them
// to the call. A queued decline takes precedence over a queued answer.
func (o *Orchestrator) executePendingActions(c *call.Call) {
	o.mu.Lock()
	answer := o.pendingAnswer
	end := o.pendingEnd
	o.pendingAnswer = nil
	o.pendingEnd = nil
	o.mu.Unlock()

	if end != nil {
		c.Hangup(end.headers)
		return
	}
	if answer == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := c.Answer(ctx, answer.headers); err != nil {
			o.logger.Printf("session: queued answer for call %s failed: %v", c.ID(), err)
		}
	}()
}

// hasPendingActions reports whether an externally queued action is waiting.
func (o *Orchestrator) hasPendingActions() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.pendingAnswer != nil || o.pendingEnd != nil
}

// ---- Inbound event routing ----

// handleMessage is the single entry point for inbound channel traffic. It
// runs on the channel's read pump: registry mutations are sequential
// reactions to one event stream. Handlers that suspend on a gateway
// round-trip run on their own goroutine so the pump keeps draining.
func (o *Orchestrator) handleMessage(msg *channel.Message) {
	if msg.IsReply() || msg.Method == "" {
		return
	}

	switch msg.Method {
	case call.MethodInvite:
		var params call.InviteParams
		if err := msg.UnmarshalParams(&params); err != nil {
			o.logger.Printf("session: malformed invite: %v", err)
			return
		}
		o.ack(msg)
		o.handleInvite(&params)

	case call.MethodAttach:
		var params call.InviteParams
		if err := msg.UnmarshalParams(&params); err != nil {
			o.logger.Printf("session: malformed attach: %v", err)
			return
		}
		o.ack(msg)
		o.handleAttach(&params)

	case call.MethodRinging:
		var params call.RingingParams
		if err := msg.UnmarshalParams(&params); err != nil {
			o.logger.Printf("session: malformed ringing event: %v", err)
			return
		}
		o.ack(msg)
		if c := o.GetCall(params.CallID); c != nil {
			c.HandleRinging(&params)
		} else {
			o.logger.Printf("session: ringing event for unknown call %s", params.CallID)
		}

	case call.MethodAnswer:
		var params call.AnswerEventParams
		if err := msg.UnmarshalParams(&params); err != nil {
			o.logger.Printf("session: malformed answer event: %v", err)
			return
		}
		o.ack(msg)
		if c := o.GetCall(params.CallID); c != nil {
			c.HandleAnswerEvent(&params)
		} else {
			o.logger.Printf("session: answer event for unknown call %s", params.CallID)
		}

	case call.MethodMedia:
		var params call.MediaParams
		if err := msg.UnmarshalParams(&params); err != nil {
			o.logger.Printf("session: malformed media event: %v", err)
			return
		}
		o.ack(msg)
		o.handleMedia(&params)

	case call.MethodBye:
		var params call.ByeParams
		if err := msg.UnmarshalParams(&params); err != nil {
			o.logger.Printf("session: malformed bye event: %v", err)
			return
		}
		o.ack(msg)
		if c := o.GetCall(params.DialogParams.CallID); c != nil {
			c.HandleRemoteBye(&params)
		} else {
			o.logger.Printf("session: bye event for unknown call %s", params.DialogParams.CallID)
		}

	case call.MethodPing:
		o.ack(msg)

	default:
		// Unknown server events are acknowledged so the gateway does not
		// retransmit, and otherwise ignored.
		o.ack(msg)
		o.logger.Printf("session: unhandled method %s", msg.Method)
	}
}

// ack sends the protocol-level acknowledgment for a server event. Even
// events the engine cannot route are acked so the gateway is satisfied.
func (o *Orchestrator) ack(msg *channel.Message) {
	if msg.ID == "" {
		return
	}
	reply, err := channel.NewReply(msg.ID, map[string]string{"method": msg.Method})
	if err != nil {
		return
	}
	o.ch.Send(reply)
}

// handleInvite materializes an inbound call, or buffers the invite when the
// session is not yet established (login still in flight). The invite was
// already acknowledged either way so the gateway does not retransmit.
func (o *Orchestrator) handleInvite(params *call.InviteParams) {
	o.mu.Lock()
	if o.sessionID == "" {
		if o.pendingInvite != nil {
			o.logger.Printf("session: overwriting unconsumed buffered invite %s with %s",
				o.pendingInvite.CallID, params.CallID)
		}
		o.pendingInvite = params
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	o.materializeInboundCall(params, false)
}

// replayPendingInvite consumes the buffered invite once the session is
// ready.
func (o *Orchestrator) replayPendingInvite() {
	o.mu.Lock()
	params := o.pendingInvite
	o.pendingInvite = nil
	o.mu.Unlock()
	if params != nil {
		o.materializeInboundCall(params, false)
	}
}

// materializeInboundCall constructs the Call for an invite (or, with
// recovered set, an attach for an id the registry does not know). Any
// buffered media event for the call id is consumed first so a description
// that raced ahead of the invite is not lost, and outstanding queued
// actions are applied after a short settle delay.
func (o *Orchestrator) materializeInboundCall(params *call.InviteParams, recovered bool) *call.Call {
	// Recover a remote description that may have arrived before the invite.
	o.mu.Lock()
	buffered := o.pendingMedia[params.CallID]
	delete(o.pendingMedia, params.CallID)
	pushCorrelation := o.pushCorrelationID
	o.pushCorrelationID = ""
	o.mu.Unlock()

	remoteSDP := params.SDP
	if remoteSDP == "" && buffered != nil {
		remoteSDP = buffered.SDP
	}

	// Recovered calls get their media session from the reattach flow, so
	// the factory is only consulted for a ringing inbound call.
	var media call.MediaSession
	if !recovered {
		var err error
		media, err = o.mediaFactory()
		if err != nil {
			o.logger.Printf("session: failed to create media session for call %s: %v", params.CallID, err)
			return nil
		}
	}

	c, err := call.New(o.ch, call.Config{
		ID:                params.CallID,
		Direction:         call.DirectionInbound,
		SessionID:         o.SessionID(),
		RemoteLegID:       params.TelnyxSessionID,
		LocalLegID:        params.TelnyxLegID,
		InviteHeaders:     params.DialogParams.CustomHeaders,
		PushCorrelationID: pushCorrelation,
		RemoteSDP:         remoteSDP,
		Recovered:         recovered,
		Media:             media,
		Logger:            o.logger,
	})
	if err != nil {
		o.logger.Printf("session: failed to construct call %s: %v", params.CallID, err)
		if media != nil {
			_ = media.Close()
		}
		return nil
	}

	o.registerCall(c)

	if !recovered {
		c.HandleRinging(&call.RingingParams{CallID: params.CallID})
	}

	// Apply stream toggles the buffered media event carried alongside (or
	// instead of) a description.
	if buffered != nil && (buffered.Audio != nil || buffered.Video != nil) {
		c.HandleMediaUpdate(buffered)
	}

	o.Emitter.Emit(EventIncomingCall, c)

	// Let call construction settle before an externally queued action
	// executes against it.
	if !recovered && o.hasPendingActions() {
		time.AfterFunc(o.config.PendingActionDelay, func() {
			o.executePendingActions(c)
		})
	}

	return c
}

// handleMedia routes an early-media or media-update event, buffering it
// when the call does not exist yet. At most one buffered event per call id:
// the latest overwrites earlier ones, and the buffer is consumed the moment
// the call is created.
func (o *Orchestrator) handleMedia(params *call.MediaParams) {
	c := o.GetCall(params.CallID)
	if c == nil {
		o.mu.Lock()
		o.pendingMedia[params.CallID] = params
		o.mu.Unlock()
		return
	}

	if params.SDP != "" {
		c.HandleEarlyMedia(params.SDP)
	}
	if params.Audio != nil || params.Video != nil {
		c.HandleMediaUpdate(params)
	}
}

// handleAttach restores a call after reconnection. A registered dropped
// call reattaches in place, keeping its identity and state history; an
// unknown id materializes a recovered call first. The gateway round-trip
// runs off the read pump.
func (o *Orchestrator) handleAttach(params *call.InviteParams) {
	c := o.GetCall(params.CallID)
	if c == nil {
		c = o.materializeInboundCall(params, true)
		if c == nil {
			return
		}
	}
	if c.State() != call.StateDropped {
		o.logger.Printf("session: attach for call %s in state %s ignored", params.CallID, c.State())
		return
	}

	media, err := o.mediaFactory()
	if err != nil {
		o.logger.Printf("session: failed to create media session for reattach of %s: %v", params.CallID, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := c.Reattach(ctx, media, params.SDP); err != nil {
			o.logger.Printf("session: reattach of call %s failed: %v", c.ID(), err)
		}
	}()
}

// ---- Reconnection control loop ----

// IsReconnecting reports whether the reconnection control loop is active.
func (o *Orchestrator) IsReconnecting() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.reconnecting
}

// OnNetworkLost starts the reconnection control loop: every live call is
// marked dropped (releasing its media session), a bounded timer starts, and
// the socket is dropped without touching session-identifying state. A
// second loss signal while already reconnecting is ignored.
func (o *Orchestrator) OnNetworkLost() {
	o.mu.Lock()
	if o.reconnecting {
		o.mu.Unlock()
		return
	}
	o.reconnecting = true
	o.reconnectTimer = time.AfterFunc(o.config.ReconnectTimeout, o.onReconnectTimeout)
	o.mu.Unlock()

	for _, c := range o.ActiveCalls() {
		if c.State() != call.StateDropped {
			c.MarkDropped()
		}
	}

	o.ch.Disconnect()
	o.Emitter.Emit(EventReconnecting, nil)
}

// OnNetworkRestored attempts the fresh connect-and-login cycle. On success
// the timer is cancelled and the reconnecting flag cleared; the gateway's
// attach events then restore each dropped call. A restore signal outside a
// reconnecting window is ignored.
func (o *Orchestrator) OnNetworkRestored(ctx context.Context) error {
	o.mu.Lock()
	if !o.reconnecting {
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	if err := o.ch.Connect(ctx, o.config.GatewayURL, nil); err != nil {
		return err
	}
	if err := o.login(ctx); err != nil {
		return err
	}

	o.mu.Lock()
	o.reconnecting = false
	if o.reconnectTimer != nil {
		o.reconnectTimer.Stop()
		o.reconnectTimer = nil
	}
	o.mu.Unlock()

	o.Emitter.Emit(EventConnected, o.SessionID())
	o.queryGatewayState(ctx)
	o.replayPendingInvite()
	return nil
}

// OnNetworkChanged handles a network-type transition (e.g. a radio
// handoff) that does not strictly report connectivity loss. Such handoffs
// silently break the media path even when the network layer still reports
// reachability, so the transition is treated as a brief loss-then-recovery.
func (o *Orchestrator) OnNetworkChanged(ctx context.Context, kind string) error {
	o.mu.Lock()
	prior := o.networkKind
	o.networkKind = kind
	o.mu.Unlock()

	if prior == "" || prior == kind {
		return nil
	}

	o.OnNetworkLost()
	return o.OnNetworkRestored(ctx)
}

// newCallID mints the stable external identifier for an outbound call.
func newCallID() string {
	return uuid.New().String()
}

// onReconnectTimeout fires when the bounded reconnection window expires:
// the attempt is abandoned, calls remain dropped, and the application must
// surface the failure to the user.
func (o *Orchestrator) onReconnectTimeout() {
	o.mu.Lock()
	if !o.reconnecting {
		o.mu.Unlock()
		return
	}
	o.reconnecting = false
	o.reconnectTimer = nil
	o.mu.Unlock()

	o.logger.Printf("session: reconnection window expired, calls remain dropped")
	o.Emitter.Emit(EventReconnectFailed, nil)
}
