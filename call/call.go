/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Telnyx LLC
 */

// Package call implements the per-call state machine. One Call instance
// exists per dialogue; it consumes signaling events addressed to its call id
// and local action invocations, enforces valid state transitions, and emits
// state-change notifications.
package call

import (
	"context"
	"fmt"
	"sync"

	"github.com/looplab/fsm"

	"github.com/team-telnyx/react-native-voice-commons-sub001/channel"
	"github.com/team-telnyx/react-native-voice-commons-sub001/voicesdk"
)

// EventStateChanged is emitted on every state transition with a
// StateChange payload.
const EventStateChanged = "state_changed"

// StateChange is the payload of EventStateChanged.
type StateChange struct {
	CallID string
	From   State
	To     State
}

// FSM transition triggers.
const (
	triggerRing      = "ring"
	triggerAnswering = "answering"
	triggerEstablish = "establish"
	triggerHold      = "hold"
	triggerUnhold    = "unhold"
	triggerDrop      = "drop"
	triggerReattach  = "reattach"
	triggerEnd       = "end"
)

// Config holds the construction-time parameters of a call. Invite-time
// custom headers and the push correlation id bind exactly once, here, and
// are never overwritten later.
type Config struct {
	// ID is the stable external call identifier, the join key between
	// signaling events and this call.
	ID string

	Direction Direction

	// SessionID is the login session the call belongs to.
	SessionID string

	// RemoteLegID and LocalLegID identify the gateway-side legs.
	RemoteLegID string
	LocalLegID  string

	// InviteHeaders are the custom headers carried on the originating
	// invite.
	InviteHeaders voicesdk.Headers

	// PushCorrelationID associates the call with an out-of-band trigger
	// such as a push notification. Optional.
	PushCorrelationID string

	// RemoteSDP is a remote description already known at construction
	// (embedded in the invite, or recovered from a buffered media event).
	RemoteSDP string

	// Recovered marks a call materialized through session reattachment; it
	// starts in the dropped state and proceeds through the reattach flow
	// (connecting, then active) instead of ringing.
	Recovered bool

	// Media is the media session handle. Required before Answer.
	Media MediaSession

	Logger voicesdk.Logger
}

// Call is one signaling dialogue. All mutating entry points funnel through
// the internal mutex; the state machine itself rejects invalid transitions.
type Call struct {
	mu sync.RWMutex

	ch     *channel.Channel
	logger voicesdk.Logger

	id        string
	direction Direction
	sessionID string

	remoteLegID string
	localLegID  string

	inviteHeaders     voicesdk.Headers
	answerHeaders     voicesdk.Headers
	pushCorrelationID string

	destination string

	media         MediaSession
	remoteSDP     string
	remoteApplied bool

	machine *fsm.FSM

	// Emitter publishes state-change notifications.
	Emitter *voicesdk.EventEmitter
}

// New constructs a call. Inbound calls move to ringing when the orchestrator
// applies the originating invite; recovered calls start in dropped and are
// restored through Reattach.
func New(ch *channel.Channel, cfg Config) (*Call, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("call requires an id")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = voicesdk.DefaultConfig().GetLogger()
	}

	c := &Call{
		ch:                ch,
		logger:            logger,
		id:                cfg.ID,
		direction:         cfg.Direction,
		sessionID:         cfg.SessionID,
		remoteLegID:       cfg.RemoteLegID,
		localLegID:        cfg.LocalLegID,
		inviteHeaders:     cfg.InviteHeaders,
		pushCorrelationID: cfg.PushCorrelationID,
		remoteSDP:         cfg.RemoteSDP,
		media:             cfg.Media,
		Emitter:           voicesdk.NewEventEmitter(),
	}

	initial := string(StateNew)
	if cfg.Recovered {
		initial = string(StateDropped)
	}
	c.machine = fsm.NewFSM(
		initial,
		fsm.Events{
			{Name: triggerRing, Src: []string{string(StateNew)}, Dst: string(StateRinging)},
			{Name: triggerAnswering, Src: []string{string(StateRinging)}, Dst: string(StateConnecting)},
			{Name: triggerEstablish, Src: []string{string(StateConnecting)}, Dst: string(StateActive)},
			{Name: triggerHold, Src: []string{string(StateActive)}, Dst: string(StateHeld)},
			{Name: triggerUnhold, Src: []string{string(StateHeld)}, Dst: string(StateActive)},
			{Name: triggerDrop, Src: []string{
				string(StateNew), string(StateRinging), string(StateConnecting),
				string(StateActive), string(StateHeld),
			}, Dst: string(StateDropped)},
			{Name: triggerReattach, Src: []string{string(StateDropped)}, Dst: string(StateConnecting)},
			{Name: triggerEnd, Src: []string{
				string(StateNew), string(StateRinging), string(StateConnecting),
				string(StateActive), string(StateHeld), string(StateDropped),
			}, Dst: string(StateEnded)},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				c.Emitter.Emit(EventStateChanged, StateChange{
					CallID: c.id,
					From:   State(e.Src),
					To:     State(e.Dst),
				})
			},
		},
	)

	return c, nil
}

// transition fires an FSM trigger. The machine carries its own lock, so
// state-change handlers run outside the call mutex and may read call state.
func (c *Call) transition(trigger string) error {
	return c.machine.Event(context.Background(), trigger)
}

// ---- Accessors ----

// ID returns the stable external call identifier.
func (c *Call) ID() string { return c.id }

// Direction returns the call direction.
func (c *Call) Direction() Direction { return c.direction }

// State returns the current call state.
func (c *Call) State() State {
	return State(c.machine.Current())
}

// SessionID returns the login session the call belongs to.
func (c *Call) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// InviteHeaders returns the custom headers bound at construction.
func (c *Call) InviteHeaders() voicesdk.Headers {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inviteHeaders
}

// AnswerHeaders returns the custom headers recorded when the call was
// answered.
func (c *Call) AnswerHeaders() voicesdk.Headers {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.answerHeaders
}

// PushCorrelationID returns the out-of-band correlation id bound at
// construction, or empty.
func (c *Call) PushCorrelationID() string { return c.pushCorrelationID }

// Media returns the current media session handle, or nil.
func (c *Call) Media() MediaSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.media
}

// RemoteSDP returns the last remote description seen for this call.
func (c *Call) RemoteSDP() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.remoteSDP
}

// ---- Local actions ----

// Dial sends the invite for an outbound call: attach local media, produce
// an offer, wait for candidate gathering, then send the invite and await
// the gateway acknowledgment.
func (c *Call) Dial(ctx context.Context, destination string, headers voicesdk.Headers) error {
	c.mu.Lock()
	media := c.media
	c.destination = destination
	c.inviteHeaders = headers
	c.mu.Unlock()

	if media == nil {
		return voicesdk.NewPreconditionError("invite", "call has no media session")
	}

	offer, err := media.CreateOffer(ctx)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	if err := media.WaitForICEGatheringComplete(ctx); err != nil {
		return fmt.Errorf("candidate gathering failed: %w", err)
	}
	if local := media.LocalDescription(); local != "" {
		offer = local
	}

	req, err := channel.NewRequest(MethodInvite, &OutboundInviteParams{
		SessionID: c.sessionID,
		SDP:       offer,
		DialogParams: DialogParams{
			CallID:         c.id,
			CustomHeaders:  headers,
			DestinationNum: destination,
		},
	})
	if err != nil {
		return err
	}

	reply, err := c.ch.SendAndWait(ctx, req)
	if err != nil {
		return err
	}
	if reply.Error != nil {
		return voicesdk.NewProtocolError("invite", reply.Error.Code, reply.Error.Message)
	}
	return nil
}

// Answer answers a ringing call. Sequence: transition to connecting, apply
// the remote offer, produce a local answer and wait for candidate
// gathering, then send the answer request and await the gateway
// acknowledgment before moving to active. Any failing step leaves the call
// in connecting; the caller retries or hangs up. There is no automatic
// rollback to ringing.
func (c *Call) Answer(ctx context.Context, headers voicesdk.Headers) error {
	c.mu.Lock()
	media := c.media
	remoteSDP := c.remoteSDP
	remoteApplied := c.remoteApplied
	c.mu.Unlock()

	if media == nil {
		return voicesdk.NewPreconditionError("answer", "call has no media session")
	}

	if err := c.transition(triggerAnswering); err != nil {
		return voicesdk.NewPreconditionError("answer",
			fmt.Sprintf("cannot answer from state %s", c.State()))
	}

	if !remoteApplied && remoteSDP != "" {
		if err := media.SetRemoteDescription(SDPOffer, remoteSDP); err != nil {
			return fmt.Errorf("failed to apply remote offer: %w", err)
		}
		c.mu.Lock()
		c.remoteApplied = true
		c.mu.Unlock()
	}

	answer, err := media.CreateAnswer(ctx)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	if err := media.WaitForICEGatheringComplete(ctx); err != nil {
		return fmt.Errorf("candidate gathering failed: %w", err)
	}
	if local := media.LocalDescription(); local != "" {
		answer = local
	}

	c.mu.Lock()
	c.answerHeaders = headers
	c.mu.Unlock()

	req, err := channel.NewRequest(MethodAnswer, &AnswerParams{
		SessionID: c.sessionID,
		SDP:       answer,
		DialogParams: DialogParams{
			CallID:        c.id,
			CustomHeaders: headers,
		},
	})
	if err != nil {
		return err
	}

	reply, err := c.ch.SendAndWait(ctx, req)
	if err != nil {
		return err
	}
	if reply.Error != nil {
		return voicesdk.NewProtocolError("answer", reply.Error.Code, reply.Error.Message)
	}

	// The call may have been torn down by a racing hangup or drop while we
	// were suspended; never apply a stale active transition.
	if err := c.transition(triggerEstablish); err != nil {
		c.logger.Printf("call %s: answer completed in state %s, not establishing", c.id, c.State())
	}
	return nil
}

// Hangup sends a best-effort termination request, releases the media
// session, and moves the call to ended. Ending is a local guarantee
// independent of network state, so Hangup always succeeds locally; on an
// already-ended call the state stays ended though the send may still be
// attempted.
func (c *Call) Hangup(headers voicesdk.Headers) {
	req, err := channel.NewRequest(MethodBye, &ByeParams{
		SessionID: c.sessionID,
		DialogParams: DialogParams{
			CallID:        c.id,
			CustomHeaders: headers,
		},
	})
	if err != nil {
		c.logger.Printf("call %s: failed to build bye: %v", c.id, err)
	} else {
		c.ch.Send(req)
	}

	c.releaseMedia()
	if err := c.transition(triggerEnd); err != nil {
		// Already ended; nothing to do.
		return
	}
}

// Hold sends a hold modify request and awaits the gateway confirmation. The
// state transitions only when the confirmation reports the held state.
func (c *Call) Hold(ctx context.Context) error {
	return c.modify(ctx, ModifyHold, HoldStateHeld, triggerHold)
}

// Unhold sends an unhold modify request and awaits the gateway
// confirmation. The state transitions only when the confirmation reports
// the active state.
func (c *Call) Unhold(ctx context.Context) error {
	return c.modify(ctx, ModifyUnhold, HoldStateActive, triggerUnhold)
}

func (c *Call) modify(ctx context.Context, action ModifyAction, wantHoldState, trigger string) error {
	if !c.machine.Can(trigger) {
		return voicesdk.NewPreconditionError(string(action),
			fmt.Sprintf("cannot %s from state %s", action, c.State()))
	}

	req, err := channel.NewRequest(MethodModify, &ModifyParams{
		Action:       action,
		SessionID:    c.sessionID,
		DialogParams: DialogParams{CallID: c.id, CustomHeaders: voicesdk.Headers{}},
	})
	if err != nil {
		return err
	}

	reply, err := c.ch.SendAndWait(ctx, req)
	if err != nil {
		return err
	}
	if reply.Error != nil {
		return voicesdk.NewProtocolError(string(action), reply.Error.Code, reply.Error.Message)
	}

	var result ModifyResult
	if err := reply.UnmarshalResult(&result); err != nil {
		return voicesdk.NewProtocolError(string(action), 0, "malformed modify confirmation")
	}
	if result.HoldState != wantHoldState {
		return voicesdk.NewProtocolError(string(action), 0,
			fmt.Sprintf("gateway confirmed hold state %q, wanted %q", result.HoldState, wantHoldState))
	}

	return c.transition(trigger)
}

// Mute disables the local audio stream. Best-effort: failures are logged.
func (c *Call) Mute() {
	c.setStreamState(TargetLocal, StreamAudio, false)
}

// Unmute re-enables the local audio stream. Best-effort: failures are
// logged.
func (c *Call) Unmute() {
	c.setStreamState(TargetLocal, StreamAudio, true)
}

func (c *Call) setStreamState(target StreamTarget, kind StreamKind, enabled bool) {
	c.mu.RLock()
	media := c.media
	c.mu.RUnlock()
	if media == nil {
		return
	}
	if err := media.SetMediaStreamState(target, kind, enabled); err != nil {
		c.logger.Printf("call %s: failed to set %s %s enabled=%t: %v", c.id, target, kind, enabled, err)
	}
}

// ---- Signaling event handlers (invoked by the orchestrator) ----

// HandleRinging applies the gateway's ringing event: the call moves from
// new to ringing and absorbs the leg identifiers the gateway assigned.
func (c *Call) HandleRinging(params *RingingParams) {
	c.mu.Lock()
	if params.TelnyxSessionID != "" {
		c.remoteLegID = params.TelnyxSessionID
	}
	if params.TelnyxLegID != "" {
		c.localLegID = params.TelnyxLegID
	}
	c.mu.Unlock()

	if err := c.transition(triggerRing); err != nil {
		c.logger.Printf("call %s: ringing event in state %s ignored", c.id, c.State())
	}
}

// HandleEarlyMedia applies a description delivered before the definitive
// answer. Outbound calls receive it as an answer to their own offer;
// inbound calls receive it as an offer. Never changes call state; failures
// are logged, not propagated; early media is best-effort.
func (c *Call) HandleEarlyMedia(sdp string) {
	if sdp == "" {
		return
	}

	c.mu.Lock()
	media := c.media
	c.remoteSDP = sdp
	c.mu.Unlock()

	if media == nil {
		return
	}

	sdpType := SDPOffer
	if c.direction == DirectionOutbound {
		sdpType = SDPAnswer
	}
	if err := media.SetRemoteDescription(sdpType, sdp); err != nil {
		c.logger.Printf("call %s: failed to apply early media: %v", c.id, err)
		return
	}
	c.mu.Lock()
	c.remoteApplied = true
	c.mu.Unlock()
}

// HandleRemoteAnswer applies the remote description carried on a definitive
// answer event, when it was not already supplied by early media.
func (c *Call) HandleRemoteAnswer(sdp string) error {
	c.mu.Lock()
	media := c.media
	applied := c.remoteApplied
	c.mu.Unlock()

	if media == nil {
		return voicesdk.NewPreconditionError("remote-answer", "call has no media session")
	}
	if applied || sdp == "" {
		// The description already arrived via early media, or the event
		// carried none; either way the existing one stands.
		return nil
	}

	if err := media.SetRemoteDescription(SDPAnswer, sdp); err != nil {
		return fmt.Errorf("failed to apply remote answer: %w", err)
	}
	c.mu.Lock()
	c.remoteSDP = sdp
	c.remoteApplied = true
	c.mu.Unlock()
	return nil
}

// HandleAnswerEvent processes the gateway's answer event for an outbound
// call: the remote party picked up.
func (c *Call) HandleAnswerEvent(params *AnswerEventParams) {
	if c.State() == StateRinging {
		if err := c.transition(triggerAnswering); err != nil {
			c.logger.Printf("call %s: answer event in state %s ignored", c.id, c.State())
			return
		}
	}

	if err := c.HandleRemoteAnswer(params.SDP); err != nil {
		c.logger.Printf("call %s: %v", c.id, err)
	}

	if err := c.transition(triggerEstablish); err != nil {
		c.logger.Printf("call %s: answer event in state %s, not establishing", c.id, c.State())
	}
}

// HandleRemoteBye processes the remote termination event: release media and
// end the call.
func (c *Call) HandleRemoteBye(params *ByeParams) {
	c.releaseMedia()
	if err := c.transition(triggerEnd); err != nil {
		// Already ended.
		return
	}
}

// HandleMediaUpdate toggles the enabled flag on the targeted stream
// without touching call state. Failures are logged, not propagated.
func (c *Call) HandleMediaUpdate(params *MediaParams) {
	target := params.Target
	if target == "" {
		target = TargetRemote
	}
	if params.Audio != nil {
		c.setStreamState(target, StreamAudio, *params.Audio)
	}
	if params.Video != nil {
		c.setStreamState(target, StreamVideo, *params.Video)
	}
}

// MarkDropped records a network loss while the call was live, releasing the
// now-useless media session. The handle is recreated on reattachment.
func (c *Call) MarkDropped() {
	if err := c.transition(triggerDrop); err != nil {
		return
	}
	c.releaseMedia()
}

// Reattach restores a dropped call after reconnection: attach the fresh
// media session, apply the replayed remote offer, answer it, and confirm
// the attachment with the gateway. The call's identity and state history
// are unchanged.
func (c *Call) Reattach(ctx context.Context, media MediaSession, remoteSDP string) error {
	if err := c.transition(triggerReattach); err != nil {
		return voicesdk.NewPreconditionError("attach",
			fmt.Sprintf("cannot reattach from state %s", c.State()))
	}

	c.mu.Lock()
	c.media = media
	c.remoteSDP = remoteSDP
	c.remoteApplied = false
	c.mu.Unlock()

	if err := media.SetRemoteDescription(SDPOffer, remoteSDP); err != nil {
		return fmt.Errorf("failed to apply replayed offer: %w", err)
	}
	c.mu.Lock()
	c.remoteApplied = true
	c.mu.Unlock()

	answer, err := media.CreateAnswer(ctx)
	if err != nil {
		return fmt.Errorf("failed to create reattach answer: %w", err)
	}
	if err := media.WaitForICEGatheringComplete(ctx); err != nil {
		return fmt.Errorf("candidate gathering failed: %w", err)
	}
	if local := media.LocalDescription(); local != "" {
		answer = local
	}

	req, err := channel.NewRequest(MethodAttach, &AnswerParams{
		SessionID:    c.sessionID,
		SDP:          answer,
		DialogParams: DialogParams{CallID: c.id, CustomHeaders: c.InviteHeaders()},
	})
	if err != nil {
		return err
	}
	reply, err := c.ch.SendAndWait(ctx, req)
	if err != nil {
		return err
	}
	if reply.Error != nil {
		return voicesdk.NewProtocolError("attach", reply.Error.Code, reply.Error.Message)
	}

	if err := c.transition(triggerEstablish); err != nil {
		c.logger.Printf("call %s: reattach completed in state %s", c.id, c.State())
	}
	return nil
}

// releaseMedia closes and clears the media session handle, if any.
func (c *Call) releaseMedia() {
	c.mu.Lock()
	media := c.media
	c.media = nil
	c.remoteApplied = false
	c.mu.Unlock()

	if media != nil {
		if err := media.Close(); err != nil {
			c.logger.Printf("call %s: error closing media session: %v", c.id, err)
		}
	}
}
