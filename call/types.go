/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Telnyx LLC
 */

package call

import (
	"github.com/team-telnyx/react-native-voice-commons-sub001/voicesdk"
)

// Signaling method vocabulary recognized by the engine.
const (
	MethodInvite       = "telnyx_rtc.invite"
	MethodRinging      = "telnyx_rtc.ringing"
	MethodAnswer       = "telnyx_rtc.answer"
	MethodBye          = "telnyx_rtc.bye"
	MethodModify       = "telnyx_rtc.modify"
	MethodMedia        = "telnyx_rtc.media"
	MethodAttach       = "telnyx_rtc.attach"
	MethodLogin        = "login"
	MethodGatewayState = "telnyx_rtc.gatewayState"
	MethodPing         = "telnyx_rtc.ping"
)

// Direction indicates who initiated the call.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// State is the call state machine state.
type State string

const (
	StateNew        State = "new"
	StateRinging    State = "ringing"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateHeld       State = "held"
	StateDropped    State = "dropped"
	StateEnded      State = "ended"
)

// Terminal reports whether no transition can leave the state.
func (s State) Terminal() bool {
	return s == StateEnded
}

// StreamTarget selects which side's media stream a toggle applies to.
type StreamTarget string

const (
	TargetLocal  StreamTarget = "local"
	TargetRemote StreamTarget = "remote"
)

// StreamKind selects the media stream within a target.
type StreamKind string

const (
	StreamAudio StreamKind = "audio"
	StreamVideo StreamKind = "video"
)

// DialogParams is the nested object carried on invite, answer, bye, and
// modify messages with the call correlation fields and custom headers.
// CustomHeaders always serializes, as an empty array when no headers were
// supplied.
type DialogParams struct {
	CallID         string           `json:"callID"`
	CustomHeaders  voicesdk.Headers `json:"custom_headers"`
	DestinationNum string           `json:"destination_number,omitempty"`
	CallerIDName   string           `json:"caller_id_name,omitempty"`
	CallerIDNumber string           `json:"caller_id_number,omitempty"`
}

// InviteParams is the payload of an inbound invite or attach event.
type InviteParams struct {
	CallID          string       `json:"callID"`
	CallerIDName    string       `json:"caller_id_name,omitempty"`
	CallerIDNumber  string       `json:"caller_id_number,omitempty"`
	SDP             string       `json:"sdp,omitempty"`
	TelnyxSessionID string       `json:"telnyx_session_id,omitempty"`
	TelnyxLegID     string       `json:"telnyx_leg_id,omitempty"`
	DialogParams    DialogParams `json:"dialogParams"`
}

// OutboundInviteParams is the payload of a locally originated invite
// request.
type OutboundInviteParams struct {
	SessionID    string       `json:"sessid,omitempty"`
	SDP          string       `json:"sdp"`
	DialogParams DialogParams `json:"dialogParams"`
}

// AnswerParams is the payload of a locally originated answer request.
type AnswerParams struct {
	SessionID    string       `json:"sessid,omitempty"`
	SDP          string       `json:"sdp"`
	DialogParams DialogParams `json:"dialogParams"`
}

// AnswerEventParams is the payload of the gateway's definitive answer
// event for an outbound call. SDP is absent when the description already
// arrived through an early media event.
type AnswerEventParams struct {
	CallID       string       `json:"callID"`
	SDP          string       `json:"sdp,omitempty"`
	DialogParams DialogParams `json:"dialogParams"`
}

// RingingParams is the payload of the gateway's ringing event.
type RingingParams struct {
	CallID          string       `json:"callID"`
	TelnyxSessionID string       `json:"telnyx_session_id,omitempty"`
	TelnyxLegID     string       `json:"telnyx_leg_id,omitempty"`
	DialogParams    DialogParams `json:"dialogParams"`
}

// ByeParams is the payload of a termination request or event.
type ByeParams struct {
	SessionID    string       `json:"sessid,omitempty"`
	CauseCode    int          `json:"causeCode,omitempty"`
	Cause        string       `json:"cause,omitempty"`
	DialogParams DialogParams `json:"dialogParams"`
}

// ModifyAction is the requested hold action of a modify request.
type ModifyAction string

const (
	ModifyHold   ModifyAction = "hold"
	ModifyUnhold ModifyAction = "unhold"
)

// ModifyParams is the payload of a hold/unhold modify request.
type ModifyParams struct {
	Action       ModifyAction `json:"action"`
	SessionID    string       `json:"sessid,omitempty"`
	DialogParams DialogParams `json:"dialogParams"`
}

// ModifyResult is the gateway's confirmation of a modify request. The
// reported hold state must match the requested action or the operation
// fails with a protocol error.
type ModifyResult struct {
	Action    ModifyAction `json:"action,omitempty"`
	HoldState string       `json:"holdState"`
	CallID    string       `json:"callID,omitempty"`
}

// Hold states reported in ModifyResult.
const (
	HoldStateHeld   = "held"
	HoldStateActive = "active"
)

// MediaParams is the payload of an early-media or media-update event.
// SDP carries a description for ringback/announcements; Audio and Video
// toggle the enabled flag on the targeted stream without touching state.
type MediaParams struct {
	CallID string       `json:"callID"`
	SDP    string       `json:"sdp,omitempty"`
	Audio  *bool        `json:"audio,omitempty"`
	Video  *bool        `json:"video,omitempty"`
	Target StreamTarget `json:"target,omitempty"`
}
