/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Telnyx LLC
 */

package call

import "context"

// SDPType distinguishes the role of a session description.
type SDPType string

const (
	SDPOffer  SDPType = "offer"
	SDPAnswer SDPType = "answer"
)

// MediaSession is the boundary to the media layer. The engine treats it as
// an opaque peer holding local and remote description values; offer/answer
// creation, ICE gathering, and stream toggling happen behind it. A call
// owns at most one media session at a time; disposing and recreating the
// session across a reconnect does not change the call's identity.
type MediaSession interface {
	// CreateOffer attaches local media and produces a local offer
	// description.
	CreateOffer(ctx context.Context) (string, error)

	// CreateAnswer produces a local answer description to a previously set
	// remote offer.
	CreateAnswer(ctx context.Context) (string, error)

	// SetRemoteDescription applies a remote description as an offer or
	// answer.
	SetRemoteDescription(sdpType SDPType, sdp string) error

	// WaitForICEGatheringComplete blocks until candidate gathering finishes
	// so the local description is complete before it goes on the wire.
	WaitForICEGatheringComplete(ctx context.Context) error

	// LocalDescription returns the current local description, candidates
	// included.
	LocalDescription() string

	// SetMediaStreamState toggles the enabled flag on the selected stream.
	SetMediaStreamState(target StreamTarget, kind StreamKind, enabled bool) error

	// Close releases the underlying media resources.
	Close() error
}
