package domain

import (
	"fmt"
	"strings"
	"time"
)

// BroadcastSessionID identifies one media-server attachment. The broadcaster's
// id is stable across its own reconnects so the publisher slot survives a
// dropped socket; viewer ids carry a timestamp suffix so every viewer
// connection is unique.
type BroadcastSessionID string

// NewBroadcastSessionID builds the media-server session id for a participant.
func NewBroadcastSessionID(t StreamType, streamID StreamID, performerID PerformerID, viewer bool, now time.Time) BroadcastSessionID {
	id := fmt.Sprintf("%s-%s-%s", t, streamID, performerID)
	if viewer {
		id = fmt.Sprintf("%s-%d", id, now.UnixMilli())
	}
	return BroadcastSessionID(id)
}

// ContainsPerformer reports whether a raw sub-stream identifier belongs to
// the given performer, used by the peek-in lookup to pick the performer's
// feed out of a multi-publisher group room.
func ContainsPerformer(subStreamID string, performerID PerformerID) bool {
	return strings.Contains(subStreamID, string(performerID))
}
