package engine

import (
	"time"

	"crexbot/internal/crex"
)

// noOverAnnounced is the lastOverAnnounced sentinel; real over numbers are
// never negative.
const noOverAnnounced = -1

// matchState tracks what has already been broadcast for one match.
//
// It is owned by the subscription registry: created when a match is
// subscribed, discarded when the subscription is cancelled, and only ever
// mutated from that match's own tick loop, so no locking is needed.
type matchState struct {
	lastEvent         string
	lastOverAnnounced int
	lastOdds          *crex.OddsSnapshot
	lastOddsAt        time.Time
}

func newMatchState() matchState {
	return matchState{lastOverAnnounced: noOverAnnounced}
}
