package engine

import (
	"time"

	"crexbot/internal/crex"
)

// shouldBroadcastOdds implements the debounced-on-change policy: broadcast
// only when the snapshot differs from the last one sent AND the cooldown has
// elapsed since that send. Unchanged odds never re-broadcast; a change that
// lands during the cooldown is deferred, not dropped: the next tick at or
// after the cooldown re-evaluates against the still-stale lastOdds.
func shouldBroadcastOdds(st *matchState, next *crex.OddsSnapshot, now time.Time, cooldown time.Duration) bool {
	if next.Empty() {
		return false
	}
	if next.Equal(st.lastOdds) {
		return false
	}
	if !st.lastOddsAt.IsZero() && now.Sub(st.lastOddsAt) < cooldown {
		return false
	}
	return true
}
