package engine

import (
	"testing"
	"time"

	"crexbot/internal/crex"
)

func oddsWith(prob string) *crex.OddsSnapshot {
	return &crex.OddsSnapshot{
		WinProbabilities: map[string]string{"IND": prob},
	}
}

func TestShouldBroadcastOdds(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cooldown := 50 * time.Second

	cases := []struct {
		name string
		st   matchState
		next *crex.OddsSnapshot
		now  time.Time
		want bool
	}{
		{
			name: "first snapshot broadcasts immediately",
			st:   newMatchState(),
			next: oddsWith("60%"),
			now:  base,
			want: true,
		},
		{
			name: "empty snapshot never broadcasts",
			st:   newMatchState(),
			next: &crex.OddsSnapshot{},
			now:  base,
			want: false,
		},
		{
			name: "nil snapshot never broadcasts",
			st:   newMatchState(),
			next: nil,
			now:  base,
			want: false,
		},
		{
			name: "unchanged odds suppressed even after cooldown",
			st:   matchState{lastOdds: oddsWith("60%"), lastOddsAt: base},
			next: oddsWith("60%"),
			now:  base.Add(10 * time.Minute),
			want: false,
		},
		{
			name: "changed odds inside cooldown deferred",
			st:   matchState{lastOdds: oddsWith("60%"), lastOddsAt: base},
			next: oddsWith("75%"),
			now:  base.Add(49 * time.Second),
			want: false,
		},
		{
			name: "changed odds at cooldown boundary broadcast",
			st:   matchState{lastOdds: oddsWith("60%"), lastOddsAt: base},
			next: oddsWith("75%"),
			now:  base.Add(cooldown),
			want: true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			st := tc.st
			if got := shouldBroadcastOdds(&st, tc.next, tc.now, cooldown); got != tc.want {
				t.Fatalf("shouldBroadcastOdds() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDeferredChangeBroadcastsOnLaterTick(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cooldown := 50 * time.Second
	st := matchState{lastOdds: oddsWith("60%"), lastOddsAt: base}

	next := oddsWith("75%")
	if shouldBroadcastOdds(&st, next, base.Add(20*time.Second), cooldown) {
		t.Fatal("change inside cooldown should be deferred")
	}
	// State did not advance, so the same change fires once the window opens.
	if !shouldBroadcastOdds(&st, next, base.Add(55*time.Second), cooldown) {
		t.Fatal("deferred change should broadcast after cooldown")
	}
}
