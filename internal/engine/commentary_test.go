package engine

import (
	"reflect"
	"strings"
	"testing"

	"crexbot/internal/crex"
)

func fixedComposer() *Composer {
	return &Composer{pick: func(int) int { return 0 }}
}

func sampleSnap() *crex.MatchSnapshot {
	return &crex.MatchSnapshot{
		Team:        "IND",
		Score:       "142/3",
		Overs:       "15.2",
		CRR:         "9.26",
		RRR:         "10.50",
		Partnership: "48(31)",
		LastWicket:  "Kohli c Smith b Starc 41(29)",
		Status:      "IND need 62 in 28 balls",
	}
}

func TestComposeOrdering(t *testing.T) {
	t.Parallel()

	striker := &crex.Player{Name: "Pandya", Runs: "27", Balls: "14"}
	got := fixedComposer().Compose("4", sampleSnap(), striker, true, true)

	want := []string{
		"4",
		"🥎 *142/3 (15.2)🥎*",
		fourLines[0],
		" Pandya 27(14) on strike ✔️",
		"*Last ball of over*",
		"*CRR*: 9.26 | *RRR*: 10.50",
		"*Partnership*: 48(31)",
		"Kohli c Smith b Starc 41(29) ❌ ",
		"⚠️ IND need 62 in 28 balls",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Compose() = %#v, want %#v", got, want)
	}
}

func TestComposeFlavorPrecedence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		event string
		pool  []string
	}{
		{name: "four", event: "4", pool: fourLines},
		{name: "six", event: "6", pool: sixLines},
		{name: "wicket keyword", event: "Smith is OUT", pool: wicketLines},
		{name: "lowercase wicket", event: "wicket falls", pool: wicketLines},
		{name: "four beats six", event: "46", pool: fourLines},
		{name: "dot ball has no flavor", event: "0", pool: nil},
		{name: "wide has no flavor", event: "wd", pool: nil},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			msgs := fixedComposer().Compose(tc.event, sampleSnap(), nil, false, false)
			if tc.pool == nil {
				if len(msgs) != 2 {
					t.Fatalf("expected no flavor line, got %v", msgs)
				}
				return
			}
			if len(msgs) != 3 || msgs[2] != tc.pool[0] {
				t.Fatalf("expected flavor %q, got %v", tc.pool[0], msgs)
			}
		})
	}
}

func TestComposeSkipsMissingStriker(t *testing.T) {
	t.Parallel()

	for _, striker := range []*crex.Player{nil, {Name: ""}, {Name: crex.NA}} {
		msgs := fixedComposer().Compose("1", sampleSnap(), striker, false, false)
		for _, m := range msgs {
			if strings.Contains(m, "on strike") {
				t.Fatalf("unexpected striker line for %+v: %v", striker, msgs)
			}
		}
	}
}

func TestOverSummaryOmitsAbsentFields(t *testing.T) {
	t.Parallel()

	snap := sampleSnap()
	snap.Partnership = crex.NA
	snap.LastWicket = crex.NA

	got := OverSummary(snap)
	want := []string{
		"*CRR*: 9.26 | *RRR*: 10.50",
		"⚠️ IND need 62 in 28 balls",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("OverSummary() = %#v, want %#v", got, want)
	}
}
