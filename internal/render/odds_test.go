package render

import (
	"bytes"
	"image/png"
	"testing"

	"crexbot/internal/crex"
)

func TestOddsNilWhenNothingDrawable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		snap *crex.OddsSnapshot
	}{
		{name: "nil snapshot", snap: nil},
		{name: "empty snapshot", snap: &crex.OddsSnapshot{}},
		{
			name: "one-sided team odds",
			snap: &crex.OddsSnapshot{Odds: map[string][]string{"IND": {"80"}}},
		},
		{
			name: "projection with NA side",
			snap: &crex.OddsSnapshot{OverProjections: []crex.OverProjection{
				{Title: "6 over: 52", YesOdds: "60", NoOdds: crex.NA},
			}},
		},
		{
			name: "win probabilities alone are not drawable",
			snap: &crex.OddsSnapshot{WinProbabilities: map[string]string{"IND": "64%"}},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Odds(tc.snap)
			if err != nil {
				t.Fatalf("Odds: %v", err)
			}
			if got != nil {
				t.Fatalf("expected nil image, got %d bytes", len(got))
			}
		})
	}
}

func TestOddsProducesDecodablePNG(t *testing.T) {
	t.Parallel()

	snap := &crex.OddsSnapshot{
		Odds: map[string][]string{"New Zealand": {"80", "84"}},
		OverProjections: []crex.OverProjection{
			{Title: "6 over NZ: 52", YesOdds: "60", NoOdds: "55"},
			{Title: "10 over NZ: 84", YesOdds: "70", NoOdds: crex.NA},
		},
	}

	data, err := Odds(snap)
	if err != nil {
		t.Fatalf("Odds: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}

	// One team row plus one drawable projection.
	b := img.Bounds()
	wantHeight := 2*25 + 2*70
	if b.Dy() != wantHeight {
		t.Fatalf("image height = %d, want %d", b.Dy(), wantHeight)
	}
	if b.Dx() <= 0 {
		t.Fatalf("image width = %d", b.Dx())
	}
}

func TestBuildSectionsPicksOneTeamAndTruncatesLabel(t *testing.T) {
	t.Parallel()

	snap := &crex.OddsSnapshot{
		Odds: map[string][]string{
			"Australia Women": {"10", "12"},
			"Zimbabwe":        {"90", "95"},
		},
	}
	got := buildSections(snap)
	if len(got) != 1 {
		t.Fatalf("sections = %d, want exactly one team row", len(got))
	}
	if got[0].label != "Australia " {
		t.Fatalf("label = %q, want first team truncated to 10 chars", got[0].label)
	}
	if !got[0].underline {
		t.Fatal("team row should be underlined")
	}
}
