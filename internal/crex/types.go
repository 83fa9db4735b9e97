package crex

// NA is the sentinel the site (and therefore this package) uses for
// fields that are absent from the page.
const NA = "N/A"

// LiveMatch is one entry from the live-matches listing page.
type LiveMatch struct {
	Match      string
	Venue      string
	Team1      string
	Team1Score string
	Team1Overs string
	Team2      string
	Team2Score string
	Team2Overs string
	Status     string
	URL        string
}

// MatchSnapshot is a complete, self-contained read of one match's state at a
// point in time. BallEvents carries the full event history to date (not a
// delta); the engine diffs consecutive snapshots.
type MatchSnapshot struct {
	Team        string
	Score       string
	Overs       string
	CRR         string
	RRR         string
	Partnership string
	LastWicket  string
	Status      string
	BallEvents  []string
}

// ScoreLine mirrors the site's "<score> (<overs>)" presentation.
func (s MatchSnapshot) ScoreLine() string {
	return s.Score + " (" + s.Overs + ")"
}

// Player carries batting or bowling figures for one player.
type Player struct {
	Name       string
	Runs       string
	Balls      string
	Fours      string
	Sixes      string
	StrikeRate string
	OnStrike   bool

	// bowling
	Overs        string
	RunsConceded string
	Wickets      string
	Economy      string
}

type PlayerStats struct {
	Batting []Player
	Bowling []Player
	Striker *Player
}

// OverProjection is one "over N: X runs" market with yes/no odds.
type OverProjection struct {
	Title   string
	YesOdds string
	NoOdds  string
}

// OddsSnapshot is one read of the odds panel. Two snapshots are "the same"
// iff all fields compare equal (see Equal); the engine throttles on that.
type OddsSnapshot struct {
	WinProbabilities map[string]string
	Odds             map[string][]string
	OverProjections  []OverProjection
}

// Equal reports structural equality.
func (o *OddsSnapshot) Equal(other *OddsSnapshot) bool {
	if o == nil || other == nil {
		return o == other
	}
	if len(o.WinProbabilities) != len(other.WinProbabilities) ||
		len(o.Odds) != len(other.Odds) ||
		len(o.OverProjections) != len(other.OverProjections) {
		return false
	}
	for k, v := range o.WinProbabilities {
		if ov, ok := other.WinProbabilities[k]; !ok || ov != v {
			return false
		}
	}
	for k, v := range o.Odds {
		ov, ok := other.Odds[k]
		if !ok || len(ov) != len(v) {
			return false
		}
		for i := range v {
			if v[i] != ov[i] {
				return false
			}
		}
	}
	for i := range o.OverProjections {
		if o.OverProjections[i] != other.OverProjections[i] {
			return false
		}
	}
	return true
}

// Empty reports whether the snapshot carries no usable market at all.
func (o *OddsSnapshot) Empty() bool {
	return o == nil || (len(o.WinProbabilities) == 0 && len(o.Odds) == 0 && len(o.OverProjections) == 0)
}
