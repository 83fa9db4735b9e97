package engine

import (
	"math/rand"
	"strings"

	"crexbot/internal/crex"
)

// Flavor pools. The random pick is cosmetic only; nothing downstream depends
// on which line is chosen.
var (
	fourLines = []string{
		"💥 *FOUR!* Cracked through the covers!",
		"🔥 *FOUR!* Beautiful timing!",
		"🏏 *FOUR!* Pierced the field perfectly!",
		"💨 *FOUR!* Raced to the boundary!",
		"📏 *FOUR!* Pure placement brilliance!",
	}
	sixLines = []string{
		"🚀 *SIX!* Into the stands!",
		"🌪️ *SIX!* That went miles!",
		"💣 *SIX!* Smashed with power!",
		"🪐 *SIX!* High and handsome!",
		"🔨 *SIX!* Clean hit, maximum!",
	}
	wicketLines = []string{
		"💀 *WICKET!* Gone!",
		"🎯 *WICKET!* Clean bowled!",
		"🧤 *WICKET!* Taken behind!",
		"🍗 *WICKET!* Caught at the ropes!",
		"💔 *WICKET!* Big blow!",
	}
)

// Composer turns one raw ball event plus its surrounding context into the
// ordered message sequence to broadcast. It is a pure function of its inputs
// apart from the injected pick (used only for flavor line selection).
type Composer struct {
	pick func(n int) int
}

func NewComposer() *Composer {
	return &Composer{pick: rand.Intn}
}

// Compose builds the messages for a single new ball event, in dispatch order:
// raw event, score line, at most one flavor line, striker line, last-ball
// notice, over summary.
func (c *Composer) Compose(event string, snap *crex.MatchSnapshot, striker *crex.Player, lastBallOfOver, newOver bool) []string {
	msgs := []string{
		event,
		"🥎 *" + snap.ScoreLine() + "🥎*",
	}

	if flavor := c.flavor(event); flavor != "" {
		msgs = append(msgs, flavor)
	}

	if striker != nil && striker.Name != "" && striker.Name != crex.NA {
		msgs = append(msgs, " "+striker.Name+" "+striker.Runs+"("+striker.Balls+") on strike ✔️")
	}

	if lastBallOfOver {
		msgs = append(msgs, "*Last ball of over*")
	}

	if newOver {
		msgs = append(msgs, OverSummary(snap)...)
	}

	return msgs
}

// flavor returns one themed line for boundary/wicket events, first match
// wins: four, then six, then wicket.
func (c *Composer) flavor(event string) string {
	up := strings.ToUpper(event)
	switch {
	case strings.Contains(up, "4"):
		return fourLines[c.pick(len(fourLines))]
	case strings.Contains(up, "6"):
		return sixLines[c.pick(len(sixLines))]
	case strings.Contains(up, "OUT"), strings.Contains(up, "WICKET"):
		return wicketLines[c.pick(len(wicketLines))]
	}
	return ""
}

// OverSummary builds the aggregate block announced once per over: run rates,
// partnership and last wicket when present, then the match status.
func OverSummary(snap *crex.MatchSnapshot) []string {
	msgs := []string{
		"*CRR*: " + snap.CRR + " | *RRR*: " + snap.RRR,
	}
	if snap.Partnership != crex.NA {
		msgs = append(msgs, "*Partnership*: "+snap.Partnership)
	}
	if snap.LastWicket != crex.NA {
		msgs = append(msgs, snap.LastWicket+" ❌ ")
	}
	msgs = append(msgs, "⚠️ "+snap.Status)
	return msgs
}
