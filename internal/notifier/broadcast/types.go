// Package broadcast fans one payload out to every configured destination.
// Destinations fail independently: one dead channel never blocks delivery to
// the rest, and the caller gets a per-destination report once every send has
// been attempted.
package broadcast

import (
	"fmt"
	"strconv"
	"strings"

	kit "crexbot/internal/transport"
)

type Config struct {
	// Channels accepts numeric chat IDs ("-1001234") and public usernames
	// ("@crexfeed").
	Channels   []string
	RatePerSec int
	RetryMax   int
}

// Report is the outcome of one fan-out: every target was attempted exactly
// once (plus retries), no matter how many failed.
type Report struct {
	Total    int
	Failed   int
	Failures []kit.ChatTarget
}

func (r Report) OK() int { return r.Total - r.Failed }

func parseTarget(raw string) (kit.ChatTarget, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return kit.ChatTarget{}, fmt.Errorf("empty channel entry")
	}
	if strings.HasPrefix(raw, "@") {
		return kit.ChatTarget{Username: raw}, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return kit.ChatTarget{}, fmt.Errorf("channel %q: not an id or @username", raw)
	}
	return kit.ChatTarget{ChatID: id}, nil
}

// ParseTargets resolves the configured channel list, skipping nothing: a
// single bad entry fails the whole list so misconfiguration is caught at
// load time rather than silently narrowing the audience.
func ParseTargets(channels []string) ([]kit.ChatTarget, error) {
	targets := make([]kit.ChatTarget, 0, len(channels))
	for _, raw := range channels {
		t, err := parseTarget(raw)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}
