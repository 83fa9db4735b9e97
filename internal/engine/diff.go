package engine

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// NewEvents returns the suffix of events that has not been broadcast yet:
// everything strictly after the first occurrence of lastEvent.
//
// When lastEvent is empty (first tick) or no longer present in events (the
// upstream list was truncated or reordered), the whole list counts as new.
// resendLimit, when positive, caps that
// full resend to the newest N events so a source reset can't replay an
// entire innings.
func NewEvents(events []string, lastEvent string, resendLimit int) []string {
	if len(events) == 0 {
		return nil
	}
	if lastEvent != "" {
		if i := slices.Index(events, lastEvent); i >= 0 {
			return events[i+1:]
		}
	}
	if resendLimit > 0 && len(events) > resendLimit {
		return events[len(events)-resendLimit:]
	}
	return events
}

// ParseOvers splits an overs string like "12.5" into the over number and the
// ball within that over (0-5, where 5 is the last ball). A missing fractional
// part means ball 0.
func ParseOvers(s string) (over, ball int, err error) {
	intPart, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	over, err = strconv.Atoi(intPart)
	if err != nil {
		return 0, 0, fmt.Errorf("overs %q: %w", s, err)
	}
	if frac != "" {
		ball, err = strconv.Atoi(frac)
		if err != nil {
			return 0, 0, fmt.Errorf("overs %q: %w", s, err)
		}
	}
	return over, ball, nil
}
