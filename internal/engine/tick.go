package engine

import (
	"context"

	"crexbot/internal/crex"
	logx "crexbot/pkg/logx"
)

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// tick runs one full poll cycle for a match: fetch, odds throttle check, ball
// event diff, commentary composition, dispatch. A failed summary fetch skips
// the whole tick without touching broadcast state, so the missed interval is
// caught up on the next successful one.
func (s *Service) tick(ctx context.Context, sub *subscription) {
	cfg := s.config()
	log := s.log.With(logx.String("match", sub.url))

	snap, err := s.src.MatchSummary(ctx, sub.url)
	if err != nil {
		log.Warn("summary fetch failed, skipping tick", logx.Err(err))
		return
	}

	// Player stats and odds are optional enrichments; their absence
	// degrades the output, never the tick.
	var striker *crex.Player
	if stats, err := s.src.PlayerStats(ctx, sub.url); err != nil {
		log.Debug("player stats unavailable", logx.Err(err))
	} else {
		striker = stats.Striker
	}

	s.maybeBroadcastOdds(ctx, sub, cfg, log)

	over, ball, err := ParseOvers(snap.Overs)
	if err != nil {
		log.Debug("unparseable overs field", logx.String("overs", snap.Overs), logx.Err(err))
		over, ball = 0, 0
	}

	fresh := NewEvents(snap.BallEvents, sub.state.lastEvent, cfg.ResendLimit)
	if len(fresh) == 0 {
		return
	}
	log.Debug("new ball events", logx.Int("count", len(fresh)))

	for _, event := range fresh {
		newOver := over != sub.state.lastOverAnnounced
		for _, msg := range s.composer.Compose(event, snap, striker, ball == 5, newOver) {
			s.out.SendText(ctx, msg)
		}
		if newOver {
			sub.state.lastOverAnnounced = over
		}
		sub.state.lastEvent = event
	}
}

// maybeBroadcastOdds applies the odds throttle and, when it fires, renders
// and sends the odds image. State only advances on an actual send, so a
// render failure or empty image retries naturally on later ticks.
func (s *Service) maybeBroadcastOdds(ctx context.Context, sub *subscription, cfg Config, log logx.Logger) {
	odds, err := s.src.MatchOdds(ctx, sub.url)
	if err != nil {
		log.Debug("odds unavailable", logx.Err(err))
		return
	}

	now := s.now()
	if !shouldBroadcastOdds(&sub.state, odds, now, cfg.OddsCooldown) {
		return
	}
	if s.render == nil {
		return
	}

	png, err := s.render(odds)
	if err != nil {
		log.Warn("odds render failed", logx.Err(err))
		return
	}
	if png == nil {
		return
	}

	s.out.SendPhoto(ctx, png, "Live odds update")
	sub.state.lastOdds = odds
	sub.state.lastOddsAt = now
}
