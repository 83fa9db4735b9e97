// Package engine is the incremental update engine: it polls match state,
// decides what is new since the previous tick, suppresses redundant
// broadcasts, announces over boundaries, and throttles odds on a time basis.
package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"crexbot/internal/crex"
	logx "crexbot/pkg/logx"
)

// Source is the upstream snapshot provider (implemented by crex.Client).
// Errors are opaque; the engine only skips the affected part of a tick.
type Source interface {
	MatchSummary(ctx context.Context, url string) (*crex.MatchSnapshot, error)
	PlayerStats(ctx context.Context, url string) (*crex.PlayerStats, error)
	MatchOdds(ctx context.Context, url string) (*crex.OddsSnapshot, error)
}

// Broadcaster delivers one payload to every configured destination and
// returns once all destinations have been attempted. Failures are absorbed
// downstream; the engine cannot (and does not) distinguish partial delivery.
type Broadcaster interface {
	SendText(ctx context.Context, text string)
	SendPhoto(ctx context.Context, png []byte, caption string)
}

// RenderFunc turns an odds snapshot into a PNG, or nil when the snapshot has
// nothing renderable.
type RenderFunc func(*crex.OddsSnapshot) ([]byte, error)

type Config struct {
	PollInterval time.Duration // default 1s
	OddsCooldown time.Duration // default 50s
	ResendLimit  int           // 0 = unlimited full resend
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.OddsCooldown <= 0 {
		c.OddsCooldown = 50 * time.Second
	}
	return c
}

// subscription owns the recurring tick loop for one match. Its state is only
// touched from its own loop goroutine.
type subscription struct {
	url    string
	cancel context.CancelFunc
	done   chan struct{}
	state  matchState
}

type Service struct {
	mu   sync.Mutex
	cfg  Config
	subs map[string]*subscription

	src      Source
	out      Broadcaster
	render   RenderFunc
	composer *Composer
	log      logx.Logger

	// injectable for tests
	now func() time.Time

	runCtx context.Context
	wg     sync.WaitGroup
}

func New(cfg Config, src Source, out Broadcaster, render RenderFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg.withDefaults(),
		subs:     map[string]*subscription{},
		src:      src,
		out:      out,
		render:   render,
		composer: NewComposer(),
		log:      log,
		now:      time.Now,
	}
}

// Start binds the service to its run context. Subscriptions created before
// Start fail; subscriptions are cancelled when ctx ends.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	s.runCtx = ctx
	cfg := s.cfg
	s.mu.Unlock()
	s.log.Info("engine started",
		logx.Duration("poll_interval", cfg.PollInterval),
		logx.Duration("odds_cooldown", cfg.OddsCooldown))
}

// Apply updates tunables live. Poll interval changes take effect for new
// subscriptions; cooldown and resend limit apply from the next tick.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

// Subscribe installs the recurring tick for a match, with an immediate first
// firing. It is idempotent per match: subscribing an already-subscribed match
// cancels the previous loop (and discards its state) before installing the
// new one, so there is never more than one active loop per match.
func (s *Service) Subscribe(matchURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runCtx == nil {
		return errors.New("engine not started")
	}
	if old, ok := s.subs[matchURL]; ok {
		old.cancel()
		s.log.Debug("replacing existing subscription", logx.String("match", matchURL))
	}

	ctx, cancel := context.WithCancel(s.runCtx)
	sub := &subscription{
		url:    matchURL,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  newMatchState(),
	}
	s.subs[matchURL] = sub

	interval := s.cfg.PollInterval
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, sub, interval)
	}()

	s.log.Info("subscribed", logx.String("match", matchURL))
	return nil
}

// Unsubscribe cancels the match's tick loop and discards its state. An
// in-flight tick may still complete one final delivery.
func (s *Service) Unsubscribe(matchURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[matchURL]
	if !ok {
		return false
	}
	sub.cancel()
	delete(s.subs, matchURL)
	s.log.Info("unsubscribed", logx.String("match", matchURL))
	return true
}

// UnsubscribeAll cancels every subscription and returns how many there were.
func (s *Service) UnsubscribeAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.subs)
	for url, sub := range s.subs {
		sub.cancel()
		delete(s.subs, url)
	}
	if n > 0 {
		s.log.Info("all subscriptions cancelled", logx.Int("count", n))
	}
	return n
}

// Active returns the currently subscribed match URLs, sorted.
func (s *Service) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	urls := make([]string, 0, len(s.subs))
	for url := range s.subs {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// Stop cancels all subscriptions and waits (bounded by ctx) for their loops
// to drain.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.UnsubscribeAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("engine stopped", logx.Duration("took", time.Since(start)))
	case <-ctx.Done():
		s.log.Warn("engine stop timed out; loops draining in background")
	}
}

// run is the per-match tick loop: an immediate first tick, then one tick per
// interval. The loop body is sequential, so ticks for one match never
// overlap; a slow fetch or broadcast delays only this match's next tick.
func (s *Service) run(ctx context.Context, sub *subscription, interval time.Duration) {
	defer close(sub.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tick(ctx, sub)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, sub)
		}
	}
}
