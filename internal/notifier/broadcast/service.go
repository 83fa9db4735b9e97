package broadcast

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "crexbot/internal/transport"
	logx "crexbot/pkg/logx"
)

type Service struct {
	mu      sync.Mutex
	cfg     Config
	targets []kit.ChatTarget
	limiter *rate.Limiter

	adapter kit.Adapter
	log     logx.Logger
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	targets, err := ParseTargets(cfg.Channels)
	if err != nil {
		return nil, err
	}
	cfg = withDefaults(cfg)
	return &Service{
		cfg:     cfg,
		targets: targets,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		adapter: adapter,
		log:     log,
	}, nil
}

func withDefaults(cfg Config) Config {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 2
	}
	return cfg
}

// Apply swaps in a new channel list and rate limit. A fan-out already in
// flight keeps its snapshot of the old targets.
func (s *Service) Apply(cfg Config) error {
	targets, err := ParseTargets(cfg.Channels)
	if err != nil {
		return err
	}
	cfg = withDefaults(cfg)
	s.mu.Lock()
	s.cfg = cfg
	s.targets = targets
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	s.mu.Unlock()
	s.log.Info("broadcast config applied", logx.Int("channels", len(targets)), logx.Int("rps", cfg.RatePerSec))
	return nil
}

func (s *Service) Targets() []kit.ChatTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]kit.ChatTarget(nil), s.targets...)
}

// SendText delivers one text message to every destination. It satisfies the
// engine's broadcaster: best effort, failures logged and absorbed.
func (s *Service) SendText(ctx context.Context, text string) {
	s.BroadcastText(ctx, text)
}

// SendPhoto delivers one photo to every destination, best effort.
func (s *Service) SendPhoto(ctx context.Context, png []byte, caption string) {
	s.fanOut(ctx, "photo", func(ctx context.Context, t kit.ChatTarget) error {
		_, err := s.adapter.SendPhoto(ctx, t, kit.Photo{Bytes: png, Caption: caption}, markdownOpts())
		return err
	})
}

// BroadcastText is SendText with the per-destination report, for callers that
// surface delivery outcomes (the channel probe command does).
func (s *Service) BroadcastText(ctx context.Context, text string) Report {
	return s.fanOut(ctx, "text", func(ctx context.Context, t kit.ChatTarget) error {
		_, err := s.adapter.SendText(ctx, t, text, markdownOpts())
		return err
	})
}

func markdownOpts() *kit.SendOptions {
	return &kit.SendOptions{ParseMode: "Markdown"}
}

// fanOut attempts send for every current target concurrently and returns
// once all attempts (including retries) have finished. Each goroutine takes
// a limiter token first, so the aggregate send rate stays bounded however
// many channels are configured.
func (s *Service) fanOut(ctx context.Context, kind string, send func(context.Context, kit.ChatTarget) error) Report {
	s.mu.Lock()
	targets := s.targets
	lim := s.limiter
	retry := s.cfg.RetryMax
	s.mu.Unlock()

	rep := Report{Total: len(targets)}
	if len(targets) == 0 {
		return rep
	}

	var (
		wg    sync.WaitGroup
		repMu sync.Mutex
	)
	wg.Add(len(targets))
	for _, t := range targets {
		t := t
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in broadcast send",
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())))
					repMu.Lock()
					rep.Failed++
					rep.Failures = append(rep.Failures, t)
					repMu.Unlock()
				}
			}()
			if err := s.sendOne(ctx, lim, retry, t, send); err != nil {
				s.log.Warn("broadcast send failed",
					logx.String("kind", kind),
					logx.Int64("chat_id", t.ChatID),
					logx.String("username", t.Username),
					logx.Err(err))
				repMu.Lock()
				rep.Failed++
				rep.Failures = append(rep.Failures, t)
				repMu.Unlock()
			}
		}()
	}
	wg.Wait()
	return rep
}

func (s *Service) sendOne(ctx context.Context, lim *rate.Limiter, retry int, t kit.ChatTarget, send func(context.Context, kit.ChatTarget) error) error {
	var last error
	for i := 0; i <= retry; i++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}
		err := send(ctx, t)
		if err == nil {
			return nil
		}
		last = err
		if i == retry {
			break
		}
		delay := time.Duration(200+100*i) * time.Millisecond
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			return ctx.Err()
		case <-tmr.C:
		}
	}
	return last
}
