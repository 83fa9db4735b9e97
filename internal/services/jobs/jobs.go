// Package jobs runs the bot's side schedules on cron specs: the live-match
// discovery digest and audit retention pruning.
package jobs

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "crexbot/pkg/logx"
)

type Config struct {
	Enabled        bool
	DefaultTimeout time.Duration
	Timezone       string // IANA TZ, e.g. "Asia/Kolkata"
}

type jobDef struct {
	name    string
	spec    string
	timeout time.Duration
	run     func(ctx context.Context) error
	entryID cron.EntryID
	running bool
}

type Service struct {
	mu     sync.Mutex
	cfg    Config
	log    logx.Logger
	parser cron.Parser
	c      *cron.Cron
	defs   map[string]*jobDef
	runCtx context.Context
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		log: log,
		parser: cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		defs: map[string]*jobDef{},
	}
}

// Add registers (or replaces, by name) a job. Specs follow the standard
// five-field cron grammar plus descriptors ("@hourly", "@every 30m").
// Registration before Start is fine; the entry is armed when the cron runs.
func (s *Service) Add(name, spec string, timeout time.Duration, run func(ctx context.Context) error) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("job name required")
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.defs[name]; ok && s.c != nil && old.entryID != 0 {
		s.c.Remove(old.entryID)
	}
	d := &jobDef{name: name, spec: spec, timeout: s.resolveTimeout(timeout), run: run}
	s.defs[name] = d
	if s.c != nil {
		if err := s.armLocked(d); err != nil {
			return err
		}
	}
	s.log.Debug("job registered", logx.String("job", name), logx.String("spec", spec))
	return nil
}

// Remove unschedules a job by name.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[name]
	if !ok {
		return false
	}
	if s.c != nil && d.entryID != 0 {
		s.c.Remove(d.entryID)
	}
	delete(s.defs, name)
	return true
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.c != nil {
		return
	}
	s.runCtx = ctx
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.location()))
	for _, d := range s.defs {
		if err := s.armLocked(d); err != nil {
			s.log.Error("job arm failed", logx.String("job", d.name), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("jobs started", logx.Int("count", len(s.defs)), logx.String("tz", s.location().String()))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
		s.log.Info("jobs stopped")
	case <-ctx.Done():
		s.log.Warn("jobs stop timed out; runs draining in background")
	}
}

// armLocked registers the cron entry for d. Call with s.mu held. Overlapping
// runs of the same job are skipped, not queued.
func (s *Service) armLocked(d *jobDef) error {
	eid, err := s.c.AddFunc(d.spec, func() { s.execute(d) })
	if err == nil {
		d.entryID = eid
	}
	return err
}

func (s *Service) execute(d *jobDef) {
	s.mu.Lock()
	if d.running {
		s.mu.Unlock()
		s.log.Debug("job skipped, previous run still going", logx.String("job", d.name))
		return
	}
	d.running = true
	ctx := s.runCtx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		d.running = false
		s.mu.Unlock()
		if r := recover(); r != nil {
			s.log.Error("panic in job",
				logx.String("job", d.name),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := d.run(ctx); err != nil {
		s.log.Warn("job failed", logx.String("job", d.name), logx.Duration("dur", time.Since(start)), logx.Err(err))
		return
	}
	s.log.Debug("job finished", logx.String("job", d.name), logx.Duration("dur", time.Since(start)))
}

func (s *Service) resolveTimeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return s.cfg.DefaultTimeout
}

func (s *Service) location() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
