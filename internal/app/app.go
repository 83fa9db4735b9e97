// Package app wires configuration, transport, the update engine and side
// services together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crexbot/internal/config"
	"crexbot/internal/crex"
	"crexbot/internal/engine"
	"crexbot/internal/notifier/broadcast"
	"crexbot/internal/render"
	"crexbot/internal/runtime/supervisor"
	"crexbot/internal/services/jobs"
	"crexbot/internal/storage"
	kit "crexbot/internal/transport"
	telegram "crexbot/internal/transport/telegram"
	logx "crexbot/pkg/logx"
)

const (
	jobDiscoveryDigest = "discovery.digest"
	jobAuditPrune      = "audit.prune"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	adapter kit.Adapter
	crex    *crex.Client
	caster  *broadcast.Service
	engine  *engine.Service
	jobs    *jobs.Service

	cmdm *CommandManager
	bot  *Bot

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap with Telegram logging disabled, set the target, then apply
	// the final config, so Apply can't warn about a missing target.
	logCfg := mapLogConfig(cfg)
	bootLogCfg := logCfg
	bootLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(bootLogCfg, ad)
	log = log.With(logx.String("comp", "app"))
	applyLogTarget(logSvc, cfg)
	logSvc.Apply(logCfg)

	var store storage.Store
	if cfg.Storage != nil {
		sc, err := mapStorageConfig(cfg)
		if err != nil {
			return nil, err
		}
		store, err = storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		if store != nil {
			log.Info("storage enabled", logx.String("driver", sc.Driver))
		}
	}

	srcCfg, err := mapSourceConfig(cfg)
	if err != nil {
		return nil, err
	}
	client := crex.New(srcCfg, log.With(logx.String("comp", "crex")))

	caster, err := broadcast.New(broadcast.Config{
		Channels:   cfg.Broadcast.Channels,
		RatePerSec: cfg.Broadcast.RatePerSec,
		RetryMax:   cfg.Broadcast.RetryMax,
	}, ad, log.With(logx.String("comp", "broadcast")))
	if err != nil {
		return nil, err
	}

	engCfg, err := mapEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	eng := engine.New(engCfg, client, caster, render.Odds, log.With(logx.String("comp", "engine")))

	jobSvc := jobs.New(jobs.Config{
		Enabled:        cfg.Discovery.Enabled,
		DefaultTimeout: time.Minute,
	}, log.With(logx.String("comp", "jobs")))

	cmdm := NewCommandManager(log.With(logx.String("comp", "commands")), ad, cfg.Telegram.OwnerUserIDs)
	bot := NewBot(ad, client, eng, caster, store, log.With(logx.String("comp", "bot")))
	bot.RegisterAll(cmdm)

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		adapter: ad,
		crex:    client,
		caster:  caster,
		engine:  eng,
		jobs:    jobSvc,
		cmdm:    cmdm,
		bot:     bot,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app run context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.engine.Start(a.sup.Context())

	a.registerJobs(a.cfgm.Get())
	a.jobs.Start(a.sup.Context())

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	// Best effort; the menu is cosmetic.
	if mu, ok := a.adapter.(kit.CommandMenuUpdater); ok {
		if err := mu.UpdateMenuCommands(a.sup.Context(), a.cmdm.MenuCommands()); err != nil {
			a.log.Debug("menu update failed", logx.Err(err))
		}
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(newCfg)
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig pushes a validated hot-reloaded config into the running
// services. Storage driver changes need a restart and are only warned about.
func (a *App) applyConfig(cfg *config.Config) {
	applyLogTarget(a.logs, cfg)
	a.logs.Apply(mapLogConfig(cfg))

	a.cmdm.SetOwners(cfg.Telegram.OwnerUserIDs)

	if err := a.caster.Apply(broadcast.Config{
		Channels:   cfg.Broadcast.Channels,
		RatePerSec: cfg.Broadcast.RatePerSec,
		RetryMax:   cfg.Broadcast.RetryMax,
	}); err != nil {
		a.log.Warn("invalid broadcast config; keeping previous", logx.Err(err))
	}

	if engCfg, err := mapEngineConfig(cfg); err != nil {
		a.log.Warn("invalid engine config; keeping previous", logx.Err(err))
	} else {
		a.engine.Apply(engCfg)
	}

	a.registerJobs(cfg)

	// Storage driver and path changes are picked up on the next restart.

	a.log.Info("config reloaded")
}

// registerJobs syncs the cron jobs with the discovery config.
func (a *App) registerJobs(cfg *config.Config) {
	if cfg == nil || !cfg.Discovery.Enabled {
		a.jobs.Remove(jobDiscoveryDigest)
		a.jobs.Remove(jobAuditPrune)
		return
	}

	spec := strings.TrimSpace(cfg.Discovery.Schedule)
	if spec == "" {
		spec = "@every 1h"
	}
	if err := a.jobs.Add(jobDiscoveryDigest, spec, time.Minute, a.bot.DiscoveryDigest); err != nil {
		a.log.Warn("discovery digest job rejected", logx.String("spec", spec), logx.Err(err))
	}

	if a.store != nil && strings.TrimSpace(cfg.Discovery.AuditRetention) != "" {
		retention, err := config.ParseDurationField("discovery.audit_retention", cfg.Discovery.AuditRetention)
		if err != nil {
			a.log.Warn("audit retention rejected", logx.Err(err))
			return
		}
		err = a.jobs.Add(jobAuditPrune, "@every 12h", time.Minute, func(ctx context.Context) error {
			n, err := a.store.PruneAudit(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				a.log.Info("audit pruned", logx.Int("dropped", n))
			}
			return nil
		})
		if err != nil {
			a.log.Warn("audit prune job rejected", logx.Err(err))
		}
	} else {
		a.jobs.Remove(jobAuditPrune)
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			} else {
				a.log.Debug("stop step done", logx.String("name", name), logx.Duration("took", time.Since(start)))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("jobs", 2*time.Second, func(c context.Context) error { a.jobs.Stop(c); return nil })
	step("engine", 3*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

// ---- config mapping ----

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func applyLogTarget(logs *logx.Service, cfg *config.Config) {
	raw := strings.TrimSpace(cfg.Telegram.GroupLog)
	if raw == "" {
		logs.SetTelegramTarget(0, 0)
		return
	}
	if chatID, err := strconv.ParseInt(raw, 10, 64); err == nil {
		logs.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
}

func mapSourceConfig(cfg *config.Config) (crex.Config, error) {
	timeout, err := config.ParseDurationOrDefault("source.timeout", cfg.Source.Timeout, 10*time.Second)
	if err != nil {
		return crex.Config{}, err
	}
	return crex.Config{
		BaseURL:   cfg.Source.BaseURL,
		UserAgent: cfg.Source.UserAgent,
		Timeout:   timeout,
	}, nil
}

func mapEngineConfig(cfg *config.Config) (engine.Config, error) {
	poll, err := config.ParseDurationOrDefault("engine.poll_interval", cfg.Engine.PollInterval, time.Second)
	if err != nil {
		return engine.Config{}, err
	}
	cooldown, err := config.ParseDurationOrDefault("engine.odds_cooldown", cfg.Engine.OddsCooldown, 50*time.Second)
	if err != nil {
		return engine.Config{}, err
	}
	if cfg.Engine.ResendLimit < 0 {
		return engine.Config{}, fmt.Errorf("engine.resend_limit must be >= 0")
	}
	return engine.Config{
		PollInterval: poll,
		OddsCooldown: cooldown,
		ResendLimit:  cfg.Engine.ResendLimit,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	if sc == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 0)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      sc.Driver,
		Path:        sc.Path,
		BusyTimeout: busy,
	}, nil
}

// validateConfig rejects a bad hot-reload before it is committed.
func validateConfig(cfg *config.Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := mapSourceConfig(cfg); err != nil {
		return err
	}
	if _, err := mapEngineConfig(cfg); err != nil {
		return err
	}
	if _, err := broadcast.ParseTargets(cfg.Broadcast.Channels); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("discovery.audit_retention", cfg.Discovery.AuditRetention); err != nil {
		return err
	}
	return nil
}
