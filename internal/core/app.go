package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"wasend/internal/adapters/telegram"
	"wasend/internal/adapters/wagateway"
	"wasend/internal/config"
	"wasend/internal/contacts"
	"wasend/internal/dispatch"
	"wasend/internal/eventbus"
	"wasend/internal/kit"
	"wasend/internal/monitor"
	"wasend/internal/report"
	"wasend/internal/schedule"
	"wasend/internal/storage"
	"wasend/pkg/logx"
)

// Mode selects which phases a run executes.
type Mode string

const (
	// ModeSend runs the dispatch pass only.
	ModeSend Mode = "send"
	// ModeMonitor skips dispatch and goes straight to reply polling.
	ModeMonitor Mode = "monitor"
	// ModeBoth dispatches first, then polls for replies.
	ModeBoth Mode = "both"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSend:
		return ModeSend, nil
	case ModeMonitor:
		return ModeMonitor, nil
	case ModeBoth, "":
		return ModeBoth, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want send, monitor or both)", s)
	}
}

func (m Mode) sends() bool    { return m == ModeSend || m == ModeBoth }
func (m Mode) monitors() bool { return m == ModeMonitor || m == ModeBoth }

type Options struct {
	ConfigPath   string
	ContactsPath string
	Mode         Mode
}

type App struct {
	opts Options

	cfgm *config.Manager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service

	messenger kit.Messenger
	bus       eventbus.Bus
	store     storage.Store

	engine *dispatch.Engine
	mon    *monitor.Service
	rep    *report.Console
}

func NewApp(opts Options) (*App, error) {
	if opts.Mode == "" {
		opts.Mode = ModeBoth
	}
	if opts.Mode.sends() && strings.TrimSpace(opts.ContactsPath) == "" {
		return nil, fmt.Errorf("mode %s needs a contacts file (-contacts)", opts.Mode)
	}

	cfgm := config.NewManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	messenger, err := buildMessenger(cfg, log)
	if err != nil {
		return nil, err
	}

	dcfg, err := dispatchConfig(cfg)
	if err != nil {
		return nil, err
	}
	mcfg, err := monitorConfig(cfg)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	engine := dispatch.New(dcfg, messenger, bus, store, log.With(logx.String("comp", "dispatch")))
	mon := monitor.New(mcfg, messenger, bus, store, log.With(logx.String("comp", "monitor")))
	rep := report.New(report.Config{Bell: cfg.Report.Bell}, bus, log.With(logx.String("comp", "report")))

	return &App{
		opts:      opts,
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		messenger: messenger,
		bus:       bus,
		store:     store,
		engine:    engine,
		mon:       mon,
		rep:       rep,
	}, nil
}

func buildMessenger(cfg *config.Config, log logx.Logger) (kit.Messenger, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Messenger.Backend)) {
	case "wagateway":
		timeout, err := config.ParseDurationField("messenger.gateway.timeout", cfg.Messenger.Gateway.Timeout)
		if err != nil {
			return nil, err
		}
		return wagateway.New(wagateway.Config{
			BaseURL: cfg.Messenger.Gateway.BaseURL,
			Token:   cfg.Messenger.Gateway.Token,
			Timeout: timeout,
		}, log.With(logx.String("comp", "wagateway")))
	case "telegram":
		pollTimeout, err := config.ParseDurationOrDefault("messenger.telegram.poll_timeout",
			cfg.Messenger.Telegram.PollTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		return telegram.New(telegram.Config{
			Token:       cfg.Messenger.Telegram.Token,
			PollTimeout: pollTimeout,
		}, log.With(logx.String("comp", "telegram")))
	default:
		return nil, fmt.Errorf("unknown messenger backend %q", cfg.Messenger.Backend)
	}
}

func dispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	minD, err := config.ParseDurationField("campaign.min_delay", cfg.Campaign.MinDelay)
	if err != nil {
		return dispatch.Config{}, err
	}
	maxD, err := config.ParseDurationField("campaign.max_delay", cfg.Campaign.MaxDelay)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{
		RetryLimit: cfg.Campaign.RetryLimit,
		MinDelay:   minD,
		MaxDelay:   maxD,
	}, nil
}

func monitorConfig(cfg *config.Config) (monitor.Config, error) {
	iv, err := config.ParseDurationField("monitor.interval", cfg.Monitor.Interval)
	if err != nil {
		return monitor.Config{}, err
	}
	return monitor.Config{
		Interval:        iv,
		Keywords:        cfg.NormalizedKeywords(),
		AutoReply:       cfg.Monitor.AutoReply,
		ReplyRatePerSec: cfg.Monitor.ReplyRatePerSec,
	}, nil
}

// Run drives the whole campaign: preflight ping, optional scheduled start,
// the dispatch pass, then reply monitoring. It returns nil when the run
// completed or was interrupted by the operator, and an error for anything
// fatal.
func (a *App) Run(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))
	runCtx := a.sup.Context()
	defer a.shutdown()

	a.sup.Go("report", a.rep.Run)
	a.startReload()
	a.sup.Go("config.watch", a.cfgm.Watch)

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	defer func() { _, _ = daemon.SdNotify(false, daemon.SdNotifyStopping) }()

	if err := a.preflight(runCtx); err != nil {
		return err
	}

	if a.opts.Mode.sends() {
		if err := a.waitForSchedule(runCtx); err != nil {
			return interruptedOK(err)
		}
		if err := a.dispatchPass(runCtx); err != nil {
			return err
		}
	}

	if a.opts.Mode.monitors() {
		if !a.cfgm.Get().Monitor.Enabled {
			a.log.Info("reply monitor disabled in config")
			return nil
		}
		a.log.Info("monitoring replies (ctrl-c to stop)")
		if err := a.mon.Run(runCtx); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) preflight(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.messenger.Ping(pingCtx); err != nil {
		return fmt.Errorf("messenger unreachable: %w", err)
	}
	a.log.Info("messenger session ready",
		logx.String("backend", a.cfgm.Get().Messenger.Backend))
	return nil
}

// waitForSchedule blocks until the campaign schedule's next activation.
// An empty schedule starts the pass immediately.
func (a *App) waitForSchedule(ctx context.Context) error {
	raw := strings.TrimSpace(a.cfgm.Get().Campaign.Schedule)
	if raw == "" {
		return nil
	}
	spec, err := schedule.Parse(raw)
	if err != nil {
		return fmt.Errorf("campaign.schedule: %w", err)
	}
	next := spec.Next(time.Now())
	a.log.Info("waiting for scheduled start",
		logx.String("schedule", raw),
		logx.Time("at", next))

	t := time.NewTimer(time.Until(next))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (a *App) dispatchPass(ctx context.Context) error {
	f, err := os.Open(a.opts.ContactsPath)
	if err != nil {
		return fmt.Errorf("contacts file: %w", err)
	}
	defer f.Close()

	src, err := contacts.NewReader(f, time.Now)
	if err != nil {
		return fmt.Errorf("contacts file: %w", err)
	}

	sum, err := a.engine.Run(ctx, src)
	interrupted := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	if err != nil && !interrupted {
		return err
	}

	a.log.Info("campaign summary",
		logx.Int("sent", sum.Sent),
		logx.Int("failed", sum.Failed),
		logx.Int("skipped", sum.Skipped),
		logx.Bool("interrupted", interrupted))
	return interruptedOK(err)
}

func (a *App) startReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(ctx context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(cfg)
			}
		}
	})
}

// applyConfig fans a validated hot-reload out to the live services. The
// messenger backend is fixed for the lifetime of a run; a backend change
// needs a restart and only gets a warning here.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	if dcfg, err := dispatchConfig(cfg); err == nil {
		a.engine.Apply(dcfg)
	} else {
		a.log.Warn("reload: keeping previous campaign settings", logx.Err(err))
	}
	if mcfg, err := monitorConfig(cfg); err == nil {
		a.mon.Apply(mcfg)
	} else {
		a.log.Warn("reload: keeping previous monitor settings", logx.Err(err))
	}

	a.log.Info("config reloaded")
}

func (a *App) shutdown() {
	a.sup.Cancel()

	// Bound each step so one stuck component can't hang the exit.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		ctx, cancel := context.WithTimeout(context.Background(), max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(ctx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-ctx.Done():
			a.log.Warn("stop step deadline reached",
				logx.String("name", name),
				logx.Duration("max", max))
		}
	}

	step("messenger.close", 5*time.Second, a.messenger.Close)
	if a.store != nil {
		step("storage.close", 3*time.Second, func(context.Context) error { return a.store.Close() })
	}
	step("supervisor.wait", 5*time.Second, a.sup.Wait)
	_ = a.logs.Close()
}

// interruptedOK maps an operator interrupt to a clean exit.
func interruptedOK(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
