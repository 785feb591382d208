package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recurpay/internal/admin"
	"recurpay/internal/config"
	"recurpay/internal/eventbus"
	"recurpay/internal/notify"
	"recurpay/internal/recurring"
	"recurpay/internal/runtime/supervisor"
	"recurpay/internal/scheduler"
	"recurpay/internal/storage"
	logx "recurpay/pkg/logx"
)

// App wires config, storage, the recurring engine, the scheduler, alerts and
// the admin API, and keeps them in sync with the config file.
type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	db   *storage.DB

	sched  *scheduler.Service
	notif  *notify.Service
	admin  *admin.Server
	target telegramTarget
}

// New loads the config and builds every component. Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfgm.SetValidator(validate)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(context.Background(), cfg); err != nil {
		return nil, err
	}

	logSvc, root := logx.New(loggingConfig(cfg))
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))
	bus := eventbus.New()

	sc, err := storageConfig(cfg)
	if err != nil {
		return nil, err
	}
	openCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, err := storage.Open(openCtx, sc, root.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	schedCfg, err := schedulerConfig(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	// The scheduler owns the live timezone; recurrence arithmetic reads it
	// on every call so a reload applies without restart.
	var sched *scheduler.Service
	opts := recurring.Options{
		Log:      root,
		Bus:      bus,
		Location: func() *time.Location { return sched.Location() },
	}
	proc := recurring.NewProcessor(db, opts)
	defs := recurring.NewDefinitions(db, opts)
	sched, err = scheduler.New(schedCfg, db, proc, root, bus, scheduler.WithRunLog(db))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	ncfg, err := notifierConfig(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	target := notifierTarget(cfg)
	sender, err := newSender(target)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("notifier: %w", err)
	}
	notif := notify.New(ncfg, sender, root, bus, db)

	acfg, err := adminConfig(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	adm := admin.New(acfg, admin.Deps{Definitions: defs, Scheduler: sched, Store: db}, root)

	return &App{
		cfgm:   cfgm,
		log:    log,
		logs:   logSvc,
		bus:    bus,
		db:     db,
		sched:  sched,
		notif:  notif,
		admin:  adm,
		target: target,
	}, nil
}

// validate is the transactional check run before a config is committed.
func validate(_ context.Context, cfg *config.Config) error {
	errs := []error{config.Validate(cfg)}
	if _, err := scheduler.ParseSchedule(cfg.Scheduler.SpecOrDefault()); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.spec: %w", err))
	}
	return errors.Join(errs...)
}

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	run := a.sup.Context()

	if err := a.admin.Start(run); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	a.notif.Start(run)
	a.sup.GoRestart("notify.forward", func(c context.Context) error {
		return a.notif.Forward(c, a.bus)
	})
	a.sched.Start(run)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Trace("event", logx.String("type", e.Type), logx.Any("data", e.Data))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case next, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: only the newest config matters.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, last, next)
				last = next
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	a.startSystemd()

	snap := a.sched.Snapshot()
	a.log.Info("app started",
		logx.String("storage", a.db.Driver()),
		logx.Bool("scheduler", snap.Enabled),
		logx.String("spec", snap.Spec),
		logx.String("tz", snap.Timezone),
		logx.Bool("notifier", a.notif.Enabled()),
		logx.String("admin", a.admin.Addr()),
	)
	return nil
}

// applyConfig pushes a committed config into the running components.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(loggingConfig(next))

	for _, s := range sections {
		if strings.HasPrefix(s, "storage") {
			a.log.Warn("storage config changed; restart required for it to take effect")
		}
	}

	if sc, err := schedulerConfig(next); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else if err := a.sched.Apply(sc); err != nil {
		a.log.Warn("scheduler rejected config; keeping previous", logx.Err(err))
	}

	a.applyNotifier(ctx, next)

	if ac, err := adminConfig(next); err != nil {
		a.log.Warn("invalid admin config; keeping previous", logx.Err(err))
	} else if err := a.admin.Reconfigure(ctx, ac); err != nil {
		a.log.Error("admin restart failed", logx.Err(err))
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Data: sections})
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) applyNotifier(ctx context.Context, next *config.Config) {
	ncfg, err := notifierConfig(next)
	if err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
		return
	}
	if t := notifierTarget(next); t != a.target {
		sender, err := newSender(t)
		if err != nil {
			a.log.Warn("notifier sender rebuild failed; keeping previous", logx.Err(err))
			return
		}
		a.notif.SetSender(sender)
		a.target = t
	}

	wasEnabled := a.notif.Enabled()
	a.notif.Apply(ncfg)
	switch {
	case wasEnabled && !ncfg.Enabled:
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.notif.Stop(stopCtx)
		cancel()
	case !wasEnabled && ncfg.Enabled:
		a.notif.Start(ctx)
	}
}

// Stop shuts components down in reverse dependency order, bounding each
// step so one stuck component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.db.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	notifyStopping()
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context)) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		fn(stepCtx)
		if stepCtx.Err() != nil {
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
			return
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("admin", 2*time.Second, a.admin.Stop)
	step("scheduler", 10*time.Second, a.sched.Stop)
	step("notifier", 3*time.Second, a.notif.Stop)
	step("supervisor", 2*time.Second, func(c context.Context) { _ = a.sup.Wait(c) })

	err := a.db.Close()
	if err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
	return err
}
