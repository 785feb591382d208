package scheduler

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"recurpay/internal/eventbus"
	logx "recurpay/pkg/logx"
)

// Service runs processing ticks on a cron trigger and on demand.
type Service struct {
	due   DueLister
	proc  Processor
	runs  RunLog
	clock Clock
	log   logx.Logger
	bus   eventbus.Bus

	mu      sync.Mutex
	cfg     Config
	spec    ParsedSpec
	c       *cron.Cron
	entry   cron.EntryID
	baseCtx context.Context

	loc      atomic.Pointer[time.Location]
	inFlight atomic.Int32
	ticks    atomic.Uint64
	last     atomic.Pointer[TickReport]
}

type Option func(*Service)

func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithRunLog(r RunLog) Option {
	return func(s *Service) { s.runs = r }
}

// New validates cfg and builds a stopped scheduler.
func New(cfg Config, due DueLister, proc Processor, log logx.Logger, bus eventbus.Bus, opts ...Option) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	cfg = normalize(cfg)
	spec, err := ParseSchedule(cfg.Spec)
	if err != nil {
		return nil, err
	}
	s := &Service{
		due:   due,
		proc:  proc,
		clock: systemClock{},
		log:   log.With(logx.String("comp", "scheduler")),
		bus:   bus,
		cfg:   cfg,
		spec:  spec,
	}
	s.loc.Store(cfg.Location)
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func normalize(cfg Config) Config {
	if strings.TrimSpace(cfg.Spec) == "" {
		cfg.Spec = "@every 1m"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return cfg
}

// Location is the timezone ticks and recurrence arithmetic run in.
func (s *Service) Location() *time.Location {
	if l := s.loc.Load(); l != nil {
		return l
	}
	return time.Local
}

// Start begins cron triggering if enabled. ctx bounds the ticks it starts.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	cfg := s.cfg
	if cfg.Enabled {
		s.startLocked()
	}
	s.mu.Unlock()

	if !cfg.Enabled {
		s.log.Info("scheduler disabled; manual runs only")
		return
	}
	if cfg.RunOnStart {
		go func() { _, _ = s.run(ctx, TriggerStartup) }()
	}
}

func (s *Service) startLocked() {
	if s.c != nil {
		return
	}
	sched, err := s.spec.schedule()
	if err != nil {
		// ParseSchedule already validated the spec.
		s.log.Error("invalid schedule", logx.String("spec", s.cfg.Spec), logx.Err(err))
		return
	}
	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	s.c = cron.New(cron.WithParser(cronParser), cron.WithLocation(s.Location()))
	s.entry = s.c.Schedule(sched, cron.FuncJob(func() { _, _ = s.run(ctx, TriggerCron) }))
	s.c.Start()
	s.log.Info("scheduler started",
		logx.String("spec", s.spec.String()),
		logx.String("tz", s.Location().String()),
	)
}

// Stop halts the trigger and waits for running ticks until ctx is done.
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
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out; ticks still running", logx.Int("in_flight", int(s.inFlight.Load())))
	}
}

// Apply swaps the config at runtime. The trigger restarts when the spec,
// timezone or enabled flag changed.
func (s *Service) Apply(cfg Config) error {
	cfg = normalize(cfg)
	spec, err := ParseSchedule(cfg.Spec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	s.spec = spec
	s.loc.Store(cfg.Location)
	restart := old.Enabled != cfg.Enabled || old.Spec != cfg.Spec || old.Location.String() != cfg.Location.String()
	var stopping *cron.Cron
	if restart && s.c != nil {
		stopping = s.c
		s.c = nil
	}
	if restart && cfg.Enabled && s.baseCtx != nil {
		s.startLocked()
	}
	s.mu.Unlock()

	if stopping != nil {
		// Running ticks finish on their own; do not wait for them here.
		stopping.Stop()
	}
	if restart {
		s.log.Info("scheduler config applied",
			logx.Bool("enabled", cfg.Enabled),
			logx.String("spec", spec.String()),
			logx.String("tz", cfg.Location.String()),
		)
	}
	return nil
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Enabled:  s.cfg.Enabled,
		Running:  s.c != nil,
		Spec:     s.cfg.Spec,
		Timezone: s.Location().String(),
	}
	if s.c != nil {
		if e := s.c.Entry(s.entry); e.Valid() && !e.Next.IsZero() {
			next := e.Next
			snap.NextRun = &next
		}
	}
	s.mu.Unlock()

	snap.InFlight = int(s.inFlight.Load())
	snap.Ticks = s.ticks.Load()
	if last := s.last.Load(); last != nil {
		cp := *last
		snap.LastTick = &cp
	}
	return snap
}

// RunOnce runs a tick now, independent of the trigger.
func (s *Service) RunOnce(ctx context.Context) (TickReport, error) {
	return s.run(ctx, TriggerManual)
}
