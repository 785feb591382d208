package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"recurpay/internal/model"
	"recurpay/internal/recurring"
)

// Config is the scheduler's runtime config (already resolved from config.SchedulerConfig).
type Config struct {
	Enabled    bool
	Spec       string
	Location   *time.Location
	RunOnStart bool

	// RunLogRetain bounds the run log (0 = unbounded).
	RunLogRetain int
}

// Clock returns the current instant. Tests inject a fixed one.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type DueLister interface {
	ListDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

type Processor interface {
	Process(ctx context.Context, id uuid.UUID, now time.Time) (recurring.Result, error)
}

// RunLog persists tick summaries. Optional.
type RunLog interface {
	AppendRun(ctx context.Context, r model.Run) error
	PruneRuns(ctx context.Context, keep int) (int64, error)
}

const (
	TriggerCron    = "cron"
	TriggerManual  = "manual"
	TriggerStartup = "startup"
)

// TickReport summarizes one tick.
type TickReport struct {
	Trigger string        `json:"trigger"`
	At      time.Time     `json:"at"`
	Due     int           `json:"due"`
	Applied int           `json:"applied"`
	Skipped int           `json:"skipped"`
	Failed  int           `json:"failed"`
	Took    time.Duration `json:"took"`
	Error   string        `json:"error,omitempty"`

	// Failures lists failed items (definition id and reason).
	Failures []ItemFailure `json:"failures,omitempty"`
}

type ItemFailure struct {
	DefinitionID uuid.UUID `json:"definition_id"`
	Reason       string    `json:"reason"`
}

// Snapshot is the scheduler's state for operators.
type Snapshot struct {
	Enabled  bool        `json:"enabled"`
	Running  bool        `json:"running"`
	Spec     string      `json:"spec"`
	Timezone string      `json:"timezone"`
	NextRun  *time.Time  `json:"next_run,omitempty"`
	InFlight int         `json:"in_flight"`
	Ticks    uint64      `json:"ticks"`
	LastTick *TickReport `json:"last_tick,omitempty"`
}
