package admin

import (
	"context"
	"time"

	"github.com/google/uuid"

	"recurpay/internal/model"
	"recurpay/internal/recurring"
	"recurpay/internal/scheduler"
)

// Config is the resolved admin config (tokens and durations already parsed).
type Config struct {
	Enabled      bool
	Addr         string
	Token        string
	Pprof        bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Definitions interface {
	Create(ctx context.Context, in recurring.NewDefinition) (model.Definition, error)
	Update(ctx context.Context, id uuid.UUID, p recurring.Patch) (model.Definition, error)
	Duplicate(ctx context.Context, id uuid.UUID) (model.Definition, error)
	Get(ctx context.Context, id uuid.UUID) (model.Definition, error)
	List(ctx context.Context, f recurring.Filter) ([]model.Definition, error)
	Occurrences(ctx context.Context, id uuid.UUID, limit int) ([]model.Occurrence, error)
}

type Scheduler interface {
	RunOnce(ctx context.Context) (scheduler.TickReport, error)
	Snapshot() scheduler.Snapshot
}

type Store interface {
	Ping(ctx context.Context) error
	GetAccount(ctx context.Context, id uuid.UUID) (model.Account, error)
	InsertAccount(ctx context.Context, a model.Account) error
	InsertCategory(ctx context.Context, id uuid.UUID, name string) error
	InsertSubcategory(ctx context.Context, id uuid.UUID, categoryID uuid.NullUUID, name string) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
}

// Deps are the services the API exposes. All are required.
type Deps struct {
	Definitions Definitions
	Scheduler   Scheduler
	Store       Store
}
