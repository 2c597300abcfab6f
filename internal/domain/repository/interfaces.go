package repository

import (
	"context"
	"time"

	"github.com/wekabeka1996/aurora/internal/domain/models"
)

// EventSink receives one record per gate evaluation and one per decision.
// Implementations must be append-only and ordered; durability is their
// concern, not the engine's.
type EventSink interface {
	Emit(ctx context.Context, ev *models.Event) error
	EmitBatch(ctx context.Context, evs []*models.Event) error
	Close() error
}

// Journal persists final decisions for audit queries.
type Journal interface {
	Store(ctx context.Context, d *models.Decision) error
	StoreBatch(ctx context.Context, ds []*models.Decision) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Decision, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics is the engine-facing recorder surface.
type Metrics interface {
	RecordDecision(symbol string, allow bool, reason string)
	RecordGateLatency(gate string, d time.Duration)
	RecordPipelineLatency(d time.Duration)
	RecordHealthState(state int)
	RecordRisk(account string, drawdownPct, cvar float64, concurrent int)
	RecordIdempotencyHit()
	RecordError(kind string)
}

// Clock abstracts time for deterministic tests of TTL and cooloff logic.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock implementation used in production wiring.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ModelStore loads and saves calibration model parameters; backed by the
// cache layer so an external trainer can hot-swap models.
type ModelStore interface {
	Load(ctx context.Context) (*models.CalibrationParams, error)
	Save(ctx context.Context, p *models.CalibrationParams) error
}

// InstrumentCatalog supplies exchange precision rules for sizing.
type InstrumentCatalog interface {
	Lookup(symbol string) (models.Instrument, bool)
}

// SnapshotStream is a push feed of market observations used to keep TRAP
// windows warm between decision calls.
type SnapshotStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.MarketSnapshot, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
}
