package gates

import (
	"context"
	"time"

	"github.com/wekabeka1996/aurora/internal/domain/models"
)

// Input is the per-call evaluation context shared by all gates. The intent
// and snapshot are owned by the pipeline call and must not be retained.
type Input struct {
	Intent   *models.TradeIntent
	Snapshot *models.MarketSnapshot
	Started  time.Time

	// EPiBps and P are filled by the calibrator gate and consumed by the
	// sizing and routing stages downstream of it.
	EPiBps float64
	P      float64

	// Scale accumulates soft quantity reductions across gates.
	Scale float64

	// MaxQty is the resolved maximum quantity, written by the sizing gate.
	MaxQty float64

	// Route is filled by the router gate when an execution path exists.
	Route *models.RouteDecision
}

// Gate is one pipeline stage: inspect the intent/snapshot, return
// allow/deny/scale with a reason. Evaluations must not block on I/O.
type Gate interface {
	Name() string
	Evaluate(ctx context.Context, in *Input) models.GateResult
}
