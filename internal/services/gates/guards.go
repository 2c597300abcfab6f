package gates

import (
	"context"
	"fmt"

	"github.com/wekabeka1996/aurora/internal/domain/models"
)

// LatencyGuard rejects intents whose market snapshot is older than the
// decision SLA. Stale data at the front of the pipeline is cheaper to reject
// than to reason about downstream.
type LatencyGuard struct {
	SLAMs float64
}

func NewLatencyGuard(slaMs float64) *LatencyGuard {
	if slaMs <= 0 {
		slaMs = 500
	}
	return &LatencyGuard{SLAMs: slaMs}
}

func (g *LatencyGuard) Name() string { return "latency" }

func (g *LatencyGuard) Evaluate(_ context.Context, in *Input) models.GateResult {
	s := in.Snapshot
	if s.Stale {
		return models.Deny(g.Name(), models.ReasonLatencyGuard, "snapshot marked stale")
	}
	if s.LatencyMs > g.SLAMs {
		return models.Deny(g.Name(), models.ReasonLatencyGuard,
			fmt.Sprintf("snapshot age %.0fms exceeds sla %.0fms", s.LatencyMs, g.SLAMs))
	}
	return models.Pass(g.Name())
}

// SlippageGuard rejects intents whose estimated slippage exceeds the cap.
type SlippageGuard struct {
	MaxBps float64
}

func NewSlippageGuard(maxBps float64) *SlippageGuard {
	if maxBps <= 0 {
		maxBps = 30
	}
	return &SlippageGuard{MaxBps: maxBps}
}

func (g *SlippageGuard) Name() string { return "slippage" }

func (g *SlippageGuard) Evaluate(_ context.Context, in *Input) models.GateResult {
	if in.Snapshot.SlippageBps > g.MaxBps {
		return models.Deny(g.Name(), models.ReasonSlippageGuard,
			fmt.Sprintf("slippage %.1fbps cap %.1fbps", in.Snapshot.SlippageBps, g.MaxBps))
	}
	return models.Pass(g.Name())
}

// SpreadGuard rejects intents when the quoted spread is too wide to price.
type SpreadGuard struct {
	MaxBps float64
}

func NewSpreadGuard(maxBps float64) *SpreadGuard {
	if maxBps <= 0 {
		maxBps = 50
	}
	return &SpreadGuard{MaxBps: maxBps}
}

func (g *SpreadGuard) Name() string { return "spread" }

func (g *SpreadGuard) Evaluate(_ context.Context, in *Input) models.GateResult {
	if in.Snapshot.SpreadBps > g.MaxBps {
		return models.Deny(g.Name(), models.ReasonSpreadGuard,
			fmt.Sprintf("spread %.1fbps cap %.1fbps", in.Snapshot.SpreadBps, g.MaxBps))
	}
	return models.Pass(g.Name())
}
