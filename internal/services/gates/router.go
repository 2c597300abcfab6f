package gates

import (
	"context"
	"fmt"

	"github.com/wekabeka1996/aurora/internal/domain/models"
)

// RouterConfig holds the execution routing thresholds.
type RouterConfig struct {
	MinPFill        float64
	PTakerThreshold float64
}

// Router selects the execution path from the net edge of each route. Maker
// rests in the book so it pays the maker fee and no taker slippage; taker
// crosses the spread and pays both. Route selection is a pure function of
// the two nets and the maker fill probability.
type Router struct {
	cfg RouterConfig
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.MinPFill <= 0 {
		cfg.MinPFill = 0.5
	}
	if cfg.PTakerThreshold <= 0 {
		cfg.PTakerThreshold = 0.25
	}
	return &Router{cfg: cfg}
}

func (r *Router) Name() string { return "router" }

// DecideRoute applies the routing precedence:
//  1. taker when its net is at least the maker net and positive
//  2. maker when its net is strictly better and the fill probability clears
//     the floor
//  3. taker fallback when the maker fill probability is below the taker
//     threshold and the taker net is still positive
//  4. otherwise no attractive route
func DecideRoute(cfg RouterConfig, makerNetBps, takerNetBps, pFill float64) (models.RouteDecision, bool) {
	d := models.RouteDecision{
		MakerNetBps: makerNetBps,
		TakerNetBps: takerNetBps,
		PFill:       pFill,
	}
	switch {
	case takerNetBps >= makerNetBps && takerNetBps > 0:
		d.Route = models.RouteTaker
		d.Justification = fmt.Sprintf("taker_net=%.2f >= maker_net=%.2f", takerNetBps, makerNetBps)
	case makerNetBps > takerNetBps && makerNetBps > 0 && pFill >= cfg.MinPFill:
		d.Route = models.RouteMaker
		d.Justification = fmt.Sprintf("maker_net=%.2f > taker_net=%.2f p_fill=%.2f", makerNetBps, takerNetBps, pFill)
	case pFill < cfg.PTakerThreshold && takerNetBps > 0:
		d.Route = models.RouteTaker
		d.Justification = fmt.Sprintf("p_fill=%.2f below taker threshold %.2f", pFill, cfg.PTakerThreshold)
	default:
		return d, false
	}
	return d, true
}

// Evaluate computes both route nets from the calibrated probability and the
// snapshot economics, then applies the precedence. No viable route denies.
func (r *Router) Evaluate(_ context.Context, in *Input) models.GateResult {
	s := in.Snapshot

	makerNet := ExpectedReturnBps(in.P, s.RewardBps, s.LossBps, s.MakerFeeBps, 0)
	takerNet := ExpectedReturnBps(in.P, s.RewardBps, s.LossBps, s.FeeBps, s.SlippageBps)

	decision, ok := DecideRoute(r.cfg, makerNet, takerNet, s.PFill)
	if !ok {
		// Name the dominant negative edge: the deeper of the two nets is
		// what made every route unattractive.
		worst, worstNet := models.RouteMaker, makerNet
		if takerNet < makerNet {
			worst, worstNet = models.RouteTaker, takerNet
		}
		return models.Deny(r.Name(), models.ReasonNoRoute,
			fmt.Sprintf("%s_net=%.2f dominates (maker_net=%.2f taker_net=%.2f p_fill=%.2f)",
				worst, worstNet, makerNet, takerNet, s.PFill))
	}
	in.Route = &decision
	return models.PassWith(r.Name(), models.ReasonOK, decision.Route)
}
