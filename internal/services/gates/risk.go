package gates

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	drepo "github.com/wekabeka1996/aurora/internal/domain/repository"
)

// RiskLimits are the live-mutable sizing and exposure caps. Writers
// serialize through the manager; readers always see a fully applied set.
type RiskLimits struct {
	KellyScaler   float64 `json:"kelly_scaler"`
	ClipMin       float64 `json:"clip_min"`
	ClipMax       float64 `json:"clip_max"`
	MinNotional   float64 `json:"min_notional"`
	MaxNotional   float64 `json:"max_notional"`
	LeverageMax   float64 `json:"leverage_max"`
	DDDayPct      float64 `json:"dd_day_pct"`
	CVaRCap       float64 `json:"cvar_cap"`
	MaxConcurrent int     `json:"max_concurrent"`
	SizeScale     float64 `json:"size_scale"`
}

// RiskSnapshot is the operator-facing per-account risk view.
type RiskSnapshot struct {
	Account     string  `json:"account"`
	Equity      float64 `json:"equity"`
	DrawdownPct float64 `json:"drawdown_pct"`
	CVaR        float64 `json:"cvar"`
	Concurrent  int     `json:"concurrent"`
}

type accountRisk struct {
	equity      float64
	dayStart    float64
	drawdownPct float64
	cvar        float64
	concurrent  int
}

// cvarAlpha is the EWMA smoothing factor for the tail-loss estimate.
const cvarAlpha = 0.1

// RiskManager sizes intents with a scaled, clipped Kelly fraction and
// enforces the hard caps: daily drawdown, CVaR, concurrency. Soft breaches
// (quantity below exchange minimum, clamped notional) scale or zero the
// quantity instead of rejecting the caller outright.
type RiskManager struct {
	mu       sync.RWMutex
	limits   RiskLimits
	accounts map[string]*accountRisk

	catalog    drepo.InstrumentCatalog
	baseEquity float64
}

// NewRiskManager creates the manager. baseEquity seeds accounts that have
// not reported any outcome yet.
func NewRiskManager(limits RiskLimits, catalog drepo.InstrumentCatalog, baseEquity float64) *RiskManager {
	if limits.SizeScale <= 0 {
		limits.SizeScale = 1
	}
	if limits.ClipMax <= 0 {
		limits.ClipMax = 0.25
	}
	if baseEquity <= 0 {
		baseEquity = 10_000
	}
	return &RiskManager{
		limits:     limits,
		accounts:   make(map[string]*accountRisk),
		catalog:    catalog,
		baseEquity: baseEquity,
	}
}

func (r *RiskManager) Name() string { return "risk" }

// KellyFraction returns the scaled, clipped sizing fraction for a win
// probability and reward/loss ratio in basis points.
func (r *RiskManager) KellyFraction(p, rewardBps, lossBps float64) float64 {
	lim := r.Limits()
	if lossBps <= 0 || rewardBps <= 0 || p <= 0 || p >= 1 {
		return lim.ClipMin
	}
	b := rewardBps / lossBps
	f := (p*b - (1 - p)) / b
	f *= lim.KellyScaler
	if f < lim.ClipMin {
		f = lim.ClipMin
	}
	if f > lim.ClipMax {
		f = lim.ClipMax
	}
	return f
}

// Evaluate enforces the hard caps, then resolves the maximum quantity from
// the Kelly notional and instrument precision rules. The resolved quantity
// is written to in.MaxQty for the decision.
func (r *RiskManager) Evaluate(_ context.Context, in *Input) models.GateResult {
	lim := r.Limits()
	acct := r.account(in.Intent.Account)

	r.mu.RLock()
	dd, cvar, concurrent, equity := acct.drawdownPct, acct.cvar, acct.concurrent, acct.equity
	r.mu.RUnlock()

	// The caller may report today's PnL on the snapshot; a deeper reported
	// loss overrides the outcome-derived drawdown.
	if callerDD := -in.Snapshot.PnLTodayPct; callerDD > dd {
		dd = callerDD
	}

	// Hard caps first: any breach is a hard deny with a specific reason.
	if lim.DDDayPct > 0 && dd >= lim.DDDayPct {
		return models.Deny(r.Name(), models.ReasonRiskDrawdown,
			fmt.Sprintf("drawdown %.2f%% cap %.2f%%", dd, lim.DDDayPct))
	}
	if lim.CVaRCap > 0 && cvar >= lim.CVaRCap {
		return models.Deny(r.Name(), models.ReasonRiskCVaR,
			fmt.Sprintf("cvar %.2f cap %.2f", cvar, lim.CVaRCap))
	}
	if lim.MaxConcurrent > 0 && concurrent >= lim.MaxConcurrent {
		return models.Deny(r.Name(), models.ReasonRiskConcurrent,
			fmt.Sprintf("concurrent %d cap %d", concurrent, lim.MaxConcurrent))
	}

	s := in.Snapshot
	f := r.KellyFraction(in.P, s.RewardBps, s.LossBps)
	notional := f * equity * lim.SizeScale

	// Leverage and notional ceilings clamp rather than deny.
	if lim.LeverageMax > 0 && notional > equity*lim.LeverageMax {
		notional = equity * lim.LeverageMax
	}
	if lim.MaxNotional > 0 && notional > lim.MaxNotional {
		notional = lim.MaxNotional
	}

	price := in.Intent.Price
	if price <= 0 || math.IsNaN(price) {
		return models.Deny(r.Name(), models.ReasonRiskQtyMin, "no reference price")
	}

	qty := notional / price
	inst, ok := r.lookup(in.Intent.Symbol)
	if ok {
		if inst.QtyStep > 0 {
			qty = math.Floor(qty/inst.QtyStep) * inst.QtyStep
		}
		minNotional := math.Max(lim.MinNotional, inst.MinNotal)
		if qty < inst.MinQty || qty*price < minNotional {
			in.MaxQty = 0
			return models.Deny(r.Name(), models.ReasonRiskQtyMin,
				fmt.Sprintf("qty %.8f below exchange minimum", qty))
		}
	} else if lim.MinNotional > 0 && qty*price < lim.MinNotional {
		in.MaxQty = 0
		return models.Deny(r.Name(), models.ReasonRiskQtyMin,
			fmt.Sprintf("notional %.2f below minimum %.2f", qty*price, lim.MinNotional))
	}

	in.MaxQty = qty
	if in.Intent.Qty > 0 && qty < in.Intent.Qty {
		scale := qty / in.Intent.Qty
		in.Scale *= scale
		return models.ScaleDown(r.Name(), scale,
			fmt.Sprintf("sized %.8f of requested %.8f (kelly f=%.4f)", qty, in.Intent.Qty, f))
	}
	return models.Pass(r.Name())
}

// ApplyOutcome folds a post-trade result into the account's risk state.
func (r *RiskManager) ApplyOutcome(o *models.Outcome) {
	if o == nil || o.Account == "" {
		return
	}
	acct := r.account(o.Account)

	r.mu.Lock()
	defer r.mu.Unlock()

	pnl := o.Notional * o.PnLBps / 1e4
	acct.equity += pnl
	if acct.dayStart > 0 && acct.equity < acct.dayStart {
		acct.drawdownPct = (acct.dayStart - acct.equity) / acct.dayStart * 100
	} else {
		acct.drawdownPct = 0
	}
	if o.PnLBps < 0 {
		loss := -o.PnLBps
		acct.cvar = (1-cvarAlpha)*acct.cvar + cvarAlpha*loss
	}
	if o.Closed {
		if acct.concurrent > 0 {
			acct.concurrent--
		}
	} else if !o.Rejected {
		acct.concurrent++
	}
}

// ResetDay re-bases the drawdown anchor, typically at session rollover.
func (r *RiskManager) ResetDay(account string) {
	acct := r.account(account)
	r.mu.Lock()
	acct.dayStart = acct.equity
	acct.drawdownPct = 0
	r.mu.Unlock()
}

// Limits returns the last-committed limit set.
func (r *RiskManager) Limits() RiskLimits {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limits
}

// UpdateLimits applies a partial operator update atomically.
func (r *RiskManager) UpdateLimits(u *models.RiskLimitsUpdate) RiskLimits {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.DDDayPct != nil {
		r.limits.DDDayPct = *u.DDDayPct
	}
	if u.CVaRCap != nil {
		r.limits.CVaRCap = *u.CVaRCap
	}
	if u.MaxConcurrent != nil {
		r.limits.MaxConcurrent = *u.MaxConcurrent
	}
	if u.LeverageMax != nil {
		r.limits.LeverageMax = *u.LeverageMax
	}
	if u.MinNotional != nil {
		r.limits.MinNotional = *u.MinNotional
	}
	if u.MaxNotional != nil {
		r.limits.MaxNotional = *u.MaxNotional
	}
	if u.SizeScale != nil {
		r.limits.SizeScale = *u.SizeScale
	}
	return r.limits
}

// Snapshot returns the operator view of one account.
func (r *RiskManager) Snapshot(account string) RiskSnapshot {
	acct := r.account(account)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RiskSnapshot{
		Account:     account,
		Equity:      acct.equity,
		DrawdownPct: acct.drawdownPct,
		CVaR:        acct.cvar,
		Concurrent:  acct.concurrent,
	}
}

func (r *RiskManager) account(name string) *accountRisk {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[name]
	if !ok {
		acct = &accountRisk{equity: r.baseEquity, dayStart: r.baseEquity}
		r.accounts[name] = acct
	}
	return acct
}

func (r *RiskManager) lookup(symbol string) (models.Instrument, bool) {
	if r.catalog == nil {
		return models.Instrument{}, false
	}
	return r.catalog.Lookup(symbol)
}
