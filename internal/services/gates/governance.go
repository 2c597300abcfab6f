package gates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	drepo "github.com/wekabeka1996/aurora/internal/domain/repository"
)

var errOrderFailed = errors.New("order placement failed")

// GovernanceConfig holds the terminal-authority limits and the kill-switch
// breaker tuning.
type GovernanceConfig struct {
	SpreadBpsLimit   float64
	LatencyMsLimit   float64
	VolatilityLimit  float64
	MaxOpenPerSymbol int
	MaxSnapshotAge   time.Duration

	ConsecutiveFailures uint32
	FailureRate         float64
	MinRequests         uint32
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
}

// Governance is the terminal authority. It runs after every other gate, can
// turn an allow into a deny, and never turns a hard deny into an allow. Its
// kill-switch is a circuit breaker fed by order placement results: a failure
// storm opens it and every intent is denied until an operator resets it. The
// trip is latched separately from the breaker because gobreaker half-opens
// itself after its timeout; the latch only clears on ResetKillSwitch.
type Governance struct {
	cfg   GovernanceConfig
	clock drepo.Clock

	mu        sync.Mutex
	breaker   *gobreaker.CircuitBreaker
	tripped   bool
	positions map[string]int

	onTrip func(from, to gobreaker.State)
}

func NewGovernance(cfg GovernanceConfig, clock drepo.Clock) *Governance {
	if clock == nil {
		clock = drepo.SystemClock{}
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.FailureRate <= 0 {
		cfg.FailureRate = 0.5
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 10
	}
	if cfg.BreakerInterval <= 0 {
		cfg.BreakerInterval = time.Minute
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = time.Minute
	}
	if cfg.MaxSnapshotAge <= 0 {
		cfg.MaxSnapshotAge = 5 * time.Second
	}
	g := &Governance{cfg: cfg, clock: clock, positions: make(map[string]int)}
	g.breaker = gobreaker.NewCircuitBreaker(g.settings())
	return g
}

func (g *Governance) settings() gobreaker.Settings {
	st := gobreaker.Settings{
		Name:     "kill-switch",
		Interval: g.cfg.BreakerInterval,
		Timeout:  g.cfg.BreakerTimeout,
	}
	st.ReadyToTrip = func(c gobreaker.Counts) bool {
		if c.ConsecutiveFailures >= g.cfg.ConsecutiveFailures {
			return true
		}
		if c.Requests < g.cfg.MinRequests {
			return false
		}
		return float64(c.TotalFailures)/float64(c.Requests) >= g.cfg.FailureRate
	}
	st.OnStateChange = func(_ string, from, to gobreaker.State) {
		if to == gobreaker.StateOpen {
			g.mu.Lock()
			g.tripped = true
			g.mu.Unlock()
		}
		if g.onTrip != nil {
			g.onTrip(from, to)
		}
	}
	return st
}

func (g *Governance) Name() string { return "governance" }

// OnStateChange registers a hook for breaker transitions, used to emit
// KILL_SWITCH_TRIP events.
func (g *Governance) OnStateChange(fn func(from, to gobreaker.State)) { g.onTrip = fn }

// Evaluate applies the terminal checks. Any deny here overrides an upstream
// allow; the pipeline appends the reason after the upstream ones.
func (g *Governance) Evaluate(_ context.Context, in *Input) models.GateResult {
	if g.KillSwitchOpen() {
		return models.Deny(g.Name(), models.ReasonKillSwitch, "order failure breaker open")
	}

	s := in.Snapshot
	now := g.clock.Now()
	if s.Stale || s.Timestamp.IsZero() || now.Sub(s.Timestamp) > g.cfg.MaxSnapshotAge {
		return models.Deny(g.Name(), models.ReasonDataQuality,
			fmt.Sprintf("snapshot age %s exceeds %s", now.Sub(s.Timestamp), g.cfg.MaxSnapshotAge))
	}
	if g.cfg.SpreadBpsLimit > 0 && s.SpreadBps > g.cfg.SpreadBpsLimit {
		return models.Deny(g.Name(), models.ReasonGovOverride,
			fmt.Sprintf("spread %.1fbps over governance limit %.1fbps", s.SpreadBps, g.cfg.SpreadBpsLimit))
	}
	if g.cfg.LatencyMsLimit > 0 && s.LatencyMs > g.cfg.LatencyMsLimit {
		return models.Deny(g.Name(), models.ReasonGovOverride,
			fmt.Sprintf("latency %.0fms over governance limit %.0fms", s.LatencyMs, g.cfg.LatencyMsLimit))
	}
	if g.cfg.VolatilityLimit > 0 && s.VolatilityPct > g.cfg.VolatilityLimit {
		return models.Deny(g.Name(), models.ReasonGovOverride,
			fmt.Sprintf("volatility %.2f%% over governance limit %.2f%%", s.VolatilityPct, g.cfg.VolatilityLimit))
	}
	if g.cfg.MaxOpenPerSymbol > 0 {
		g.mu.Lock()
		open := g.positions[in.Intent.Symbol]
		g.mu.Unlock()
		if open >= g.cfg.MaxOpenPerSymbol {
			return models.Deny(g.Name(), models.ReasonPositionLimit,
				fmt.Sprintf("%d open positions on %s, limit %d", open, in.Intent.Symbol, g.cfg.MaxOpenPerSymbol))
		}
	}
	return models.Pass(g.Name())
}

// RecordOrderSuccess feeds a successful placement into the breaker and
// tracks the open position.
func (g *Governance) RecordOrderSuccess(symbol string) {
	g.mu.Lock()
	g.positions[symbol]++
	br := g.breaker
	g.mu.Unlock()
	_, _ = br.Execute(func() (any, error) { return nil, nil })
}

// RecordOrderFailure feeds a failed placement into the breaker.
func (g *Governance) RecordOrderFailure() {
	g.mu.Lock()
	br := g.breaker
	g.mu.Unlock()
	_, _ = br.Execute(func() (any, error) { return nil, errOrderFailed })
}

// RecordPositionClosed releases one open position slot for the symbol.
func (g *Governance) RecordPositionClosed(symbol string) {
	g.mu.Lock()
	if g.positions[symbol] > 0 {
		g.positions[symbol]--
	}
	g.mu.Unlock()
}

// KillSwitchOpen reports whether a trip currently blocks all intents. It
// reads the latch, not the live breaker state, so a trip stays in force
// across the breaker's own half-open recovery.
func (g *Governance) KillSwitchOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tripped
}

// ResetKillSwitch is the operator override: the latch clears and the breaker
// is rebuilt with fresh counts. gobreaker has no reset, so replacement is
// the reset.
func (g *Governance) ResetKillSwitch() {
	g.mu.Lock()
	g.tripped = false
	g.breaker = gobreaker.NewCircuitBreaker(g.settings())
	g.mu.Unlock()
}

// OpenPositions returns the tracked open position count for a symbol.
func (g *Governance) OpenPositions(symbol string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.positions[symbol]
}
