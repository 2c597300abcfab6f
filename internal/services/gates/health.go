package gates

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	drepo "github.com/wekabeka1996/aurora/internal/domain/repository"
	"github.com/wekabeka1996/aurora/internal/service/latency"
)

// HealthState is the latency-escalation state of the guard.
type HealthState int

const (
	HealthNormal HealthState = iota
	HealthWarn
	HealthCoolOff
	HealthHalt
)

func (s HealthState) String() string {
	switch s {
	case HealthWarn:
		return "WARN"
	case HealthCoolOff:
		return "COOL_OFF"
	case HealthHalt:
		return "HALT"
	default:
		return "NORMAL"
	}
}

// HealthConfig holds the escalation thresholds.
type HealthConfig struct {
	WarnP95Ms      float64
	HaltP95Ms      float64
	WarnPersist    time.Duration
	CoolOffDur     time.Duration
	RecoveryWindow time.Duration
	WindowSize     int
}

// HealthSnapshot is the operator-facing view of the guard.
type HealthSnapshot struct {
	State        string    `json:"state"`
	P95Ms        float64   `json:"p95_ms"`
	Samples      int       `json:"samples"`
	Armed        bool      `json:"armed"`
	CoolOffUntil time.Time `json:"cooloff_until,omitempty"`
}

// HealthGuard escalates NORMAL→WARN→COOL_OFF→HALT on sustained p95 decision
// latency breaches and de-escalates to NORMAL after sustained recovery.
// HALT is sticky: only an operator reset clears it. Disarming makes the
// gate pass unconditionally for controlled testing.
type HealthGuard struct {
	cfg   HealthConfig
	clock drepo.Clock
	hist  *latency.Histogram

	mu            sync.Mutex
	state         HealthState
	armed         bool
	warnSince     time.Time
	recoverySince time.Time
	coolOffUntil  time.Time

	onTransition func(from, to HealthState)
}

// NewHealthGuard creates the guard armed and in NORMAL.
func NewHealthGuard(cfg HealthConfig, clock drepo.Clock) *HealthGuard {
	if clock == nil {
		clock = drepo.SystemClock{}
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 512
	}
	return &HealthGuard{
		cfg:   cfg,
		clock: clock,
		hist:  latency.NewHistogram(cfg.WindowSize),
		armed: true,
	}
}

func (h *HealthGuard) Name() string { return "health" }

// OnTransition registers a hook invoked (under the guard lock) on every
// state change; used to emit HEALTH_ESCALATION events.
func (h *HealthGuard) OnTransition(fn func(from, to HealthState)) { h.onTransition = fn }

// Record feeds one measured decision latency into the rolling window.
func (h *HealthGuard) Record(d time.Duration) { h.hist.Record(d) }

// Check runs the escalation machine against a p95 observation and returns
// the gate verdict. COOL_OFF and HALT deny.
func (h *HealthGuard) Check(p95Ms float64) models.GateResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.armed {
		return models.PassWith(h.Name(), models.ReasonOK, "disarmed")
	}

	now := h.clock.Now()
	h.step(p95Ms, now)

	switch h.state {
	case HealthCoolOff:
		return models.Deny(h.Name(), models.ReasonHealthCoolOff,
			fmt.Sprintf("p95=%.1fms cooloff until %s", p95Ms, h.coolOffUntil.Format(time.RFC3339)))
	case HealthHalt:
		return models.Deny(h.Name(), models.ReasonHealthHalt,
			fmt.Sprintf("p95=%.1fms halted, operator reset required", p95Ms))
	default:
		return models.Pass(h.Name())
	}
}

// Evaluate implements Gate using the internally tracked p95.
func (h *HealthGuard) Evaluate(_ context.Context, _ *Input) models.GateResult {
	return h.Check(h.hist.P95())
}

func (h *HealthGuard) step(p95Ms float64, now time.Time) {
	// Sustained recovery returns WARN/COOL_OFF to NORMAL. HALT is excluded:
	// it requires an explicit operator reset.
	if p95Ms < h.cfg.WarnP95Ms {
		if h.recoverySince.IsZero() {
			h.recoverySince = now
		}
		if h.state != HealthNormal && h.state != HealthHalt &&
			now.Sub(h.recoverySince) >= h.cfg.RecoveryWindow &&
			(h.state != HealthCoolOff || now.After(h.coolOffUntil)) {
			h.transition(HealthNormal)
			h.warnSince = time.Time{}
		}
		if h.state == HealthNormal {
			h.warnSince = time.Time{}
		}
		return
	}
	h.recoverySince = time.Time{}

	switch h.state {
	case HealthNormal:
		h.transition(HealthWarn)
		h.warnSince = now
	case HealthWarn:
		if p95Ms >= h.cfg.HaltP95Ms || now.Sub(h.warnSince) >= h.cfg.WarnPersist {
			h.transition(HealthCoolOff)
			h.coolOffUntil = now.Add(h.cfg.CoolOffDur)
		}
	case HealthCoolOff:
		if now.After(h.coolOffUntil) {
			h.transition(HealthHalt)
		}
	case HealthHalt:
		// sticky until reset
	}
}

func (h *HealthGuard) transition(to HealthState) {
	from := h.state
	if from == to {
		return
	}
	h.state = to
	if h.onTransition != nil {
		h.onTransition(from, to)
	}
}

// CoolOff is the operator command forcing the guard into COOL_OFF.
func (h *HealthGuard) CoolOff(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transition(HealthCoolOff)
	h.coolOffUntil = h.clock.Now().Add(d)
	h.recoverySince = time.Time{}
}

// Reset returns the guard to NORMAL and clears the latency window.
func (h *HealthGuard) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transition(HealthNormal)
	h.warnSince = time.Time{}
	h.recoverySince = time.Time{}
	h.coolOffUntil = time.Time{}
	h.hist.Reset()
}

// Arm re-enables the gate.
func (h *HealthGuard) Arm() {
	h.mu.Lock()
	h.armed = true
	h.mu.Unlock()
}

// Disarm makes the gate pass unconditionally.
func (h *HealthGuard) Disarm() {
	h.mu.Lock()
	h.armed = false
	h.mu.Unlock()
}

// State returns the current escalation state.
func (h *HealthGuard) State() HealthState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Snapshot returns the operator-facing view.
func (h *HealthGuard) Snapshot() HealthSnapshot {
	h.mu.Lock()
	state, armed, until := h.state, h.armed, h.coolOffUntil
	h.mu.Unlock()
	return HealthSnapshot{
		State:        state.String(),
		P95Ms:        h.hist.P95(),
		Samples:      h.hist.Count(),
		Armed:        armed,
		CoolOffUntil: until,
	}
}
