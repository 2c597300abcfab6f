package gates

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	drepo "github.com/wekabeka1996/aurora/internal/domain/repository"
)

// TrapConfig holds thresholds for the microstructure toxicity gate.
type TrapConfig struct {
	ZThreshold float64
	WindowSize int
	MinSamples int
	CoolOff    time.Duration
}

// TrapDetector maintains a rolling window of cancel/add imbalance per symbol
// and hard-denies when the imbalance z-score breaches the threshold while
// order-book and trade-flow signals disagree in sign. A tripped symbol is
// auto-denied for the cooloff duration without recomputation.
type TrapDetector struct {
	cfg   TrapConfig
	clock drepo.Clock

	// mu guards the window map only; each window carries its own lock so
	// symbols score independently.
	mu      sync.RWMutex
	windows map[string]*trapWindow
}

type trapWindow struct {
	mu           sync.Mutex
	samples      []float64
	idx          int
	full         bool
	coolOffUntil time.Time
}

// NewTrapDetector creates the detector. The clock is injectable so cooloff
// expiry is testable without sleeping.
func NewTrapDetector(cfg TrapConfig, clock drepo.Clock) *TrapDetector {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 64
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 16
	}
	if clock == nil {
		clock = drepo.SystemClock{}
	}
	return &TrapDetector{cfg: cfg, clock: clock, windows: make(map[string]*trapWindow)}
}

func (t *TrapDetector) Name() string { return "trap" }

// Observe appends a snapshot's deltas to the symbol window without gate
// semantics; the feed adapter uses it to keep windows warm between calls.
func (t *TrapDetector) Observe(s *models.MarketSnapshot) {
	if s == nil || s.Symbol == "" {
		return
	}
	w := t.window(s.Symbol)
	w.mu.Lock()
	w.push(imbalanceRatio(s))
	w.mu.Unlock()
}

// Evaluate scores the snapshot against the symbol's window.
func (t *TrapDetector) Evaluate(_ context.Context, in *Input) models.GateResult {
	s := in.Snapshot
	now := t.clock.Now()

	w := t.window(s.Symbol)
	w.mu.Lock()
	defer w.mu.Unlock()

	// Cooloff fast path: tripped symbols are denied without recomputation.
	if now.Before(w.coolOffUntil) {
		return models.Deny(t.Name(), models.ReasonTrapCoolOff,
			fmt.Sprintf("cooloff until %s", w.coolOffUntil.Format(time.RFC3339)))
	}

	sample := imbalanceRatio(s)
	w.push(sample)

	n := w.count()
	if n < t.cfg.MinSamples {
		return models.PassWith(t.Name(), models.ReasonTrapWarmingUp,
			fmt.Sprintf("%d/%d samples", n, t.cfg.MinSamples))
	}

	mean, std := w.stats()
	if std == 0 || math.IsNaN(std) || math.IsNaN(mean) {
		// Zero-variance or corrupt window is inconclusive, never a crash.
		return models.PassWith(t.Name(), models.ReasonTrapWarmingUp, "zero variance window")
	}

	z := (sample - mean) / std
	conflict := signConflict(s.OBImbalance, s.TFImbalance)

	if math.Abs(z) > t.cfg.ZThreshold && conflict {
		w.coolOffUntil = now.Add(t.cfg.CoolOff)
		return models.Deny(t.Name(), models.ReasonTrapBlock,
			fmt.Sprintf("z=%.2f threshold=%.2f conflict=true", z, t.cfg.ZThreshold))
	}

	return models.Pass(t.Name())
}

// CoolingOff reports whether a symbol is currently in its trip cooloff.
func (t *TrapDetector) CoolingOff(symbol string) bool {
	t.mu.RLock()
	w, ok := t.windows[symbol]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return t.clock.Now().Before(w.coolOffUntil)
}

func (t *TrapDetector) window(symbol string) *trapWindow {
	t.mu.RLock()
	w, ok := t.windows[symbol]
	t.mu.RUnlock()
	if ok {
		return w
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok = t.windows[symbol]; ok {
		return w
	}
	w = &trapWindow{samples: make([]float64, t.cfg.WindowSize)}
	t.windows[symbol] = w
	return w
}

func (w *trapWindow) push(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	w.samples[w.idx] = v
	w.idx = (w.idx + 1) % len(w.samples)
	if !w.full && w.idx == 0 {
		w.full = true
	}
}

func (w *trapWindow) count() int {
	if w.full {
		return len(w.samples)
	}
	return w.idx
}

func (w *trapWindow) stats() (mean, std float64) {
	n := w.count()
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += w.samples[i]
	}
	mean = sum / float64(n)
	var ss float64
	for i := 0; i < n; i++ {
		d := w.samples[i] - mean
		ss += d * d
	}
	std = math.Sqrt(ss / float64(n))
	return mean, std
}

func imbalanceRatio(s *models.MarketSnapshot) float64 {
	trades := float64(s.TradeCount)
	if trades < 1 {
		trades = 1
	}
	return (s.CancelDelta - s.AddDelta) / trades
}

func signConflict(a, b float64) bool {
	return (a > 0 && b < 0) || (a < 0 && b > 0)
}
