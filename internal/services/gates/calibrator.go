package gates

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/wekabeka1996/aurora/internal/domain/models"
)

// CalibratorConfig holds the expected-return gate thresholds.
type CalibratorConfig struct {
	PiMinBps float64
	Epsilon  float64
}

// probabilityModel maps a raw signal score to a win probability. ok=false
// means the model cannot answer for this input and the caller should fall
// back to the next model.
type probabilityModel interface {
	predict(score float64) (p float64, ok bool)
}

// isotonicModel evaluates a monotonic piecewise-linear fit over its knots.
// Inputs outside the fitted domain are rejected so the logistic fallback
// handles extrapolation.
type isotonicModel struct {
	xs []float64
	ys []float64
}

func (m *isotonicModel) predict(score float64) (float64, bool) {
	if len(m.xs) < 2 || score < m.xs[0] || score > m.xs[len(m.xs)-1] {
		return 0, false
	}
	i := sort.SearchFloat64s(m.xs, score)
	if i < len(m.xs) && m.xs[i] == score {
		return m.ys[i], true
	}
	lo, hi := i-1, i
	span := m.xs[hi] - m.xs[lo]
	if span == 0 {
		return m.ys[lo], true
	}
	w := (score - m.xs[lo]) / span
	return m.ys[lo]*(1-w) + m.ys[hi]*w, true
}

// plattModel is the logistic fallback: p = 1 / (1 + exp(a*score + b)).
type plattModel struct {
	a, b float64
}

func (m plattModel) predict(score float64) (float64, bool) {
	return 1.0 / (1.0 + math.Exp(m.a*score+m.b)), true
}

// Calibrator converts signal scores into probabilities and gates intents on
// the expected net return. The model pair is selected at load time and can
// be hot-swapped by the calibration refresher.
type Calibrator struct {
	cfg CalibratorConfig

	mu    sync.RWMutex
	iso   *isotonicModel
	platt plattModel
}

// NewCalibrator builds the calibrator from stored parameters. A missing or
// degenerate isotonic fit leaves only the Platt fallback active.
func NewCalibrator(cfg CalibratorConfig, params *models.CalibrationParams) *Calibrator {
	if cfg.Epsilon <= 0 || cfg.Epsilon >= 0.5 {
		cfg.Epsilon = 1e-6
	}
	c := &Calibrator{cfg: cfg}
	c.Swap(params)
	return c
}

func (c *Calibrator) Name() string { return "expected_return" }

// Swap atomically replaces the active model parameters.
func (c *Calibrator) Swap(params *models.CalibrationParams) {
	var iso *isotonicModel
	platt := plattModel{a: -1, b: 0}
	if params != nil {
		if params.HasIsotonic() {
			iso = &isotonicModel{xs: params.IsotonicX, ys: params.IsotonicY}
		}
		if params.PlattA != 0 || params.PlattB != 0 {
			platt = plattModel{a: params.PlattA, b: params.PlattB}
		}
	}
	c.mu.Lock()
	c.iso = iso
	c.platt = platt
	c.mu.Unlock()
}

// PredictP maps a score to a probability in (epsilon, 1-epsilon).
func (c *Calibrator) PredictP(score float64) float64 {
	c.mu.RLock()
	iso, platt := c.iso, c.platt
	c.mu.RUnlock()

	var p float64
	if iso != nil {
		if v, ok := iso.predict(score); ok {
			p = v
		} else {
			p, _ = platt.predict(score)
		}
	} else {
		p, _ = platt.predict(score)
	}
	return clampProb(p, c.cfg.Epsilon)
}

// ExpectedReturnBps is the expected net edge in basis points.
func ExpectedReturnBps(p, rewardBps, lossBps, feeBps, slippageBps float64) float64 {
	return p*rewardBps - (1-p)*lossBps - feeBps - slippageBps
}

// Evaluate fills in.P and in.EPiBps and denies when the expected return is
// at or below the configured floor. Malformed inputs degrade to a deny.
func (c *Calibrator) Evaluate(_ context.Context, in *Input) models.GateResult {
	s := in.Snapshot
	if !isFinite(s.Score) || !isFinite(s.RewardBps) || !isFinite(s.LossBps) ||
		!isFinite(s.FeeBps) || !isFinite(s.SlippageBps) {
		return models.Deny(c.Name(), models.ReasonExpectedReturn, "non-finite snapshot field")
	}

	p := c.PredictP(s.Score)
	ePi := ExpectedReturnBps(p, s.RewardBps, s.LossBps, s.FeeBps, s.SlippageBps)
	in.P = p
	in.EPiBps = ePi

	if ePi <= c.cfg.PiMinBps {
		return models.Deny(c.Name(), models.ReasonExpectedReturn,
			fmt.Sprintf("e_pi=%.2fbps floor=%.2fbps p=%.4f", ePi, c.cfg.PiMinBps, p))
	}
	return models.Pass(c.Name())
}

func clampProb(p, eps float64) float64 {
	if math.IsNaN(p) {
		return eps
	}
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
