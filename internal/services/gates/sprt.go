package gates

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/wekabeka1996/aurora/internal/domain/models"
)

// Verdict is the current state of a sequential test.
type Verdict int

const (
	VerdictContinue Verdict = iota
	VerdictAccept
	VerdictReject
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictReject:
		return "reject"
	default:
		return "continue"
	}
}

// SPRTConfig parameterizes the sequential probability ratio test. P0/P1 are
// the win probabilities under the null (not profitable) and alternative
// hypotheses; Alpha/Beta the tolerated error rates.
type SPRTConfig struct {
	Alpha    float64
	Beta     float64
	P0       float64
	P1       float64
	Blocking bool
}

// SPRT accumulates a log-likelihood ratio per symbol/strategy key and maps
// it onto Wald's accept/reject boundaries. Observations arrive from the
// outcome feed; the gate only reads the latched verdict.
type SPRT struct {
	cfg    SPRTConfig
	upperA float64
	lowerB float64

	mu     sync.Mutex
	states map[string]*sprtState
}

type sprtState struct {
	llr     float64
	n       int
	verdict Verdict
}

// NewSPRT derives the decision boundaries from the configured error rates.
func NewSPRT(cfg SPRTConfig) *SPRT {
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = 0.05
	}
	if cfg.Beta <= 0 || cfg.Beta >= 1 {
		cfg.Beta = 0.10
	}
	if cfg.P0 <= 0 || cfg.P0 >= 1 {
		cfg.P0 = 0.5
	}
	if cfg.P1 <= cfg.P0 || cfg.P1 >= 1 {
		cfg.P1 = math.Min(cfg.P0+0.1, 0.99)
	}
	return &SPRT{
		cfg:    cfg,
		upperA: math.Log((1 - cfg.Beta) / cfg.Alpha),
		lowerB: math.Log(cfg.Beta / (1 - cfg.Alpha)),
		states: make(map[string]*sprtState),
	}
}

func (s *SPRT) Name() string { return "sprt" }

// Key builds the per-symbol/strategy accumulator key.
func Key(symbol, account string) string { return symbol + ":" + account }

// AddObservation folds one binary outcome into the key's LLR. The verdict
// latches once a boundary is crossed until an operator reset.
func (s *SPRT) AddObservation(key string, success bool) Verdict {
	inc := math.Log((1 - s.cfg.P1) / (1 - s.cfg.P0))
	if success {
		inc = math.Log(s.cfg.P1 / s.cfg.P0)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[key]
	if !ok {
		st = &sprtState{}
		s.states[key] = st
	}
	if st.verdict != VerdictContinue {
		return st.verdict
	}
	st.llr += inc
	st.n++
	switch {
	case st.llr >= s.upperA:
		st.verdict = VerdictAccept
	case st.llr <= s.lowerB:
		st.verdict = VerdictReject
	}
	return st.verdict
}

// Verdict returns the latched verdict for a key.
func (s *SPRT) Verdict(key string) Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[key]; ok {
		return st.verdict
	}
	return VerdictContinue
}

// LLR returns the accumulated log-likelihood ratio and sample count.
func (s *SPRT) LLR(key string) (float64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[key]; ok {
		return st.llr, st.n
	}
	return 0, 0
}

// Reset clears one key's accumulator; empty key clears all of them.
func (s *SPRT) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == "" {
		s.states = make(map[string]*sprtState)
		return
	}
	delete(s.states, key)
}

// Evaluate passes on ACCEPT and CONTINUE; a REJECT verdict hard-denies only
// when the gate is configured blocking, otherwise it is advisory.
func (s *SPRT) Evaluate(_ context.Context, in *Input) models.GateResult {
	key := Key(in.Intent.Symbol, in.Intent.Account)
	llr, n := s.LLR(key)
	detail := fmt.Sprintf("llr=%.3f n=%d", llr, n)

	switch s.Verdict(key) {
	case VerdictReject:
		if s.cfg.Blocking {
			return models.Deny(s.Name(), models.ReasonSPRTReject, detail)
		}
		return models.PassWith(s.Name(), models.ReasonSPRTReject, detail+" (advisory)")
	case VerdictAccept:
		return models.PassWith(s.Name(), models.ReasonSPRTAccept, detail)
	default:
		return models.PassWith(s.Name(), models.ReasonSPRTContinue, detail)
	}
}
