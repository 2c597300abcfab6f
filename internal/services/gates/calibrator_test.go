package gates

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wekabeka1996/aurora/internal/domain/models"
)

func calInput(score, reward, loss, fee, slippage float64) *Input {
	return &Input{
		Intent: &models.TradeIntent{Symbol: "BTCUSDT", Account: "acct"},
		Snapshot: &models.MarketSnapshot{
			Symbol:      "BTCUSDT",
			Score:       score,
			RewardBps:   reward,
			LossBps:     loss,
			FeeBps:      fee,
			SlippageBps: slippage,
		},
		Scale: 1,
	}
}

func isotonicParams() *models.CalibrationParams {
	return &models.CalibrationParams{
		IsotonicX: []float64{-2, -1, 0, 1, 2},
		IsotonicY: []float64{0.1, 0.3, 0.5, 0.7, 0.9},
		Version:   "v1",
	}
}

func TestPredictPStaysInOpenInterval(t *testing.T) {
	c := NewCalibrator(CalibratorConfig{PiMinBps: 0, Epsilon: 1e-6}, nil)

	for _, score := range []float64{-100, -5, 0, 5, 100} {
		p := c.PredictP(score)
		assert.Greater(t, p, 0.0)
		assert.Less(t, p, 1.0)
	}
}

func TestIsotonicInterpolation(t *testing.T) {
	c := NewCalibrator(CalibratorConfig{PiMinBps: 0}, isotonicParams())

	assert.InDelta(t, 0.5, c.PredictP(0), 1e-9)
	assert.InDelta(t, 0.6, c.PredictP(0.5), 1e-9)
	assert.InDelta(t, 0.9, c.PredictP(2), 1e-6)
}

func TestIsotonicMonotone(t *testing.T) {
	c := NewCalibrator(CalibratorConfig{PiMinBps: 0}, isotonicParams())

	prev := 0.0
	for score := -2.0; score <= 2.0; score += 0.1 {
		p := c.PredictP(score)
		require.GreaterOrEqual(t, p, prev, "p must not decrease with score")
		prev = p
	}
}

func TestPlattFallbackOutsideIsotonicDomain(t *testing.T) {
	params := isotonicParams()
	params.PlattA = -1
	params.PlattB = 0
	c := NewCalibrator(CalibratorConfig{PiMinBps: 0}, params)

	// Score 10 is outside the knot domain; the logistic must answer.
	want := 1.0 / (1.0 + math.Exp(-10))
	assert.InDelta(t, want, c.PredictP(10), 1e-6)
}

func TestExpectedReturnFormula(t *testing.T) {
	// p=0.6, reward=10, loss=8, fee=2, slippage=1 -> 6 - 3.2 - 3 = -0.2
	assert.InDelta(t, -0.2, ExpectedReturnBps(0.6, 10, 8, 2, 1), 1e-9)
}

func TestNegativeExpectedReturnDenies(t *testing.T) {
	// Score 0 maps to p=0.5; costs make e_pi = -5 against a floor of 0.
	c := NewCalibrator(CalibratorConfig{PiMinBps: 0}, isotonicParams())

	in := calInput(0, 10, 10, 3, 2)
	res := c.Evaluate(context.Background(), in)
	require.False(t, res.Allow)
	assert.Equal(t, models.ReasonExpectedReturn, res.Reason)
	assert.InDelta(t, -5.0, in.EPiBps, 1e-9)
}

func TestPositiveExpectedReturnPasses(t *testing.T) {
	c := NewCalibrator(CalibratorConfig{PiMinBps: 0}, isotonicParams())

	in := calInput(1.5, 20, 5, 1, 1)
	res := c.Evaluate(context.Background(), in)
	assert.True(t, res.Allow)
	assert.Greater(t, in.EPiBps, 0.0)
	assert.InDelta(t, 0.8, in.P, 1e-9)
}

func TestExpectedReturnAtFloorDenies(t *testing.T) {
	// p=0.5, reward=loss=10, no costs -> e_pi exactly 0, floor 0 denies.
	c := NewCalibrator(CalibratorConfig{PiMinBps: 0}, isotonicParams())

	res := c.Evaluate(context.Background(), calInput(0, 10, 10, 0, 0))
	assert.False(t, res.Allow)
}

func TestNonFiniteSnapshotDenies(t *testing.T) {
	c := NewCalibrator(CalibratorConfig{PiMinBps: 0}, isotonicParams())

	in := calInput(math.NaN(), 10, 10, 1, 1)
	res := c.Evaluate(context.Background(), in)
	require.False(t, res.Allow)
	assert.Equal(t, models.ReasonExpectedReturn, res.Reason)
}

func TestSwapReplacesModel(t *testing.T) {
	c := NewCalibrator(CalibratorConfig{PiMinBps: 0}, isotonicParams())
	require.InDelta(t, 0.5, c.PredictP(0), 1e-9)

	c.Swap(&models.CalibrationParams{
		IsotonicX: []float64{-1, 1},
		IsotonicY: []float64{0.2, 0.4},
		Version:   "v2",
	})
	assert.InDelta(t, 0.3, c.PredictP(0), 1e-9)
}
