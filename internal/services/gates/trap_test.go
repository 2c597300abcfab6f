package gates

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wekabeka1996/aurora/internal/domain/models"
)

func trapInput(symbol string, cancelDelta, addDelta float64, obImb, tfImb float64) *Input {
	return &Input{
		Intent: &models.TradeIntent{Symbol: symbol, Account: "acct"},
		Snapshot: &models.MarketSnapshot{
			Symbol:      symbol,
			CancelDelta: cancelDelta,
			AddDelta:    addDelta,
			TradeCount:  10,
			OBImbalance: obImb,
			TFImbalance: tfImb,
		},
		Scale: 1,
	}
}

func TestTrapWarmingUpPasses(t *testing.T) {
	clock := newFakeClock()
	trap := NewTrapDetector(TrapConfig{ZThreshold: 2, WindowSize: 32, MinSamples: 16, CoolOff: time.Minute}, clock)

	res := trap.Evaluate(context.Background(), trapInput("BTCUSDT", 5, 3, 0.5, 0.4))
	assert.True(t, res.Allow)
	assert.Equal(t, models.ReasonTrapWarmingUp, res.Reason)
}

func TestTrapZeroVariancePasses(t *testing.T) {
	clock := newFakeClock()
	trap := NewTrapDetector(TrapConfig{ZThreshold: 2, WindowSize: 32, MinSamples: 4, CoolOff: time.Minute}, clock)

	// Identical samples give a zero-variance window.
	var res models.GateResult
	for i := 0; i < 8; i++ {
		res = trap.Evaluate(context.Background(), trapInput("ETHUSDT", 5, 3, 0.5, 0.4))
	}
	assert.True(t, res.Allow)
	assert.Equal(t, models.ReasonTrapWarmingUp, res.Reason)
}

func TestTrapDeniesOnSpikeWithSignConflict(t *testing.T) {
	clock := newFakeClock()
	trap := NewTrapDetector(TrapConfig{ZThreshold: 2, WindowSize: 64, MinSamples: 8, CoolOff: time.Minute}, clock)

	// Alternate benign samples to build variance, then spike.
	for i := 0; i < 20; i++ {
		delta := float64(i % 3)
		trap.Observe(&models.MarketSnapshot{Symbol: "BTCUSDT", CancelDelta: delta, AddDelta: 0, TradeCount: 10})
	}

	res := trap.Evaluate(context.Background(), trapInput("BTCUSDT", 500, 0, 0.8, -0.7))
	require.False(t, res.Allow)
	assert.Equal(t, models.ReasonTrapBlock, res.Reason)
	assert.True(t, trap.CoolingOff("BTCUSDT"))
}

func TestTrapSpikeWithoutConflictPasses(t *testing.T) {
	clock := newFakeClock()
	trap := NewTrapDetector(TrapConfig{ZThreshold: 2, WindowSize: 64, MinSamples: 8, CoolOff: time.Minute}, clock)

	for i := 0; i < 20; i++ {
		delta := float64(i % 3)
		trap.Observe(&models.MarketSnapshot{Symbol: "BTCUSDT", CancelDelta: delta, AddDelta: 0, TradeCount: 10})
	}

	// Same spike but order-book and trade-flow agree in sign.
	res := trap.Evaluate(context.Background(), trapInput("BTCUSDT", 500, 0, 0.8, 0.7))
	assert.True(t, res.Allow)
}

func TestTrapCoolOffFastPathAndExpiry(t *testing.T) {
	clock := newFakeClock()
	trap := NewTrapDetector(TrapConfig{ZThreshold: 2, WindowSize: 64, MinSamples: 8, CoolOff: time.Minute}, clock)

	for i := 0; i < 20; i++ {
		trap.Observe(&models.MarketSnapshot{Symbol: "BTCUSDT", CancelDelta: float64(i % 3), AddDelta: 0, TradeCount: 10})
	}
	res := trap.Evaluate(context.Background(), trapInput("BTCUSDT", 500, 0, 0.8, -0.7))
	require.False(t, res.Allow)

	// During cooloff even a benign snapshot is denied without recomputation.
	res = trap.Evaluate(context.Background(), trapInput("BTCUSDT", 1, 0, 0.5, 0.4))
	require.False(t, res.Allow)
	assert.Equal(t, models.ReasonTrapCoolOff, res.Reason)

	clock.Advance(2 * time.Minute)
	assert.False(t, trap.CoolingOff("BTCUSDT"))
	res = trap.Evaluate(context.Background(), trapInput("BTCUSDT", 1, 0, 0.5, 0.4))
	assert.True(t, res.Allow)
}

func TestTrapConcurrentSymbolsScoreIndependently(t *testing.T) {
	clock := newFakeClock()
	trap := NewTrapDetector(TrapConfig{ZThreshold: 2, WindowSize: 64, MinSamples: 8, CoolOff: time.Minute}, clock)

	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"}
	var wg sync.WaitGroup
	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			for i := 0; i < 40; i++ {
				trap.Observe(&models.MarketSnapshot{Symbol: sym, CancelDelta: float64(i % 3), AddDelta: 0, TradeCount: 10})
			}
		}(sym)
	}
	wg.Wait()

	// Every window warmed independently; a benign evaluation passes cleanly.
	for _, sym := range symbols {
		res := trap.Evaluate(context.Background(), trapInput(sym, 1, 0, 0.5, 0.4))
		assert.True(t, res.Allow, sym)
		assert.Equal(t, models.ReasonOK, res.Reason, sym)
	}
}

func TestTrapWindowsAreIndependentPerSymbol(t *testing.T) {
	clock := newFakeClock()
	trap := NewTrapDetector(TrapConfig{ZThreshold: 2, WindowSize: 64, MinSamples: 8, CoolOff: time.Minute}, clock)

	for i := 0; i < 20; i++ {
		trap.Observe(&models.MarketSnapshot{Symbol: "BTCUSDT", CancelDelta: float64(i % 3), AddDelta: 0, TradeCount: 10})
	}
	res := trap.Evaluate(context.Background(), trapInput("BTCUSDT", 500, 0, 0.8, -0.7))
	require.False(t, res.Allow)

	// Another symbol is unaffected by the tripped one.
	res = trap.Evaluate(context.Background(), trapInput("ETHUSDT", 1, 0, 0.5, 0.4))
	assert.True(t, res.Allow)
}
