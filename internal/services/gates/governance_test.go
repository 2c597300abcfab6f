package gates

import (
	"context"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wekabeka1996/aurora/internal/domain/models"
)

func govConfig() GovernanceConfig {
	return GovernanceConfig{
		SpreadBpsLimit:      80,
		LatencyMsLimit:      1000,
		VolatilityLimit:     10,
		MaxOpenPerSymbol:    2,
		MaxSnapshotAge:      5 * time.Second,
		ConsecutiveFailures: 3,
	}
}

func govInput(clock *fakeClock) *Input {
	return &Input{
		Intent: &models.TradeIntent{Symbol: "BTCUSDT", Account: "acct"},
		Snapshot: &models.MarketSnapshot{
			Symbol:    "BTCUSDT",
			SpreadBps: 10,
			LatencyMs: 50,
			Timestamp: clock.Now(),
		},
		Scale: 1,
	}
}

func TestGovernancePassesHealthyIntent(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernance(govConfig(), clock)

	res := g.Evaluate(context.Background(), govInput(clock))
	assert.True(t, res.Allow)
}

func TestGovernanceDeniesStaleData(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernance(govConfig(), clock)

	in := govInput(clock)
	in.Snapshot.Stale = true
	res := g.Evaluate(context.Background(), in)
	require.False(t, res.Allow)
	assert.Equal(t, models.ReasonDataQuality, res.Reason)
}

func TestGovernanceDeniesOldSnapshot(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernance(govConfig(), clock)

	in := govInput(clock)
	clock.Advance(6 * time.Second)
	res := g.Evaluate(context.Background(), in)
	require.False(t, res.Allow)
	assert.Equal(t, models.ReasonDataQuality, res.Reason)
}

func TestGovernanceOverridesOnLimits(t *testing.T) {
	clock := newFakeClock()

	tests := []struct {
		name   string
		mutate func(*models.MarketSnapshot)
	}{
		{"spread over limit", func(s *models.MarketSnapshot) { s.SpreadBps = 120 }},
		{"latency over limit", func(s *models.MarketSnapshot) { s.LatencyMs = 1500 }},
		{"volatility over limit", func(s *models.MarketSnapshot) { s.VolatilityPct = 15 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGovernance(govConfig(), clock)
			in := govInput(clock)
			tt.mutate(in.Snapshot)

			res := g.Evaluate(context.Background(), in)
			require.False(t, res.Allow)
			assert.Equal(t, models.ReasonGovOverride, res.Reason)
		})
	}
}

func TestGovernancePositionLimit(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernance(govConfig(), clock)

	g.RecordOrderSuccess("BTCUSDT")
	g.RecordOrderSuccess("BTCUSDT")
	require.Equal(t, 2, g.OpenPositions("BTCUSDT"))

	res := g.Evaluate(context.Background(), govInput(clock))
	require.False(t, res.Allow)
	assert.Equal(t, models.ReasonPositionLimit, res.Reason)

	// Another symbol is not affected by BTCUSDT exposure.
	in := govInput(clock)
	in.Intent.Symbol = "ETHUSDT"
	assert.True(t, g.Evaluate(context.Background(), in).Allow)

	g.RecordPositionClosed("BTCUSDT")
	assert.True(t, g.Evaluate(context.Background(), govInput(clock)).Allow)
}

func TestGovernanceKillSwitchTripsOnFailureStreak(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernance(govConfig(), clock)

	var tripped bool
	g.OnStateChange(func(_, to gobreaker.State) {
		if to == gobreaker.StateOpen {
			tripped = true
		}
	})

	for i := 0; i < 3; i++ {
		g.RecordOrderFailure()
	}
	require.True(t, g.KillSwitchOpen())
	assert.True(t, tripped)

	res := g.Evaluate(context.Background(), govInput(clock))
	require.False(t, res.Allow)
	assert.Equal(t, models.ReasonKillSwitch, res.Reason)
}

func TestGovernanceKillSwitchOperatorReset(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernance(govConfig(), clock)

	for i := 0; i < 3; i++ {
		g.RecordOrderFailure()
	}
	require.True(t, g.KillSwitchOpen())

	g.ResetKillSwitch()
	assert.False(t, g.KillSwitchOpen())
	assert.True(t, g.Evaluate(context.Background(), govInput(clock)).Allow)
}

func TestGovernanceKillSwitchStickyAcrossBreakerTimeout(t *testing.T) {
	clock := newFakeClock()
	cfg := govConfig()
	cfg.BreakerTimeout = 5 * time.Millisecond
	g := NewGovernance(cfg, clock)

	for i := 0; i < 3; i++ {
		g.RecordOrderFailure()
	}
	require.True(t, g.KillSwitchOpen())

	// Let the breaker half-open on its own and close again on a success.
	// The trip must hold until an operator reset regardless.
	time.Sleep(50 * time.Millisecond)
	g.RecordOrderSuccess("BTCUSDT")
	require.True(t, g.KillSwitchOpen())

	res := g.Evaluate(context.Background(), govInput(clock))
	require.False(t, res.Allow)
	assert.Equal(t, models.ReasonKillSwitch, res.Reason)

	g.ResetKillSwitch()
	assert.False(t, g.KillSwitchOpen())
}

func TestGovernanceSuccessResetsFailureStreak(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernance(govConfig(), clock)

	g.RecordOrderFailure()
	g.RecordOrderFailure()
	g.RecordOrderSuccess("BTCUSDT")
	g.RecordOrderFailure()
	g.RecordOrderFailure()
	assert.False(t, g.KillSwitchOpen())
}
