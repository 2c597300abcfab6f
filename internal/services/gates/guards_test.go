package gates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wekabeka1996/aurora/internal/domain/models"
)

func guardInput(snapshot models.MarketSnapshot) *Input {
	snapshot.Symbol = "BTCUSDT"
	return &Input{
		Intent:   &models.TradeIntent{Symbol: "BTCUSDT", Account: "acct"},
		Snapshot: &snapshot,
		Scale:    1,
	}
}

func TestLatencyGuardDeniesBeyondSLA(t *testing.T) {
	g := NewLatencyGuard(500)

	res := g.Evaluate(context.Background(), guardInput(models.MarketSnapshot{LatencyMs: 600}))
	require.False(t, res.Allow)
	assert.Equal(t, models.ReasonLatencyGuard, res.Reason)

	assert.True(t, g.Evaluate(context.Background(), guardInput(models.MarketSnapshot{LatencyMs: 400})).Allow)
}

func TestLatencyGuardDeniesStaleSnapshot(t *testing.T) {
	g := NewLatencyGuard(500)

	res := g.Evaluate(context.Background(), guardInput(models.MarketSnapshot{LatencyMs: 10, Stale: true}))
	require.False(t, res.Allow)
	assert.Equal(t, models.ReasonLatencyGuard, res.Reason)
}

func TestSlippageGuardCap(t *testing.T) {
	g := NewSlippageGuard(30)

	assert.True(t, g.Evaluate(context.Background(), guardInput(models.MarketSnapshot{SlippageBps: 30})).Allow)

	res := g.Evaluate(context.Background(), guardInput(models.MarketSnapshot{SlippageBps: 31}))
	require.False(t, res.Allow)
	assert.Equal(t, models.ReasonSlippageGuard, res.Reason)
}

func TestSpreadGuardCap(t *testing.T) {
	g := NewSpreadGuard(50)

	assert.True(t, g.Evaluate(context.Background(), guardInput(models.MarketSnapshot{SpreadBps: 50})).Allow)

	res := g.Evaluate(context.Background(), guardInput(models.MarketSnapshot{SpreadBps: 80}))
	require.False(t, res.Allow)
	assert.Equal(t, models.ReasonSpreadGuard, res.Reason)
}

func TestGuardDefaults(t *testing.T) {
	assert.InDelta(t, 500, NewLatencyGuard(0).SLAMs, 1e-9)
	assert.InDelta(t, 30, NewSlippageGuard(0).MaxBps, 1e-9)
	assert.InDelta(t, 50, NewSpreadGuard(0).MaxBps, 1e-9)
}
