package gates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wekabeka1996/aurora/internal/domain/models"
)

func routerConfig() RouterConfig {
	return RouterConfig{MinPFill: 0.5, PTakerThreshold: 0.25}
}

func TestDecideRoutePrecedence(t *testing.T) {
	tests := []struct {
		name      string
		makerNet  float64
		takerNet  float64
		pFill     float64
		wantRoute string
		wantOK    bool
	}{
		{"maker edge with fillable book", 5, 3, 0.9, models.RouteMaker, true},
		{"taker dominates maker", 3, 5, 0.9, models.RouteTaker, true},
		{"equal nets prefer taker", 4, 4, 0.9, models.RouteTaker, true},
		{"maker edge but unfillable, taker still positive", 5, 3, 0.1, models.RouteTaker, true},
		{"maker edge, fill below floor but above taker threshold", 5, -1, 0.3, "", false},
		{"both nets negative", -2, -4, 0.9, "", false},
		{"maker positive taker negative, fill ok", 6, -1, 0.8, models.RouteMaker, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := DecideRoute(routerConfig(), tt.makerNet, tt.takerNet, tt.pFill)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantRoute, d.Route)
			}
		})
	}
}

func TestRouterEvaluateSelectsMaker(t *testing.T) {
	r := NewRouter(routerConfig())
	// p=0.6, reward=20, loss=10: gross edge 8bps. Maker pays 1bps fee,
	// taker pays 3bps fee plus 4bps slippage.
	in := &Input{
		Intent: &models.TradeIntent{Symbol: "BTCUSDT", Account: "acct"},
		Snapshot: &models.MarketSnapshot{
			Symbol:      "BTCUSDT",
			RewardBps:   20,
			LossBps:     10,
			MakerFeeBps: 1,
			FeeBps:      3,
			SlippageBps: 4,
			PFill:       0.9,
		},
		P:     0.6,
		Scale: 1,
	}

	res := r.Evaluate(context.Background(), in)
	require.True(t, res.Allow)
	require.NotNil(t, in.Route)
	assert.Equal(t, models.RouteMaker, in.Route.Route)
	assert.InDelta(t, 7, in.Route.MakerNetBps, 1e-9)
	assert.InDelta(t, 1, in.Route.TakerNetBps, 1e-9)
}

func TestRouterEvaluateDeniesWhenNoEdge(t *testing.T) {
	r := NewRouter(routerConfig())
	in := &Input{
		Intent: &models.TradeIntent{Symbol: "BTCUSDT", Account: "acct"},
		Snapshot: &models.MarketSnapshot{
			Symbol:      "BTCUSDT",
			RewardBps:   10,
			LossBps:     10,
			MakerFeeBps: 2,
			FeeBps:      4,
			SlippageBps: 5,
			PFill:       0.9,
		},
		P:     0.5,
		Scale: 1,
	}

	res := r.Evaluate(context.Background(), in)
	require.False(t, res.Allow)
	assert.Equal(t, models.ReasonNoRoute, res.Reason)
	// The deny names the deeper negative edge: taker at -9bps vs maker -2bps.
	assert.Contains(t, res.Detail, "taker_net=-9.00 dominates")
	assert.Nil(t, in.Route)
}
