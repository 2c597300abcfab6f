package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	"github.com/wekabeka1996/aurora/internal/services/gates"
	"github.com/wekabeka1996/aurora/pkg/logger"
)

func newOutcomeFixture(t *testing.T) (*OutcomeHandler, *gates.RiskManager, *gates.SPRT, *gates.Governance) {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)

	risk := gates.NewRiskManager(gates.RiskLimits{
		KellyScaler: 0.5, ClipMin: 0.01, ClipMax: 0.2,
		DDDayPct: 5, CVaRCap: 100, MaxConcurrent: 10, SizeScale: 1,
	}, nil, 100_000)
	sprt := gates.NewSPRT(gates.SPRTConfig{Alpha: 0.05, Beta: 0.10, P0: 0.5, P1: 0.6})
	gov := gates.NewGovernance(gates.GovernanceConfig{ConsecutiveFailures: 3}, newFakeClock())

	return NewOutcomeHandler("aurora.outcomes", risk, sprt, gov, &fakeMetrics{}, log), risk, sprt, gov
}

func outcomeBytes(t *testing.T, o models.Outcome) []byte {
	t.Helper()
	b, err := json.Marshal(o)
	require.NoError(t, err)
	return b
}

func TestOutcomeHandlerRejectsMalformedPayload(t *testing.T) {
	h, _, _, _ := newOutcomeFixture(t)

	assert.Error(t, h.Handle(context.Background(), []byte("{not json")))
	assert.Error(t, h.Handle(context.Background(), outcomeBytes(t, models.Outcome{Symbol: "BTCUSDT"})))
	assert.Error(t, h.Handle(context.Background(), outcomeBytes(t, models.Outcome{Account: "acct"})))
}

func TestOutcomeHandlerAppliesPnLToRisk(t *testing.T) {
	h, risk, _, _ := newOutcomeFixture(t)

	err := h.Handle(context.Background(), outcomeBytes(t, models.Outcome{
		Symbol: "BTCUSDT", Account: "acct", PnLBps: -100, Notional: 10_000, Closed: true,
	}))
	require.NoError(t, err)

	snap := risk.Snapshot("acct")
	assert.InDelta(t, 99_900, snap.Equity, 1e-6)
}

func TestOutcomeHandlerFeedsSPRTOnClose(t *testing.T) {
	h, _, sprt, _ := newOutcomeFixture(t)

	for i := 0; i < 100; i++ {
		err := h.Handle(context.Background(), outcomeBytes(t, models.Outcome{
			Symbol: "BTCUSDT", Account: "acct", PnLBps: -10, Notional: 100, Closed: true,
		}))
		require.NoError(t, err)
	}
	assert.Equal(t, gates.VerdictReject, sprt.Verdict(gates.Key("BTCUSDT", "acct")))
}

func TestOutcomeHandlerUsesStratKeyWhenSet(t *testing.T) {
	h, _, sprt, _ := newOutcomeFixture(t)

	for i := 0; i < 100; i++ {
		err := h.Handle(context.Background(), outcomeBytes(t, models.Outcome{
			Symbol: "BTCUSDT", Account: "acct", StratKey: "momo-v2", PnLBps: 10, Notional: 100, Closed: true,
		}))
		require.NoError(t, err)
	}
	assert.Equal(t, gates.VerdictAccept, sprt.Verdict("momo-v2"))
	assert.Equal(t, gates.VerdictContinue, sprt.Verdict(gates.Key("BTCUSDT", "acct")))
}

func TestOutcomeHandlerRejectionsTripKillSwitch(t *testing.T) {
	h, _, _, gov := newOutcomeFixture(t)

	for i := 0; i < 3; i++ {
		err := h.Handle(context.Background(), outcomeBytes(t, models.Outcome{
			Symbol: "BTCUSDT", Account: "acct", Rejected: true,
		}))
		require.NoError(t, err)
	}
	assert.True(t, gov.KillSwitchOpen())
}

func TestOutcomeHandlerTracksOpenPositions(t *testing.T) {
	h, _, _, gov := newOutcomeFixture(t)

	require.NoError(t, h.Handle(context.Background(), outcomeBytes(t, models.Outcome{
		Symbol: "BTCUSDT", Account: "acct",
	})))
	assert.Equal(t, 1, gov.OpenPositions("BTCUSDT"))

	require.NoError(t, h.Handle(context.Background(), outcomeBytes(t, models.Outcome{
		Symbol: "BTCUSDT", Account: "acct", PnLBps: 5, Notional: 100, Closed: true,
	})))
	assert.Equal(t, 0, gov.OpenPositions("BTCUSDT"))
}
