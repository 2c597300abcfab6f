package gates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wekabeka1996/aurora/internal/domain/models"
)

func sprtInput() *Input {
	return &Input{
		Intent:   &models.TradeIntent{Symbol: "BTCUSDT", Account: "acct"},
		Snapshot: &models.MarketSnapshot{Symbol: "BTCUSDT"},
		Scale:    1,
	}
}

func TestSPRTAcceptsAfterWinStreak(t *testing.T) {
	s := NewSPRT(SPRTConfig{Alpha: 0.05, Beta: 0.10, P0: 0.5, P1: 0.6})
	key := Key("BTCUSDT", "acct")

	verdict := VerdictContinue
	for i := 0; i < 100 && verdict == VerdictContinue; i++ {
		verdict = s.AddObservation(key, true)
	}
	assert.Equal(t, VerdictAccept, verdict)
}

func TestSPRTRejectsAfterLossStreak(t *testing.T) {
	s := NewSPRT(SPRTConfig{Alpha: 0.05, Beta: 0.10, P0: 0.5, P1: 0.6})
	key := Key("BTCUSDT", "acct")

	verdict := VerdictContinue
	for i := 0; i < 100 && verdict == VerdictContinue; i++ {
		verdict = s.AddObservation(key, false)
	}
	assert.Equal(t, VerdictReject, verdict)
}

func TestSPRTVerdictLatches(t *testing.T) {
	s := NewSPRT(SPRTConfig{Alpha: 0.05, Beta: 0.10, P0: 0.5, P1: 0.6})
	key := Key("BTCUSDT", "acct")

	for i := 0; i < 100; i++ {
		s.AddObservation(key, false)
	}
	require.Equal(t, VerdictReject, s.Verdict(key))

	// Wins after a latched reject must not flip it.
	for i := 0; i < 100; i++ {
		s.AddObservation(key, true)
	}
	assert.Equal(t, VerdictReject, s.Verdict(key))
}

func TestSPRTResetClearsKey(t *testing.T) {
	s := NewSPRT(SPRTConfig{Alpha: 0.05, Beta: 0.10, P0: 0.5, P1: 0.6})
	key := Key("BTCUSDT", "acct")

	for i := 0; i < 100; i++ {
		s.AddObservation(key, false)
	}
	require.Equal(t, VerdictReject, s.Verdict(key))

	s.Reset(key)
	assert.Equal(t, VerdictContinue, s.Verdict(key))
	llr, n := s.LLR(key)
	assert.Zero(t, llr)
	assert.Zero(t, n)
}

func TestSPRTBlockingRejectDenies(t *testing.T) {
	s := NewSPRT(SPRTConfig{Alpha: 0.05, Beta: 0.10, P0: 0.5, P1: 0.6, Blocking: true})
	key := Key("BTCUSDT", "acct")
	for i := 0; i < 100; i++ {
		s.AddObservation(key, false)
	}

	res := s.Evaluate(context.Background(), sprtInput())
	require.False(t, res.Allow)
	assert.Equal(t, models.ReasonSPRTReject, res.Reason)
}

func TestSPRTAdvisoryRejectPasses(t *testing.T) {
	s := NewSPRT(SPRTConfig{Alpha: 0.05, Beta: 0.10, P0: 0.5, P1: 0.6, Blocking: false})
	key := Key("BTCUSDT", "acct")
	for i := 0; i < 100; i++ {
		s.AddObservation(key, false)
	}

	res := s.Evaluate(context.Background(), sprtInput())
	assert.True(t, res.Allow)
	assert.Equal(t, models.ReasonSPRTReject, res.Reason)
}

func TestSPRTContinuePasses(t *testing.T) {
	s := NewSPRT(SPRTConfig{Alpha: 0.05, Beta: 0.10, P0: 0.5, P1: 0.6})

	res := s.Evaluate(context.Background(), sprtInput())
	assert.True(t, res.Allow)
	assert.Equal(t, models.ReasonSPRTContinue, res.Reason)
}

func TestSPRTKeysAreIndependent(t *testing.T) {
	s := NewSPRT(SPRTConfig{Alpha: 0.05, Beta: 0.10, P0: 0.5, P1: 0.6})
	for i := 0; i < 100; i++ {
		s.AddObservation(Key("BTCUSDT", "a"), false)
	}
	assert.Equal(t, VerdictReject, s.Verdict(Key("BTCUSDT", "a")))
	assert.Equal(t, VerdictContinue, s.Verdict(Key("BTCUSDT", "b")))
}
