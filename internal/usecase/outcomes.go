package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	drepo "github.com/wekabeka1996/aurora/internal/domain/repository"
	"github.com/wekabeka1996/aurora/internal/services/gates"
	"github.com/wekabeka1996/aurora/pkg/logger"
)

// OutcomeHandler consumes post-trade outcomes and feeds them back into the
// adaptive components: realized PnL into the risk accounts, win/loss
// observations into the sequential test, and placement failures into the
// governance kill-switch breaker.
type OutcomeHandler struct {
	topic      string
	risk       *gates.RiskManager
	sprt       *gates.SPRT
	governance *gates.Governance
	metrics    drepo.Metrics
	log        *logger.Logger
}

func NewOutcomeHandler(topic string, risk *gates.RiskManager, sprt *gates.SPRT, governance *gates.Governance, metrics drepo.Metrics, log *logger.Logger) *OutcomeHandler {
	return &OutcomeHandler{
		topic:      topic,
		risk:       risk,
		sprt:       sprt,
		governance: governance,
		metrics:    metrics,
		log:        log,
	}
}

func (h *OutcomeHandler) Topic() string { return h.topic }

// Handle applies one outcome message. Malformed payloads are returned as
// errors so the consumer's retry/DLQ path deals with them.
func (h *OutcomeHandler) Handle(_ context.Context, data []byte) error {
	var o models.Outcome
	if err := json.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("decode outcome: %w", err)
	}
	if o.Symbol == "" || o.Account == "" {
		return fmt.Errorf("outcome missing symbol or account")
	}

	h.risk.ApplyOutcome(&o)
	snap := h.risk.Snapshot(o.Account)
	h.metrics.RecordRisk(o.Account, snap.DrawdownPct, snap.CVaR, snap.Concurrent)

	if o.Rejected {
		h.governance.RecordOrderFailure()
	} else if o.Closed {
		h.governance.RecordPositionClosed(o.Symbol)
		key := o.StratKey
		if key == "" {
			key = gates.Key(o.Symbol, o.Account)
		}
		verdict := h.sprt.AddObservation(key, o.PnLBps > 0)
		if verdict == gates.VerdictReject {
			h.log.Warn("sequential test rejected strategy",
				logger.String("key", key),
				logger.String("symbol", o.Symbol))
		}
	} else {
		h.governance.RecordOrderSuccess(o.Symbol)
	}

	h.log.Debug("outcome applied",
		logger.String("symbol", o.Symbol),
		logger.String("account", o.Account),
		logger.Any("pnl_bps", o.PnLBps),
		logger.Bool("closed", o.Closed),
		logger.Bool("rejected", o.Rejected))
	return nil
}
