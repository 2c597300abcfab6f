package models

import "time"

// DecideRequest is the admission-control request body. Snapshot fields are
// flattened alongside the intent so the execution client sends one document.
type DecideRequest struct {
	IdempotencyKey string  `json:"idempotency_key" validate:"required,min=8,max=128"`
	Symbol         string  `json:"symbol" validate:"required,min=3,max=32"`
	Side           string  `json:"side" validate:"required,oneof=buy sell"`
	Qty            float64 `json:"qty" validate:"gte=0"`
	Notional       float64 `json:"notional" validate:"gte=0"`
	Price          float64 `json:"price" validate:"gte=0"`
	OrderType      string  `json:"order_type" default:"limit" validate:"oneof=limit market"`
	Account        string  `json:"account" default:"default" validate:"min=1,max=64"`
	Mode           string  `json:"mode" default:"shadow" validate:"oneof=shadow live"`

	Snapshot MarketSnapshot `json:"snapshot" validate:"required"`
}

// Intent materializes the immutable TradeIntent from the request.
func (r *DecideRequest) Intent(id string, now time.Time) *TradeIntent {
	return &TradeIntent{
		ID:             id,
		IdempotencyKey: r.IdempotencyKey,
		Symbol:         r.Symbol,
		Side:           Side(r.Side),
		Qty:            r.Qty,
		Notional:       r.Notional,
		Price:          r.Price,
		OrderType:      OrderType(r.OrderType),
		Account:        r.Account,
		Mode:           Mode(r.Mode),
		CreatedAt:      now,
	}
}

// DecideResponse mirrors Decision for the transport layer.
type DecideResponse struct {
	Decision *Decision `json:"decision"`
	Replayed bool      `json:"replayed"`
}

// CoolOffRequest asks the health guard to block approvals for a duration.
type CoolOffRequest struct {
	Seconds int `json:"seconds" default:"60" validate:"gte=1,lte=86400"`
}

// RiskLimitsUpdate carries live-mutable risk limits; nil fields are left
// unchanged so operators can patch a single limit.
type RiskLimitsUpdate struct {
	DDDayPct      *float64 `json:"dd_day_pct,omitempty" validate:"omitempty,gt=0,lte=100"`
	CVaRCap       *float64 `json:"cvar_cap,omitempty" validate:"omitempty,gt=0"`
	MaxConcurrent *int     `json:"max_concurrent,omitempty" validate:"omitempty,gte=1"`
	LeverageMax   *float64 `json:"leverage_max,omitempty" validate:"omitempty,gte=1"`
	MinNotional   *float64 `json:"min_notional,omitempty" validate:"omitempty,gte=0"`
	MaxNotional   *float64 `json:"max_notional,omitempty" validate:"omitempty,gt=0"`
	SizeScale     *float64 `json:"size_scale,omitempty" validate:"omitempty,gt=0,lte=1"`
}

// Outcome is one post-trade result consumed from the fills topic. It feeds
// the SPRT accumulators, risk state and the governance failure breaker.
type Outcome struct {
	Symbol    string    `json:"symbol"`
	Account   string    `json:"account"`
	StratKey  string    `json:"strat_key"`
	PnLBps    float64   `json:"pnl_bps"`
	Notional  float64   `json:"notional"`
	Rejected  bool      `json:"rejected"`
	Closed    bool      `json:"closed"`
	Timestamp time.Time `json:"timestamp"`
}
