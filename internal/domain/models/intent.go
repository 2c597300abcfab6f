package models

import "time"

// Side is the direction of a trade intent.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType distinguishes resting and crossing orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// Mode selects shadow (paper) or live execution for an account.
type Mode string

const (
	ModeShadow Mode = "shadow"
	ModeLive   Mode = "live"
)

// TradeIntent is one proposed order submitted for admission control.
// It is immutable for the lifetime of the pipeline call that owns it.
type TradeIntent struct {
	ID             string    `json:"id"`
	IdempotencyKey string    `json:"idempotency_key"`
	Symbol         string    `json:"symbol"`
	Side           Side      `json:"side"`
	Qty            float64   `json:"qty"`
	Notional       float64   `json:"notional"`
	Price          float64   `json:"price"`
	OrderType      OrderType `json:"order_type"`
	Account        string    `json:"account"`
	Mode           Mode      `json:"mode"`
	CreatedAt      time.Time `json:"created_at"`
}

// MarketSnapshot carries the per-call market observation the gates evaluate
// against. It is supplied fresh by the caller and never persisted.
type MarketSnapshot struct {
	Symbol        string    `json:"symbol"`
	SpreadBps     float64   `json:"spread_bps"`
	LatencyMs     float64   `json:"latency_ms"`
	OBImbalance   float64   `json:"ob_imbalance"`
	TFImbalance   float64   `json:"tf_imbalance"`
	Score         float64   `json:"score"`
	CancelDelta   float64   `json:"cancel_delta"`
	AddDelta      float64   `json:"add_delta"`
	TradeCount    int       `json:"trade_count"`
	Regime        string    `json:"regime"`
	PnLTodayPct   float64   `json:"pnl_today_pct"`
	VolatilityPct float64   `json:"volatility_pct"`
	RewardBps     float64   `json:"reward_bps"`
	LossBps       float64   `json:"loss_bps"`
	FeeBps        float64   `json:"fee_bps"`
	MakerFeeBps   float64   `json:"maker_fee_bps"`
	SlippageBps   float64   `json:"slippage_bps"`
	PFill         float64   `json:"p_fill"`
	Stale         bool      `json:"stale"`
	Timestamp     time.Time `json:"timestamp"`
}

// Instrument describes exchange precision rules for quantity resolution.
type Instrument struct {
	Symbol   string  `json:"symbol"`
	QtyStep  float64 `json:"qty_step"`
	MinQty   float64 `json:"min_qty"`
	MinNotal float64 `json:"min_notional"`
}
