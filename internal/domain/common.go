package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderKind represents how an order is priced and triggered.
type OrderKind string

const (
	KindMarket OrderKind = "MARKET"
	KindLimit  OrderKind = "LIMIT"
	KindStop   OrderKind = "STOP"
)

// OrderStatus represents the lifecycle state of an order.
// PENDING and PARTIALLY_FILLED are the only non-terminal states.
type OrderStatus string

const (
	StatusPending         OrderStatus = "PENDING"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCancelled       OrderStatus = "CANCELLED"
	StatusRejected        OrderStatus = "REJECTED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// SignalType classifies a trading signal.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// JobOutcome records how a scheduled job run ended.
type JobOutcome string

const (
	OutcomeSuccess JobOutcome = "success"
	OutcomeFailure JobOutcome = "failure"
	OutcomeSkipped JobOutcome = "skipped"
)

// Rejection reasons used when an order transitions to REJECTED.
const (
	RejectInsufficientCash     = "insufficient cash balance"
	RejectInsufficientQuantity = "insufficient held quantity"
	RejectNoPosition           = "no position to sell"
)
