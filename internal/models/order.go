package models

const (
	SideBuy  = "Buy"
	SideSell = "Sell"
)

// Opposite — сторона закрывающего ордера.
func Opposite(side string) string {
	if side == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderRequest — один ордер на один триггер. После сабмита не мутируем.
// OrderLinkID — клиентский идемпотентный токен, биржа режет дубли по нему.
type OrderRequest struct {
	Symbol      string
	Side        string // Buy/Sell
	Qty         float64
	OrderType   string // Market
	TimeInForce string // GTC
	OrderLinkID string
	TakeProfit  float64 // 0 — без TP
	StopLoss    float64 // 0 — без SL
	ReduceOnly  bool
}

type OrderResult struct {
	OrderID     string
	OrderLinkID string
	// Серверное время ответа (ms) — от него стартует запрос closed PnL.
	ExchangeTimeMs int64
}

// OutcomeStatus — трёхзначный исход сабмита. Policy-отказ (инструмент
// невалиден, уже в позиции) — это НЕ ошибка, это "ничего не сделали".
type OutcomeStatus int

const (
	OutcomeAccepted OutcomeStatus = iota + 1
	OutcomeRejected
)

type OrderOutcome struct {
	Status OutcomeStatus
	Result *OrderResult // только при Accepted
	Reason string       // только при Rejected
}

func Accepted(res *OrderResult) *OrderOutcome {
	return &OrderOutcome{Status: OutcomeAccepted, Result: res}
}

func Rejected(reason string) *OrderOutcome {
	return &OrderOutcome{Status: OutcomeRejected, Reason: reason}
}
