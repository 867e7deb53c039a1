package models

import (
	"errors"
	"fmt"
)

// Сентинелы для ошибок без дополнительного контекста.
var (
	// ErrSymbolBusy — по символу уже идёт open/close, повторить позже.
	ErrSymbolBusy = errors.New("symbol busy")
	// ErrTimeout — REST-вызов не уложился в таймаут.
	ErrTimeout = errors.New("request timeout")
)

// MarketDataError — неизвестный символ либо битый ответ тикера.
type MarketDataError struct {
	Symbol string
	Err    error
}

func (e *MarketDataError) Error() string {
	return fmt.Sprintf("market data %s: %v", e.Symbol, e.Err)
}
func (e *MarketDataError) Unwrap() error { return e.Err }

// AccountQueryError — транспорт или пустой ответ по балансу.
type AccountQueryError struct {
	Err error
}

func (e *AccountQueryError) Error() string { return fmt.Sprintf("account query: %v", e.Err) }
func (e *AccountQueryError) Unwrap() error { return e.Err }

// LeverageError — биржа отклонила плечо. Non-fatal: вызывающий решает,
// торговать ли с тем плечом, которое уже стоит.
type LeverageError struct {
	Symbol    string
	Requested float64
	Err       error
}

func (e *LeverageError) Error() string {
	return fmt.Sprintf("set leverage %s=%.0f: %v", e.Symbol, e.Requested, e.Err)
}
func (e *LeverageError) Unwrap() error { return e.Err }

// RiskParameterError — фатальна для текущей попытки, никогда не глотаем.
type RiskParameterError struct {
	Reason string
}

func (e *RiskParameterError) Error() string { return "risk params: " + e.Reason }

type OrderSubmissionError struct {
	Symbol string
	Err    error
}

func (e *OrderSubmissionError) Error() string {
	return fmt.Sprintf("submit order %s: %v", e.Symbol, e.Err)
}
func (e *OrderSubmissionError) Unwrap() error { return e.Err }

type CloseOrderError struct {
	Symbol string
	Err    error
}

func (e *CloseOrderError) Error() string {
	return fmt.Sprintf("close order %s: %v", e.Symbol, e.Err)
}
func (e *CloseOrderError) Unwrap() error { return e.Err }

// ConnectionError — только для фид-клиента; наружу не уходит,
// триггерит внутренний reconnect.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("feed connection: %v", e.Err) }
func (e *ConnectionError) Unwrap() error { return e.Err }
