package models

import "time"

// Position — последнее наблюдение позиции с биржи (REST или стрим).
// Источник истины — биржа, локально ничего авторитетного не храним.
type Position struct {
	Symbol     string
	Side       string // Buy/Sell, "" если flat
	Size       float64
	EntryPrice float64
	ObservedAt time.Time // когда сняли наблюдение, может быть устаревшим
}

// Flat — нулевая позиция. Отсутствие позиции это не ошибка.
func (p Position) Flat() bool { return p.Size == 0 }

// FlatPosition — сентинел "позиции нет" для данного символа.
func FlatPosition(symbol string) Position {
	return Position{Symbol: symbol, ObservedAt: time.Now()}
}

// ClosedTrade — реализованный результат закрытой сделки (closed PnL).
type ClosedTrade struct {
	Symbol    string
	Side      string
	Qty       float64
	AvgEntry  float64
	AvgExit   float64
	ClosedPnl float64
	UpdatedAt time.Time
}
