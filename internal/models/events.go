package models

import "time"

// Типизированные события шины. Эфемерные: не буферизуем бесконечно,
// медленный подписчик теряет события.

// PriceTick — нормализованный тик из публичного канала.
type PriceTick struct {
	Symbol string
	Price  float64
	// Изменение за 24ч в процентах (из price24hPcnt тикера).
	Pct24h float64
	At     time.Time
}

// PositionClosed — выведено из кадра position-канала с size=0/пустым side.
// EnteredAt — оценка (now - lookback), точного времени входа стрим не даёт.
type PositionClosed struct {
	Symbol    string
	EnteredAt time.Time
	At        time.Time
}

// FeedUnavailable — терминальное событие: reconnect-попытки исчерпаны.
type FeedUnavailable struct {
	Attempts int
	LastErr  string
	At       time.Time
}
