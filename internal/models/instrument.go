package models

// Instrument — справочник по инструменту (linear perpetual).
// Читаем по требованию перед сабмитом, между жизненными циклами не кешируем.
type Instrument struct {
	Symbol      string
	Category    string // "linear"
	Status      string // "Trading" — иначе сабмит блокируется
	MinLeverage float64
	MaxLeverage float64
	TickSize    float64
	QtyStep     float64
	MinQty      float64
}

func (i Instrument) Tradable() bool { return i.Status == "Trading" }
