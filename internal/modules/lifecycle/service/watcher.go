package service

import (
	"context"
	"sync"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"
	"trade_engine/pkg/logger"
)

// Watcher — подписчик шины со стороны лайфцикла: на PositionClosed
// дотягивает реализованный PnL закрытой сделки, по тикам ведёт
// последнюю виденную цену (для /status и проверок свежести).
type Watcher struct {
	manager *Manager
	bus     *bus.Bus

	mu        sync.RWMutex
	lastPrice map[string]float64
}

func NewWatcher(m *Manager, b *bus.Bus) *Watcher {
	return &Watcher{
		manager:   m,
		bus:       b,
		lastPrice: make(map[string]float64),
	}
}

func (w *Watcher) Run(ctx context.Context) {
	// warm start: биржа помнит открытые позиции через рестарт
	if positions, err := w.manager.RefreshPositions(ctx); err != nil {
		logger.Error("refresh positions: %v", err)
	} else {
		for _, p := range positions {
			if !p.Flat() {
				logger.Info("recovered open position %s %s size=%.8f", p.Symbol, p.Side, p.Size)
			}
		}
	}

	sub := w.bus.Subscribe()
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			switch e := ev.(type) {
			case models.PriceTick:
				w.mu.Lock()
				w.lastPrice[e.Symbol] = e.Price
				w.mu.Unlock()
			case models.PositionClosed:
				// время входа оценочное (now - lookback), для запроса
				// closed PnL этого достаточно
				go w.manager.fetchTradeResult(e.Symbol, e.EnteredAt.UnixMilli())
			}
		}
	}
}

// LastPrice — последняя цена из стрима, ok=false если тиков не было.
func (w *Watcher) LastPrice(symbol string) (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	px, ok := w.lastPrice[symbol]
	return px, ok
}
