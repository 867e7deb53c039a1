package service

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	"trade_engine/internal/models"
	"trade_engine/pkg/logger"
)

// Close — reduce-only выход по символу. После успешного закрытия
// реализованный PnL дотягивается асинхронно и best-effort: его неудача
// закрытие не отменяет.
func (m *Manager) Close(ctx context.Context, symbol, side string, size float64) (*models.OrderResult, error) {
	if err := m.acquire(symbol, StateClosing); err != nil {
		return nil, err
	}
	defer m.release(symbol, StateIdle)

	span, ctx := opentracing.StartSpanFromContext(ctx, "lifecycle.close")
	span.SetTag("symbol", symbol)
	span.SetTag("side", side)
	defer span.Finish()

	res, err := m.client.CloseOrder(ctx, symbol, side, size)
	if err != nil {
		span.SetTag("error", true)
		return nil, err
	}

	startMs := res.ExchangeTimeMs
	if startMs == 0 {
		startMs = time.Now().UnixMilli()
	}
	go m.fetchTradeResult(symbol, startMs)

	return res, nil
}

// fetchTradeResult — фоновый запрос closed PnL по только что закрытой
// сделке. Отдельный контекст: закрывающий вызов уже завершён.
func (m *Manager) fetchTradeResult(symbol string, startMs int64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
	defer cancel()

	trade, err := m.client.ClosedPnL(ctx, symbol, startMs)
	if err != nil {
		logger.Error("closed pnl %s: %v", symbol, err)
		return
	}
	logger.Info("trade result %s %s qty=%.8f entry=%.4f exit=%.4f pnl=%.4f",
		trade.Symbol, trade.Side, trade.Qty, trade.AvgEntry, trade.AvgExit, trade.ClosedPnl)
}
