package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/opentracing/opentracing-go"

	"trade_engine/internal/helper"
	"trade_engine/internal/models"
	"trade_engine/internal/risk"
	"trade_engine/pkg/logger"
)

// newOrderLinkID — клиентский идемпотентный токен (16 случайных байт hex).
func newOrderLinkID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Open проводит символ через Validating -> Sizing -> Submitting.
// Исход трёхзначный: Accepted / Rejected(policy) / error. Rejected — это
// "ничего не сделали по политике", не ошибка.
//
// withProtective: проверка пирамидинга + расчёт TP/SL от свежей цены.
func (m *Manager) Open(ctx context.Context, symbol, side string, riskPct float64, withProtective bool) (*models.OrderOutcome, error) {
	if err := m.acquire(symbol, StateValidating); err != nil {
		return nil, err
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "lifecycle.open")
	span.SetTag("symbol", symbol)
	span.SetTag("side", side)
	defer span.Finish()

	outcome, err := m.open(ctx, symbol, side, riskPct, withProtective)
	switch {
	case err != nil:
		span.SetTag("error", true)
		m.release(symbol, StateIdle)
	case outcome.Status == models.OutcomeRejected:
		span.SetTag("rejected", outcome.Reason)
		m.release(symbol, StateIdle)
	default:
		m.release(symbol, StateOpen)
	}
	return outcome, err
}

func (m *Manager) open(ctx context.Context, symbol, side string, riskPct float64, withProtective bool) (*models.OrderOutcome, error) {
	// --- Validating ---
	inst, err := m.client.GetInstrumentInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if !inst.Tradable() {
		logger.Info("open %s rejected: instrument status %q", symbol, inst.Status)
		return models.Rejected("instrument not tradable"), nil
	}

	// Плечо — best-effort: запрошенное значение зажимаем по капу
	// инструмента ДО вызова; если биржа всё равно отказала, торгуем
	// с тем плечом, которое уже стоит.
	leverage := m.cfg.DefaultLeverage
	if inst.MaxLeverage > 0 && leverage > inst.MaxLeverage {
		leverage = inst.MaxLeverage
	}
	if err := m.client.SetLeverage(ctx, symbol, leverage); err != nil {
		logger.Error("open %s: set leverage failed, continue with exchange value: %v", symbol, err)
	}

	// --- Sizing: баланс и цена только свежие, в этой же цепочке ---
	m.transition(symbol, StateSizing)

	summary, err := m.client.GetAccountSummary(ctx)
	if err != nil {
		return nil, err
	}
	lastPx, err := m.client.GetLastPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	qty, err := risk.PositionSize(summary.TotalAvailBalance, leverage, riskPct, lastPx, inst.QtyStep)
	if err != nil {
		return nil, err
	}
	if qty <= 0 || (inst.MinQty > 0 && qty < inst.MinQty) {
		logger.Info("open %s rejected: qty %.8f below instrument minimum %.8f", symbol, qty, inst.MinQty)
		return models.Rejected("size below instrument minimum"), nil
	}

	var tp, sl float64
	if withProtective {
		pos, err := m.client.GetPosition(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if !pos.Flat() {
			logger.Info("open %s rejected: already in position (size=%.8f)", symbol, pos.Size)
			return models.Rejected("already in position"), nil
		}
		tp, sl, err = risk.TakeProfitStopLoss(lastPx, side, m.cfg.DefaultTPPct, m.cfg.DefaultSLPct)
		if err != nil {
			return nil, err
		}
		// округление по сетке тиков наружу от входа: уровни после
		// округления не пересекают цену
		if side == models.SideBuy {
			tp = helper.RoundUpToTick(tp, inst.TickSize)
			sl = helper.RoundDownToTick(sl, inst.TickSize)
		} else {
			tp = helper.RoundDownToTick(tp, inst.TickSize)
			sl = helper.RoundUpToTick(sl, inst.TickSize)
		}
	}

	// --- Submitting ---
	m.transition(symbol, StateSubmitting)

	req := models.OrderRequest{
		Symbol:      symbol,
		Side:        side,
		Qty:         qty,
		OrderType:   "Market",
		TimeInForce: "GTC",
		OrderLinkID: newOrderLinkID(),
		TakeProfit:  tp,
		StopLoss:    sl,
	}
	res, err := m.client.SubmitOrder(ctx, req)
	if err != nil {
		// наружу без ретрая: слепой повтор — риск двойного фила,
		// решает вызывающий (токен идемпотентности у него в res нет,
		// но запрос уже мог дойти)
		return nil, err
	}

	logger.Info("open %s %s accepted: qty=%.8f tp=%.4f sl=%.4f orderId=%s",
		symbol, side, qty, tp, sl, res.OrderID)
	return models.Accepted(res), nil
}
