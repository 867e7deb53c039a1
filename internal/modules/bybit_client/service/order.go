package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"

	"trade_engine/internal/models"
	"trade_engine/pkg/logger"
)

// SubmitOrder шлёт ордер как есть. Все policy-проверки (инструмент,
// пирамидинг, риск) делает lifecycle ДО этого вызова — здесь только
// транспорт и отказ биржи.
func (c *Client) SubmitOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error) {
	if req.Qty <= 0 {
		return nil, &models.OrderSubmissionError{Symbol: req.Symbol,
			Err: fmt.Errorf("qty <= 0")}
	}

	payload := map[string]string{
		"category":    category,
		"symbol":      req.Symbol,
		"side":        req.Side,
		"orderType":   req.OrderType,
		"qty":         strconv.FormatFloat(req.Qty, 'f', -1, 64),
		"timeInForce": req.TimeInForce,
		"orderLinkId": req.OrderLinkID,
	}
	if req.TakeProfit > 0 {
		payload["takeProfit"] = strconv.FormatFloat(req.TakeProfit, 'f', -1, 64)
	}
	if req.StopLoss > 0 {
		payload["stopLoss"] = strconv.FormatFloat(req.StopLoss, 'f', -1, 64)
	}
	if req.ReduceOnly {
		payload["reduceOnly"] = "true"
	}

	body, _ := sonic.Marshal(payload)
	rb, err := c.doSigned(ctx, http.MethodPost, "/v5/order/create", "", body)
	if err != nil {
		return nil, &models.OrderSubmissionError{Symbol: req.Symbol, Err: err}
	}

	var resp orderCreateResponse
	if err := json.Unmarshal(rb, &resp); err != nil {
		return nil, &models.OrderSubmissionError{Symbol: req.Symbol, Err: fmt.Errorf("decode: %w", err)}
	}
	if resp.RetCode != 0 {
		return nil, &models.OrderSubmissionError{Symbol: req.Symbol,
			Err: fmt.Errorf("bybit %d: %s", resp.RetCode, resp.RetMsg)}
	}

	logger.Info("order submitted %s %s qty=%s orderId=%s", req.Symbol, req.Side,
		payload["qty"], resp.Result.OrderID)

	return &models.OrderResult{
		OrderID:        resp.Result.OrderID,
		OrderLinkID:    resp.Result.OrderLinkID,
		ExchangeTimeMs: resp.Time,
	}, nil
}

// CloseOrder — reduce-only маркет противоположной стороной.
// size > 0 — частичный выход половиной указанного размера,
// size == 0 — полный flatten (qty=0 + reduceOnly биржа трактует
// как "закрыть всё").
func (c *Client) CloseOrder(ctx context.Context, symbol, side string, size float64) (*models.OrderResult, error) {
	qty := 0.0
	if size > 0 {
		qty = size / 2
	}

	payload := map[string]string{
		"category":    category,
		"symbol":      symbol,
		"side":        models.Opposite(side),
		"orderType":   "Market",
		"qty":         strconv.FormatFloat(qty, 'f', -1, 64),
		"reduceOnly":  "true",
		"timeInForce": "GTC",
	}

	body, _ := sonic.Marshal(payload)
	rb, err := c.doSigned(ctx, http.MethodPost, "/v5/order/create", "", body)
	if err != nil {
		return nil, &models.CloseOrderError{Symbol: symbol, Err: err}
	}

	var resp orderCreateResponse
	if err := json.Unmarshal(rb, &resp); err != nil {
		return nil, &models.CloseOrderError{Symbol: symbol, Err: fmt.Errorf("decode: %w", err)}
	}
	if resp.RetCode != 0 {
		return nil, &models.CloseOrderError{Symbol: symbol,
			Err: fmt.Errorf("bybit %d: %s", resp.RetCode, resp.RetMsg)}
	}

	logger.Info("close order %s %s qty=%s orderId=%s", symbol, payload["side"],
		payload["qty"], resp.Result.OrderID)

	return &models.OrderResult{
		OrderID:        resp.Result.OrderID,
		OrderLinkID:    resp.Result.OrderLinkID,
		ExchangeTimeMs: resp.Time,
	}, nil
}
