package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trade_engine/internal/models"
)

// GetPosition — позиция по символу. Пустой список это НЕ ошибка:
// возвращаем flat-сентинел.
func (c *Client) GetPosition(ctx context.Context, symbol string) (models.Position, error) {
	q := url.Values{}
	q.Set("category", category)
	q.Set("symbol", symbol)

	rb, err := c.doSigned(ctx, http.MethodGet, "/v5/position/list", q.Encode(), nil)
	if err != nil {
		return models.Position{}, &models.AccountQueryError{Err: err}
	}

	var resp positionListResponse
	if err := json.Unmarshal(rb, &resp); err != nil {
		return models.Position{}, &models.AccountQueryError{Err: fmt.Errorf("decode: %w", err)}
	}
	if resp.RetCode != 0 {
		return models.Position{}, &models.AccountQueryError{
			Err: fmt.Errorf("bybit %d: %s", resp.RetCode, resp.RetMsg)}
	}
	if len(resp.Result.List) == 0 {
		return models.FlatPosition(symbol), nil
	}

	raw := resp.Result.List[0]
	size, _ := strconv.ParseFloat(raw.Size, 64)
	entry, _ := strconv.ParseFloat(raw.AvgPrice, 64)

	return models.Position{
		Symbol:     raw.Symbol,
		Side:       raw.Side,
		Size:       size,
		EntryPrice: entry,
		ObservedAt: time.Now(),
	}, nil
}

// GetAllPositions — все позиции по settle-монете.
func (c *Client) GetAllPositions(ctx context.Context, settleCoin string) ([]models.Position, error) {
	q := url.Values{}
	q.Set("category", category)
	q.Set("settleCoin", settleCoin)

	rb, err := c.doSigned(ctx, http.MethodGet, "/v5/position/list", q.Encode(), nil)
	if err != nil {
		return nil, &models.AccountQueryError{Err: err}
	}

	var resp positionListResponse
	if err := json.Unmarshal(rb, &resp); err != nil {
		return nil, &models.AccountQueryError{Err: fmt.Errorf("decode: %w", err)}
	}
	if resp.RetCode != 0 {
		return nil, &models.AccountQueryError{
			Err: fmt.Errorf("bybit %d: %s", resp.RetCode, resp.RetMsg)}
	}

	res := make([]models.Position, 0, len(resp.Result.List))
	now := time.Now()
	for _, raw := range resp.Result.List {
		size, _ := strconv.ParseFloat(raw.Size, 64)
		entry, _ := strconv.ParseFloat(raw.AvgPrice, 64)
		res = append(res, models.Position{
			Symbol:     raw.Symbol,
			Side:       raw.Side,
			Size:       size,
			EntryPrice: entry,
			ObservedAt: now,
		})
	}
	return res, nil
}

// ClosedPnL — реализованный результат последней закрытой сделки
// начиная с startTime (ms). Best-effort после закрытия позиции.
func (c *Client) ClosedPnL(ctx context.Context, symbol string, startTimeMs int64) (models.ClosedTrade, error) {
	q := url.Values{}
	q.Set("category", category)
	q.Set("symbol", symbol)
	q.Set("startTime", strconv.FormatInt(startTimeMs, 10))
	q.Set("limit", "1")

	rb, err := c.doSigned(ctx, http.MethodGet, "/v5/position/closed-pnl", q.Encode(), nil)
	if err != nil {
		return models.ClosedTrade{}, &models.AccountQueryError{Err: err}
	}

	var resp closedPnlResponse
	if err := json.Unmarshal(rb, &resp); err != nil {
		return models.ClosedTrade{}, &models.AccountQueryError{Err: fmt.Errorf("decode: %w", err)}
	}
	if resp.RetCode != 0 {
		return models.ClosedTrade{}, &models.AccountQueryError{
			Err: fmt.Errorf("bybit %d: %s", resp.RetCode, resp.RetMsg)}
	}
	if len(resp.Result.List) == 0 {
		return models.ClosedTrade{}, &models.AccountQueryError{Err: fmt.Errorf("no closed pnl for %s", symbol)}
	}

	raw := resp.Result.List[0]
	qty, _ := strconv.ParseFloat(raw.Qty, 64)
	entry, _ := strconv.ParseFloat(raw.AvgEntryPx, 64)
	exit, _ := strconv.ParseFloat(raw.AvgExitPx, 64)
	pnl, _ := strconv.ParseFloat(raw.ClosedPnl, 64)
	updMs, _ := strconv.ParseInt(raw.UpdatedTime, 10, 64)

	return models.ClosedTrade{
		Symbol:    raw.Symbol,
		Side:      raw.Side,
		Qty:       qty,
		AvgEntry:  entry,
		AvgExit:   exit,
		ClosedPnl: pnl,
		UpdatedAt: time.UnixMilli(updMs),
	}, nil
}
