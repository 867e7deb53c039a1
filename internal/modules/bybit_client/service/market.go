package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"trade_engine/internal/models"
)

const category = "linear"

// GetLastPrice — последняя цена по тикеру.
func (c *Client) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("category", category)
	q.Set("symbol", symbol)

	rb, err := c.doPublic(ctx, "/v5/market/tickers", q.Encode())
	if err != nil {
		return 0, &models.MarketDataError{Symbol: symbol, Err: err}
	}

	var resp tickersResponse
	if err := json.Unmarshal(rb, &resp); err != nil {
		return 0, &models.MarketDataError{Symbol: symbol, Err: fmt.Errorf("decode: %w", err)}
	}
	if resp.RetCode != 0 {
		return 0, &models.MarketDataError{Symbol: symbol,
			Err: fmt.Errorf("bybit %d: %s", resp.RetCode, resp.RetMsg)}
	}
	if len(resp.Result.List) == 0 {
		return 0, &models.MarketDataError{Symbol: symbol, Err: fmt.Errorf("unknown symbol")}
	}

	px, err := strconv.ParseFloat(resp.Result.List[0].LastPrice, 64)
	if err != nil || px <= 0 {
		return 0, &models.MarketDataError{Symbol: symbol,
			Err: fmt.Errorf("bad lastPrice %q", resp.Result.List[0].LastPrice)}
	}
	return px, nil
}

// GetInstrumentInfo — справочник инструмента: статус, границы плеча, шаги.
func (c *Client) GetInstrumentInfo(ctx context.Context, symbol string) (models.Instrument, error) {
	q := url.Values{}
	q.Set("category", category)
	q.Set("symbol", symbol)

	rb, err := c.doPublic(ctx, "/v5/market/instruments-info", q.Encode())
	if err != nil {
		return models.Instrument{}, &models.MarketDataError{Symbol: symbol, Err: err}
	}

	var resp instrumentsInfoResponse
	if err := json.Unmarshal(rb, &resp); err != nil {
		return models.Instrument{}, &models.MarketDataError{Symbol: symbol, Err: fmt.Errorf("decode: %w", err)}
	}
	if resp.RetCode != 0 {
		return models.Instrument{}, &models.MarketDataError{Symbol: symbol,
			Err: fmt.Errorf("bybit %d: %s", resp.RetCode, resp.RetMsg)}
	}
	if len(resp.Result.List) == 0 {
		return models.Instrument{}, &models.MarketDataError{Symbol: symbol, Err: fmt.Errorf("instrument not found")}
	}

	raw := resp.Result.List[0]
	minLev, _ := strconv.ParseFloat(raw.LeverageFilter.MinLeverage, 64)
	maxLev, _ := strconv.ParseFloat(raw.LeverageFilter.MaxLeverage, 64)
	tickSz, _ := strconv.ParseFloat(raw.PriceFilter.TickSize, 64)
	qtyStep, _ := strconv.ParseFloat(raw.LotSizeFilter.QtyStep, 64)
	minQty, _ := strconv.ParseFloat(raw.LotSizeFilter.MinOrderQty, 64)

	return models.Instrument{
		Symbol:      raw.Symbol,
		Category:    category,
		Status:      raw.Status,
		MinLeverage: minLev,
		MaxLeverage: maxLev,
		TickSize:    tickSz,
		QtyStep:     qtyStep,
		MinQty:      minQty,
	}, nil
}

// InstrumentStatus — гейт перед сабмитом: 0 — инструмент валиден,
// иначе retCode биржи (любой не-ноль блокирует ордер).
func (c *Client) InstrumentStatus(ctx context.Context, symbol string) (int, error) {
	inst, err := c.GetInstrumentInfo(ctx, symbol)
	if err != nil {
		return -1, err
	}
	if !inst.Tradable() {
		return 1, nil
	}
	return 0, nil
}
