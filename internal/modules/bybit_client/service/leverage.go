package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"

	"trade_engine/internal/models"
)

// Bybit: плечо уже такое — не ошибка, вызов идемпотентен.
const retLeverageNotModified = 110043

// SetLeverage выставляет одинаковое плечо на buy/sell. Отказ биржи
// (например, выше капа инструмента) — LeverageError: вызывающий вправе
// повторить с зажатым значением.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage float64) error {
	if leverage <= 0 {
		return &models.LeverageError{Symbol: symbol, Requested: leverage,
			Err: fmt.Errorf("leverage <= 0")}
	}

	lev := strconv.FormatFloat(leverage, 'f', -1, 64)
	body, _ := sonic.Marshal(map[string]string{
		"category":     category,
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	})

	rb, err := c.doSigned(ctx, http.MethodPost, "/v5/position/set-leverage", "", body)
	if err != nil {
		return &models.LeverageError{Symbol: symbol, Requested: leverage, Err: err}
	}

	var resp baseResponse
	if err := json.Unmarshal(rb, &resp); err != nil {
		return &models.LeverageError{Symbol: symbol, Requested: leverage,
			Err: fmt.Errorf("decode: %w", err)}
	}
	if resp.RetCode != 0 && resp.RetCode != retLeverageNotModified {
		return &models.LeverageError{Symbol: symbol, Requested: leverage,
			Err: fmt.Errorf("bybit %d: %s", resp.RetCode, resp.RetMsg)}
	}
	return nil
}
