package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"trade_engine/internal/models"
)

// GetAccountSummary — свежий снапшот UNIFIED-аккаунта.
// Никогда не кешируется: сайзинг всегда от свежего баланса.
func (c *Client) GetAccountSummary(ctx context.Context) (models.AccountSummary, error) {
	q := url.Values{}
	q.Set("accountType", "UNIFIED")
	q.Set("coin", c.cfg.SettleCoin)

	rb, err := c.doSigned(ctx, http.MethodGet, "/v5/account/wallet-balance", q.Encode(), nil)
	if err != nil {
		return models.AccountSummary{}, &models.AccountQueryError{Err: err}
	}

	var resp walletBalanceResponse
	if err := json.Unmarshal(rb, &resp); err != nil {
		return models.AccountSummary{}, &models.AccountQueryError{Err: fmt.Errorf("decode: %w", err)}
	}
	if resp.RetCode != 0 {
		return models.AccountSummary{}, &models.AccountQueryError{
			Err: fmt.Errorf("bybit %d: %s", resp.RetCode, resp.RetMsg)}
	}
	if len(resp.Result.List) == 0 {
		return models.AccountSummary{}, &models.AccountQueryError{Err: fmt.Errorf("empty wallet list")}
	}

	raw := resp.Result.List[0]
	equity, _ := strconv.ParseFloat(raw.TotalEquity, 64)
	margin, _ := strconv.ParseFloat(raw.TotalMarginBalance, 64)
	avail, _ := strconv.ParseFloat(raw.TotalAvailBalance, 64)
	upl, _ := strconv.ParseFloat(raw.TotalPerpUPL, 64)

	return models.AccountSummary{
		TotalEquity:        equity,
		TotalMarginBalance: margin,
		TotalAvailBalance:  avail,
		TotalPerpUPL:       upl,
	}, nil
}
