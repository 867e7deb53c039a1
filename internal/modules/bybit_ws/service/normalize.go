package service

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"trade_engine/internal/models"
	"trade_engine/pkg/logger"
)

type tickerFrame struct {
	Topic string `json:"topic"`
	Data  struct {
		Symbol       string `json:"symbol"`
		LastPrice    string `json:"lastPrice"`
		Price24hPcnt string `json:"price24hPcnt"`
	} `json:"data"`
}

type positionFrame struct {
	Topic string `json:"topic"`
	Data  []struct {
		Symbol string `json:"symbol"`
		Side   string `json:"side"`
		Size   string `json:"size"`
	} `json:"data"`
}

// handleFrame нормализует кадр и публикует событие в шину. Битые кадры
// дропаем с логом — они никогда не валят соединение.
func (c *Client) handleFrame(msg []byte, private bool) {
	if private {
		c.handlePosition(msg)
		return
	}
	c.handleTicker(msg)
}

func (c *Client) handleTicker(msg []byte) {
	var frame tickerFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		logger.Error("ws: malformed public frame dropped: %v", err)
		return
	}
	if !strings.HasPrefix(frame.Topic, "tickers.") {
		// служебные ответы (subscribe ack, pong) — не события
		return
	}

	symbol := strings.TrimPrefix(frame.Topic, "tickers.")
	if frame.Data.Symbol != "" {
		symbol = frame.Data.Symbol
	}

	px, err := strconv.ParseFloat(frame.Data.LastPrice, 64)
	if err != nil || px <= 0 {
		logger.Error("ws: bad lastPrice %q for %s, frame dropped", frame.Data.LastPrice, symbol)
		return
	}

	var pct float64
	if frame.Data.Price24hPcnt != "" {
		if v, err := strconv.ParseFloat(frame.Data.Price24hPcnt, 64); err == nil {
			pct = v * 100.0
		}
	}

	c.bus.Publish(models.PriceTick{
		Symbol: symbol,
		Price:  px,
		Pct24h: pct,
		At:     time.Now(),
	})
}

func (c *Client) handlePosition(msg []byte) {
	var frame positionFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		logger.Error("ws: malformed private frame dropped: %v", err)
		return
	}
	if frame.Topic != "position" {
		return
	}

	now := time.Now()
	for _, d := range frame.Data {
		size, _ := strconv.ParseFloat(d.Size, 64)
		if d.Side != "" && size != 0 {
			continue
		}
		// Позиция ушла в ноль. Точного времени входа стрим не даёт,
		// оцениваем как now - lookback.
		c.bus.Publish(models.PositionClosed{
			Symbol:    d.Symbol,
			EnteredAt: now.Add(-c.cfg.PositionLookback),
			At:        now,
		})
	}
}
