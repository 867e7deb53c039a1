package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"trade_engine/internal/models"
	"trade_engine/pkg/logger"
)

// Ротация догнала соединение между dial и публикацией хэндла:
// не ошибка транспорта, переподключаемся сразу и без счётчика.
var errCredsRotated = errors.New("credentials rotated during connect")

func tickerTopic(symbol string) string { return "tickers." + symbol }

func subscribeOp(topics []string) map[string]any {
	return map[string]any{"op": "subscribe", "args": topics}
}

func unsubscribeOp(topics []string) map[string]any {
	return map[string]any{"op": "unsubscribe", "args": topics}
}

// runLoop — connect/subscribe/read до отмены контекста. Любой обрыв —
// внутренний reconnect; подписчикам транспортные ошибки не видны,
// наружу уходит только терминальный FeedUnavailable после исчерпания
// попыток подряд.
func (c *Client) runLoop(ctx context.Context, private bool) {
	attempts := 0
	var lastErr error

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if attempts >= c.cfg.WSMaxReconnects {
			logger.Error("ws: reconnect attempts exhausted (%d), feed down", attempts)
			c.bus.Publish(models.FeedUnavailable{
				Attempts: attempts,
				LastErr:  fmt.Sprintf("%v", lastErr),
				At:       time.Now(),
			})
			return
		}
		if attempts > 0 {
			delay := backoff(c.cfg.WSReconnectBase, c.cfg.WSReconnectMax, attempts)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}

		err := c.runOnce(ctx, private, func() { attempts = 0 })
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errCredsRotated) {
			logger.Info("ws: private socket re-dialing with rotated credentials")
			continue
		}
		if err != nil {
			lastErr = err
			attempts++
			logger.Error("ws: connection dropped (private=%v, attempt %d): %v", private, attempts, err)
			continue
		}
	}
}

// runOnce — одна жизнь соединения: dial, auth (для приватного),
// полная переподписка, read loop. onUp дёргается после успешного
// подъёма — сбрасывает счётчик подряд идущих неудач.
func (c *Client) runOnce(ctx context.Context, private bool, onUp func()) error {
	url := c.cfg.Bybit.WSPublic
	if private {
		url = c.cfg.Bybit.WSPrivate
	}

	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return &models.ConnectionError{Err: err}
	}
	h := &connHandle{conn: conn}
	defer func() {
		c.clearConn(private)
		h.close()
	}()

	if private {
		creds, gen := c.credentials()
		if err := c.authenticate(h, creds); err != nil {
			return err
		}
		if err := h.writeJSON(subscribeOp([]string{"position"})); err != nil {
			return &models.ConnectionError{Err: err}
		}
		if !c.publishPrivConn(h, gen) {
			// ключи сменились в окне dial..auth: этот сокет уже со
			// старой парой, живым не оставляем
			return errCredsRotated
		}
	} else {
		// публикуем соединение и снимаем снапшот топиков атомарно,
		// иначе параллельный Subscribe может провалиться в щель
		c.mu.Lock()
		c.pubConn = h
		topics := make([]string, 0, len(c.symbols))
		for s := range c.symbols {
			topics = append(topics, tickerTopic(s))
		}
		c.mu.Unlock()

		// восстанавливаем ВЕСЬ набор тикеров, накопленный к этому моменту
		if len(topics) > 0 {
			if err := h.writeJSON(subscribeOp(topics)); err != nil {
				return &models.ConnectionError{Err: err}
			}
		}
	}

	onUp()

	// keepalive: app-level ping, иначе биржа рвёт соединение
	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go func() {
		t := time.NewTicker(c.cfg.WSPingInterval)
		defer t.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-t.C:
				if err := h.writeJSON(map[string]string{"op": "ping"}); err != nil {
					return
				}
			}
		}
	}()

	for {
		// liveness: нет ни одного кадра (включая pong) за WSReadTimeout — реконнект
		if c.cfg.WSReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.cfg.WSReadTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || (private && c.rotationRequested()) {
				return nil
			}
			return &models.ConnectionError{Err: err}
		}
		c.handleFrame(msg, private)
	}
}

// rotationRequested — сокет закрыли мы сами при смене ключей: приватный
// луп пересоздаёт соединение сразу, без счётчика ошибок и бэкоффа.
func (c *Client) rotationRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.rotating
	c.rotating = false
	return was
}

// authenticate — Bybit V5: sign("GET/realtime" + expires).
func (c *Client) authenticate(h *connHandle, creds models.Credentials) error {
	if !creds.Valid() {
		return &models.ConnectionError{Err: fmt.Errorf("no credentials for private stream")}
	}

	expires := time.Now().Add(10 * time.Second).UnixMilli()
	mac := hmac.New(sha256.New, []byte(creds.APISecret))
	fmt.Fprintf(mac, "GET/realtime%d", expires)
	signature := hex.EncodeToString(mac.Sum(nil))

	err := h.writeJSON(map[string]any{
		"op":   "auth",
		"args": []any{creds.APIKey, expires, signature},
	})
	if err != nil {
		return &models.ConnectionError{Err: fmt.Errorf("auth: %w", err)}
	}
	return nil
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if max > 0 && d >= max {
			return max
		}
	}
	if max > 0 && d > max {
		return max
	}
	return d
}
