package service

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
	"trade_engine/pkg/logger"
)

// Client держит два долгоживущих сокета Bybit V5: публичный (tickers)
// и приватный (position). Оба переподключаются сами с ограниченным
// экспоненциальным бэкоффом и после реконнекта восстанавливают ВЕСЬ
// накопленный набор подписок, не только последнюю.
type Client struct {
	cfg *config.Config
	bus *bus.Bus

	dialer *websocket.Dialer

	mu       sync.Mutex
	symbols  map[string]struct{} // подписанные тикеры
	creds    models.Credentials
	credGen  uint64 // растёт на каждой ротации
	rotating bool   // ключи сменили, обрыв приватного сокета — ожидаемый

	// живые соединения; nil когда (пере)подключаемся
	pubConn  *connHandle
	privConn *connHandle

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// connHandle — одно соединение c сериализованными записями
// (gorilla разрешает только одного писателя).
type connHandle struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (h *connHandle) writeJSON(v any) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return h.conn.WriteJSON(v)
}

func (h *connHandle) close() { _ = h.conn.Close() }

func NewClient(cfg *config.Config, b *bus.Bus) *Client {
	return &Client{
		cfg:     cfg,
		bus:     b,
		dialer:  &websocket.Dialer{},
		symbols: make(map[string]struct{}),
		creds: models.Credentials{
			APIKey:    cfg.Bybit.APIKey,
			APISecret: cfg.Bybit.APISecret,
		},
	}
}

// Start поднимает оба луп-а. Повторный Start без Stop — no-op.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.runLoop(ctx, false)
	}()
	go func() {
		defer c.wg.Done()
		c.runLoop(ctx, true)
	}()
}

func (c *Client) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	pub, priv := c.pubConn, c.privConn
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if pub != nil {
		pub.close()
	}
	if priv != nil {
		priv.close()
	}
	c.wg.Wait()
}

// Subscribe — идемпотентная подписка на тикер. Дубликат — no-op.
func (c *Client) Subscribe(symbol string) {
	c.mu.Lock()
	if _, ok := c.symbols[symbol]; ok {
		c.mu.Unlock()
		return
	}
	c.symbols[symbol] = struct{}{}
	h := c.pubConn
	c.mu.Unlock()

	if h != nil {
		if err := h.writeJSON(subscribeOp([]string{tickerTopic(symbol)})); err != nil {
			logger.Error("ws subscribe %s: %v", symbol, err)
			// соединение умерло — read loop заметит и переподпишет всё
		}
	}
}

// Unsubscribe — идемпотентно; отсутствующий символ — no-op.
func (c *Client) Unsubscribe(symbol string) {
	c.mu.Lock()
	if _, ok := c.symbols[symbol]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.symbols, symbol)
	h := c.pubConn
	c.mu.Unlock()

	if h != nil {
		if err := h.writeJSON(unsubscribeOp([]string{tickerTopic(symbol)})); err != nil {
			logger.Error("ws unsubscribe %s: %v", symbol, err)
		}
	}
}

// Subscribed — снапшот активных подписок (для тестов и /status).
func (c *Client) Subscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.symbols))
	for s := range c.symbols {
		out = append(out, s)
	}
	return out
}

// UpdateCredentials рвёт приватный сокет: луп пересоздаст его уже с новой
// парой и переподпишется. Сокет со старыми ключами молча жить не остаётся.
func (c *Client) UpdateCredentials(apiKey, apiSecret string) {
	c.mu.Lock()
	c.creds = models.Credentials{APIKey: apiKey, APISecret: apiSecret}
	c.credGen++
	priv := c.privConn
	if priv != nil {
		c.rotating = true
	}
	c.mu.Unlock()

	if priv != nil {
		priv.close()
	}
}

func (c *Client) credentials() (models.Credentials, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds, c.credGen
}

// publishPrivConn выставляет приватное соединение, если ключи не менялись
// с момента auth. Ротация в окне dial..publish оставила бы сокет со старой
// парой жить незамеченным — такой сокет не публикуем, вызывающий его
// закрывает и переподключается.
func (c *Client) publishPrivConn(h *connHandle, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.credGen != gen {
		return false
	}
	c.privConn = h
	return true
}

func (c *Client) clearConn(private bool) {
	c.mu.Lock()
	if private {
		c.privConn = nil
	} else {
		c.pubConn = nil
	}
	c.mu.Unlock()
}
