package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
)

const recvWindow = 5000

// Client — подписанный доступ к приватному REST Bybit V5.
// Ключи меняются целиком через UpdateCredentials (copy-on-rotate):
// запросы в полёте доживают со старой парой, новые берут новую.
type Client struct {
	cfg     *config.Config
	http    *http.Client
	baseURL string

	credMu sync.RWMutex
	creds  models.Credentials
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		baseURL: cfg.Bybit.RestURL,
		creds: models.Credentials{
			APIKey:    cfg.Bybit.APIKey,
			APISecret: cfg.Bybit.APISecret,
		},
	}
}

// UpdateCredentials — атомарная ротация ключей для всех последующих вызовов.
func (c *Client) UpdateCredentials(apiKey, apiSecret string) {
	c.credMu.Lock()
	c.creds = models.Credentials{APIKey: apiKey, APISecret: apiSecret}
	c.credMu.Unlock()
}

func (c *Client) credentials() models.Credentials {
	c.credMu.RLock()
	defer c.credMu.RUnlock()
	return c.creds
}

// sign — HMAC-SHA256(timestamp + apiKey + recvWindow + params), hex.
func sign(secret string, ts int64, apiKey, params string) string {
	msg := strconv.FormatInt(ts, 10) + apiKey + strconv.Itoa(recvWindow) + params
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(msg))
	return hex.EncodeToString(h.Sum(nil))
}

// doSigned шлёт подписанный запрос. Для GET подписываем query string,
// для POST — тело целиком.
func (c *Client) doSigned(ctx context.Context, method, path, query string, body []byte) ([]byte, error) {
	creds := c.credentials()
	ts := time.Now().UnixMilli()

	params := query
	if method == http.MethodPost {
		params = string(body)
	}

	url := c.baseURL + path
	if query != "" {
		url += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-BAPI-API-KEY", creds.APIKey)
	req.Header.Set("X-BAPI-SIGN", sign(creds.APISecret, ts, creds.APIKey, params))
	req.Header.Set("X-BAPI-TIMESTAMP", strconv.FormatInt(ts, 10))
	req.Header.Set("X-BAPI-RECV-WINDOW", strconv.Itoa(recvWindow))
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%s %s: %w", method, path, models.ErrTimeout)
		}
		return nil, err
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(rb))
	}
	return rb, nil
}

// doPublic — то же без подписи (маркет-дата).
func (c *Client) doPublic(ctx context.Context, path, query string) ([]byte, error) {
	url := c.baseURL + path
	if query != "" {
		url += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("GET %s: %w", path, models.ErrTimeout)
		}
		return nil, err
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(rb))
	}
	return rb, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
