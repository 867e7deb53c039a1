package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
	"trade_engine/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		RequestTimeout: 5 * time.Second,
		SettleCoin:     "USDT",
	}
	cfg.Bybit.RestURL = srv.URL
	cfg.Bybit.APIKey = "test-key"
	cfg.Bybit.APISecret = "test-secret"
	return NewClient(cfg), srv
}

func TestGetLastPrice(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/tickers", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"linear",
			"list":[{"symbol":"BTCUSDT","lastPrice":"50123.5","price24hPcnt":"0.012"}]}}`))
	})

	px, err := c.GetLastPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 50123.5, px, 1e-9)
}

func TestGetLastPriceUnknownSymbol(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[]}}`))
	})

	_, err := c.GetLastPrice(context.Background(), "NOPEUSDT")
	var mde *models.MarketDataError
	require.ErrorAs(t, err, &mde)
	assert.Equal(t, "NOPEUSDT", mde.Symbol)
}

func TestGetLastPriceMalformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[{"symbol":"BTCUSDT","lastPrice":"oops"}]}}`))
	})

	_, err := c.GetLastPrice(context.Background(), "BTCUSDT")
	var mde *models.MarketDataError
	require.ErrorAs(t, err, &mde)
}

func TestGetAccountSummarySignsRequest(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-BAPI-API-KEY"))
		assert.NotEmpty(t, r.Header.Get("X-BAPI-SIGN"))
		assert.NotEmpty(t, r.Header.Get("X-BAPI-TIMESTAMP"))
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[{"accountType":"UNIFIED",
			"totalEquity":"10100.5","totalMarginBalance":"10000","totalAvailableBalance":"9900.25","totalPerpUPL":"-12.5"}]}}`))
	})

	sum, err := c.GetAccountSummary(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 10100.5, sum.TotalEquity, 1e-9)
	assert.InDelta(t, 9900.25, sum.TotalAvailBalance, 1e-9)
	assert.InDelta(t, -12.5, sum.TotalPerpUPL, 1e-9)
}

func TestGetAccountSummaryEmptyList(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[]}}`))
	})

	_, err := c.GetAccountSummary(context.Background())
	var aqe *models.AccountQueryError
	require.ErrorAs(t, err, &aqe)
}

func TestGetPositionFlatSentinel(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[]}}`))
	})

	pos, err := c.GetPosition(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, pos.Flat())
	assert.Equal(t, "BTCUSDT", pos.Symbol)
}

func TestInstrumentStatusGate(t *testing.T) {
	status := "Trading"
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/instruments-info", r.URL.Path)
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"category":"linear","list":[{"symbol":"BTCUSDT",
			"status":"` + status + `","leverageFilter":{"minLeverage":"1","maxLeverage":"100"},
			"priceFilter":{"tickSize":"0.1"},"lotSizeFilter":{"qtyStep":"0.001","minOrderQty":"0.001"}}]}}`))
	})

	code, err := c.InstrumentStatus(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	status = "PreLaunch"
	code, err = c.InstrumentStatus(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1, code, "любой статус кроме Trading блокирует сабмит")
}

func TestInstrumentStatusUnknownSymbol(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[]}}`))
	})

	code, err := c.InstrumentStatus(context.Background(), "NOPEUSDT")
	var mde *models.MarketDataError
	require.ErrorAs(t, err, &mde)
	assert.Equal(t, -1, code)
}

func TestSetLeverageNotModifiedIsOK(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":110043,"retMsg":"leverage not modified"}`))
	})

	require.NoError(t, c.SetLeverage(context.Background(), "BTCUSDT", 10))
}

func TestSetLeverageRejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":110044,"retMsg":"leverage exceeds maximum"}`))
	})

	err := c.SetLeverage(context.Background(), "BTCUSDT", 200)
	var le *models.LeverageError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 200.0, le.Requested)
}

func TestCloseOrderHalvesGivenSize(t *testing.T) {
	var got map[string]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"retCode":0,"time":1700000000000,"result":{"orderId":"oid-1","orderLinkId":""}}`))
	})

	res, err := c.CloseOrder(context.Background(), "BTCUSDT", models.SideBuy, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "oid-1", res.OrderID)
	assert.Equal(t, "Sell", got["side"])
	assert.Equal(t, "0.25", got["qty"])
	assert.Equal(t, "true", got["reduceOnly"])
}

func TestCloseOrderFullFlatten(t *testing.T) {
	var got map[string]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"orderId":"oid-2"}}`))
	})

	_, err := c.CloseOrder(context.Background(), "ETHUSDT", models.SideSell, 0)
	require.NoError(t, err)
	assert.Equal(t, "Buy", got["side"])
	assert.Equal(t, "0", got["qty"])
}

func TestUpdateCredentialsAffectsNextCall(t *testing.T) {
	var seenKeys []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seenKeys = append(seenKeys, r.Header.Get("X-BAPI-API-KEY"))
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[{"totalEquity":"1","totalMarginBalance":"1","totalAvailableBalance":"1","totalPerpUPL":"0"}]}}`))
	})

	_, err := c.GetAccountSummary(context.Background())
	require.NoError(t, err)

	c.UpdateCredentials("rotated-key", "rotated-secret")
	_, err = c.GetAccountSummary(context.Background())
	require.NoError(t, err)

	require.Len(t, seenKeys, 2)
	assert.Equal(t, "test-key", seenKeys[0])
	assert.Equal(t, "rotated-key", seenKeys[1])
}

func TestSubmitOrderExchangeReject(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":10001,"retMsg":"params error"}`))
	})

	_, err := c.SubmitOrder(context.Background(), models.OrderRequest{
		Symbol: "BTCUSDT", Side: models.SideBuy, Qty: 0.01,
		OrderType: "Market", TimeInForce: "GTC", OrderLinkID: "tok-1",
	})
	var ose *models.OrderSubmissionError
	require.ErrorAs(t, err, &ose)
}

func TestTimeoutSurfacesAsTimeoutError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[]}}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.GetLastPrice(ctx, "BTCUSDT")
	require.Error(t, err)
	var mde *models.MarketDataError
	require.ErrorAs(t, err, &mde)
	assert.ErrorIs(t, err, models.ErrTimeout)
}
