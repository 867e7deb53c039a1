package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_engine/internal/bus"
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

// fakeClient — скриптуемый клиент биржи. Считает вызовы, любую операцию
// можно переопределить на тест.
type fakeClient struct {
	mu    sync.Mutex
	calls []string

	instrument   models.Instrument
	summary      models.AccountSummary
	lastPrice    float64
	position     models.Position
	allPositions []models.Position

	setLeverageFn func(symbol string, lev float64) error
	submitFn      func(req models.OrderRequest) (*models.OrderResult, error)
	closeFn       func(symbol, side string, size float64) (*models.OrderResult, error)
	closedPnlFn   func(symbol string, startMs int64) (models.ClosedTrade, error)
	instrumentFn  func(symbol string) (models.Instrument, error)

	submitted []models.OrderRequest
	leverages []float64
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		instrument: models.Instrument{
			Symbol: "BTCUSDT", Category: "linear", Status: "Trading",
			MinLeverage: 1, MaxLeverage: 100, TickSize: 0.1, QtyStep: 0.001, MinQty: 0.001,
		},
		summary:   models.AccountSummary{TotalAvailBalance: 10000},
		lastPrice: 50000,
		position:  models.FlatPosition("BTCUSDT"),
	}
}

func (f *fakeClient) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeClient) GetLastPrice(_ context.Context, _ string) (float64, error) {
	f.record("GetLastPrice")
	return f.lastPrice, nil
}

func (f *fakeClient) GetAccountSummary(_ context.Context) (models.AccountSummary, error) {
	f.record("GetAccountSummary")
	return f.summary, nil
}

func (f *fakeClient) SetLeverage(_ context.Context, symbol string, lev float64) error {
	f.record("SetLeverage")
	f.mu.Lock()
	f.leverages = append(f.leverages, lev)
	f.mu.Unlock()
	if f.setLeverageFn != nil {
		return f.setLeverageFn(symbol, lev)
	}
	return nil
}

func (f *fakeClient) GetPosition(_ context.Context, _ string) (models.Position, error) {
	f.record("GetPosition")
	return f.position, nil
}

func (f *fakeClient) GetAllPositions(_ context.Context, _ string) ([]models.Position, error) {
	f.record("GetAllPositions")
	return f.allPositions, nil
}

func (f *fakeClient) GetInstrumentInfo(_ context.Context, symbol string) (models.Instrument, error) {
	f.record("GetInstrumentInfo")
	if f.instrumentFn != nil {
		return f.instrumentFn(symbol)
	}
	return f.instrument, nil
}

func (f *fakeClient) SubmitOrder(_ context.Context, req models.OrderRequest) (*models.OrderResult, error) {
	f.record("SubmitOrder")
	f.mu.Lock()
	f.submitted = append(f.submitted, req)
	f.mu.Unlock()
	if f.submitFn != nil {
		return f.submitFn(req)
	}
	return &models.OrderResult{OrderID: "oid-1", OrderLinkID: req.OrderLinkID}, nil
}

func (f *fakeClient) CloseOrder(_ context.Context, symbol, side string, size float64) (*models.OrderResult, error) {
	f.record("CloseOrder")
	if f.closeFn != nil {
		return f.closeFn(symbol, side, size)
	}
	return &models.OrderResult{OrderID: "oid-close", ExchangeTimeMs: 1700000000000}, nil
}

func (f *fakeClient) ClosedPnL(_ context.Context, symbol string, startMs int64) (models.ClosedTrade, error) {
	f.record("ClosedPnL")
	if f.closedPnlFn != nil {
		return f.closedPnlFn(symbol, startMs)
	}
	return models.ClosedTrade{Symbol: symbol, ClosedPnl: 1.5}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		DefaultRiskPct:  0.01,
		DefaultTPPct:    0.005,
		DefaultSLPct:    0.02,
		DefaultLeverage: 10,
		SettleCoin:      "USDT",
		RequestTimeout:  time.Second,
	}
}

func TestOpenHappyPathWithProtective(t *testing.T) {
	f := newFakeClient()
	m := NewManager(testConfig(), f)

	out, err := m.Open(context.Background(), "BTCUSDT", models.SideBuy, 0.01, true)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeAccepted, out.Status)
	require.NotNil(t, out.Result)

	require.Len(t, f.submitted, 1)
	req := f.submitted[0]
	// 10000 * 10 * 0.01 / 50000 = 0.02
	assert.InDelta(t, 0.02, req.Qty, 1e-9)
	assert.Equal(t, "Market", req.OrderType)
	assert.Equal(t, "GTC", req.TimeInForce)
	assert.Len(t, req.OrderLinkID, 32) // 16 байт hex
	assert.InDelta(t, 50000*1.005, req.TakeProfit, 1e-6)
	assert.InDelta(t, 50000*0.98, req.StopLoss, 1e-6)

	assert.Equal(t, StateOpen, m.SymbolState("BTCUSDT"))
}

func TestOpenWithoutProtectiveSkipsPositionCheck(t *testing.T) {
	f := newFakeClient()
	f.position = models.Position{Symbol: "BTCUSDT", Side: "Buy", Size: 1} // не должен смотреться
	m := NewManager(testConfig(), f)

	out, err := m.Open(context.Background(), "BTCUSDT", models.SideBuy, 0.01, false)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeAccepted, out.Status)

	req := f.submitted[0]
	assert.Zero(t, req.TakeProfit)
	assert.Zero(t, req.StopLoss)
}

func TestOpenRejectsWhenAlreadyInPosition(t *testing.T) {
	f := newFakeClient()
	f.position = models.Position{Symbol: "BTCUSDT", Side: "Buy", Size: 0.5, EntryPrice: 48000}
	m := NewManager(testConfig(), f)

	out, err := m.Open(context.Background(), "BTCUSDT", models.SideBuy, 0.01, true)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRejected, out.Status)
	assert.Equal(t, "already in position", out.Reason)
	assert.Empty(t, f.submitted, "policy reject must not submit")
	assert.Equal(t, StateIdle, m.SymbolState("BTCUSDT"))
}

func TestOpenRejectsInvalidInstrument(t *testing.T) {
	f := newFakeClient()
	f.instrument.Status = "Closed"
	m := NewManager(testConfig(), f)

	out, err := m.Open(context.Background(), "BTCUSDT", models.SideBuy, 0.01, true)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRejected, out.Status)
	assert.Empty(t, f.submitted)
}

func TestOpenClampsLeverageToInstrumentCap(t *testing.T) {
	f := newFakeClient()
	f.instrument.MaxLeverage = 25
	cfg := testConfig()
	cfg.DefaultLeverage = 50
	m := NewManager(cfg, f)

	out, err := m.Open(context.Background(), "BTCUSDT", models.SideBuy, 0.01, false)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeAccepted, out.Status)

	// зажато до капа ДО похода на биржу, второго вызова нет
	require.Equal(t, []float64{25}, f.leverages)
	// сайзинг с зажатым плечом: 10000 * 25 * 0.01 / 50000 = 0.05
	assert.InDelta(t, 0.05, f.submitted[0].Qty, 1e-9)
}

func TestOpenProceedsWhenLeverageStillRefused(t *testing.T) {
	f := newFakeClient()
	f.setLeverageFn = func(symbol string, lev float64) error {
		return &models.LeverageError{Symbol: symbol, Requested: lev, Err: fmt.Errorf("nope")}
	}
	m := NewManager(testConfig(), f)

	out, err := m.Open(context.Background(), "BTCUSDT", models.SideBuy, 0.01, false)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAccepted, out.Status)
}

func TestOpenSurfacesSubmitError(t *testing.T) {
	f := newFakeClient()
	f.submitFn = func(req models.OrderRequest) (*models.OrderResult, error) {
		return nil, &models.OrderSubmissionError{Symbol: req.Symbol, Err: fmt.Errorf("502")}
	}
	m := NewManager(testConfig(), f)

	_, err := m.Open(context.Background(), "BTCUSDT", models.SideBuy, 0.01, false)
	var ose *models.OrderSubmissionError
	require.ErrorAs(t, err, &ose)
	assert.Equal(t, StateIdle, m.SymbolState("BTCUSDT"))
}

func TestBusyGuardRejectsSecondOpenWithoutNetworkCalls(t *testing.T) {
	f := newFakeClient()
	started := make(chan struct{})
	unblock := make(chan struct{})
	f.instrumentFn = func(string) (models.Instrument, error) {
		close(started)
		<-unblock
		return f.instrument, nil
	}
	m := NewManager(testConfig(), f)

	go func() {
		_, _ = m.Open(context.Background(), "BTCUSDT", models.SideBuy, 0.01, false)
	}()
	<-started

	before := f.callCount()
	_, err := m.Open(context.Background(), "BTCUSDT", models.SideBuy, 0.01, false)
	assert.ErrorIs(t, err, models.ErrSymbolBusy)
	assert.Equal(t, before, f.callCount(), "busy reject must not hit the network")

	_, err = m.Close(context.Background(), "BTCUSDT", models.SideBuy, 0)
	assert.ErrorIs(t, err, models.ErrSymbolBusy)

	close(unblock)
}

func TestDifferentSymbolsRunIndependently(t *testing.T) {
	f := newFakeClient()
	var inFlight atomic.Int32
	var peak atomic.Int32
	f.instrumentFn = func(symbol string) (models.Instrument, error) {
		n := inFlight.Add(1)
		if n > peak.Load() {
			peak.Store(n)
		}
		time.Sleep(50 * time.Millisecond)
		inFlight.Add(-1)
		inst := f.instrument
		inst.Symbol = symbol
		return inst, nil
	}
	m := NewManager(testConfig(), f)

	var wg sync.WaitGroup
	for _, sym := range []string{"BTCUSDT", "ETHUSDT"} {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			_, err := m.Open(context.Background(), sym, models.SideBuy, 0.01, false)
			assert.NoError(t, err)
		}(sym)
	}
	wg.Wait()
	assert.Equal(t, int32(2), peak.Load(), "symbols must not serialize against each other")
}

func TestCloseFetchesTradeResultAsync(t *testing.T) {
	f := newFakeClient()
	got := make(chan int64, 1)
	f.closedPnlFn = func(symbol string, startMs int64) (models.ClosedTrade, error) {
		got <- startMs
		return models.ClosedTrade{Symbol: symbol}, nil
	}
	m := NewManager(testConfig(), f)

	res, err := m.Close(context.Background(), "BTCUSDT", models.SideBuy, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "oid-close", res.OrderID)

	select {
	case startMs := <-got:
		assert.Equal(t, int64(1700000000000), startMs)
	case <-time.After(time.Second):
		t.Fatal("closed pnl follow-up not fired")
	}
	assert.Equal(t, StateIdle, m.SymbolState("BTCUSDT"))
}

func TestOpenRoundsProtectiveLevelsToTick(t *testing.T) {
	f := newFakeClient()
	f.instrument.TickSize = 0.5
	f.lastPrice = 50001 // tp=50251.005, sl=49000.98 — мимо сетки
	m := NewManager(testConfig(), f)

	out, err := m.Open(context.Background(), "BTCUSDT", models.SideBuy, 0.01, true)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeAccepted, out.Status)

	req := f.submitted[0]
	// наружу от входа: tp вверх, sl вниз
	assert.InDelta(t, 50251.5, req.TakeProfit, 1e-9)
	assert.InDelta(t, 49000.5, req.StopLoss, 1e-9)
}

func TestRefreshPositionsRecoversOpenSymbols(t *testing.T) {
	f := newFakeClient()
	f.allPositions = []models.Position{
		{Symbol: "BTCUSDT", Side: "Buy", Size: 0.3, EntryPrice: 48000},
		models.FlatPosition("ETHUSDT"),
	}
	m := NewManager(testConfig(), f)

	positions, err := m.RefreshPositions(context.Background())
	require.NoError(t, err)
	assert.Len(t, positions, 2)

	assert.Equal(t, StateOpen, m.SymbolState("BTCUSDT"))
	assert.Equal(t, StateIdle, m.SymbolState("ETHUSDT"), "flat позиция не считается открытой")
}

func TestWatcherRunStopsOnCancel(t *testing.T) {
	f := newFakeClient()
	f.allPositions = []models.Position{{Symbol: "BTCUSDT", Side: "Buy", Size: 0.1}}
	m := NewManager(testConfig(), f)
	b := bus.New(8)
	w := NewWatcher(m, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	// подписка внутри Run, поэтому шлём до тех пор, пока тик не дойдёт
	require.Eventually(t, func() bool {
		b.Publish(models.PriceTick{Symbol: "BTCUSDT", Price: 50100, At: time.Now()})
		px, ok := w.LastPrice("BTCUSDT")
		return ok && px == 50100
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop on cancel")
	}

	// warm start успел отметить открытую позицию
	assert.Equal(t, StateOpen, m.SymbolState("BTCUSDT"))
}

func TestCloseErrorSurfaces(t *testing.T) {
	f := newFakeClient()
	f.closeFn = func(symbol, side string, size float64) (*models.OrderResult, error) {
		return nil, &models.CloseOrderError{Symbol: symbol, Err: fmt.Errorf("rejected")}
	}
	m := NewManager(testConfig(), f)

	_, err := m.Close(context.Background(), "BTCUSDT", models.SideBuy, 0)
	var coe *models.CloseOrderError
	require.ErrorAs(t, err, &coe)
	assert.Equal(t, StateIdle, m.SymbolState("BTCUSDT"))
}
