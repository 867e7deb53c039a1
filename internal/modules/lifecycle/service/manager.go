package service

import (
	"context"
	"sync"

	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
)

// AccountClient — то, что лайфциклу нужно от REST-клиента биржи.
type AccountClient interface {
	GetLastPrice(ctx context.Context, symbol string) (float64, error)
	GetAccountSummary(ctx context.Context) (models.AccountSummary, error)
	SetLeverage(ctx context.Context, symbol string, leverage float64) error
	GetPosition(ctx context.Context, symbol string) (models.Position, error)
	GetAllPositions(ctx context.Context, settleCoin string) ([]models.Position, error)
	GetInstrumentInfo(ctx context.Context, symbol string) (models.Instrument, error)
	SubmitOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error)
	CloseOrder(ctx context.Context, symbol, side string, size float64) (*models.OrderResult, error)
	ClosedPnL(ctx context.Context, symbol string, startTimeMs int64) (models.ClosedTrade, error)
}

// State — фаза жизненного цикла по символу.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSizing
	StateSubmitting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateValidating:
		return "Validating"
	case StateSizing:
		return "Sizing"
	case StateSubmitting:
		return "Submitting"
	case StateOpen:
		return "Open"
	case StateClosing:
		return "Closing"
	default:
		return "Unknown"
	}
}

type slot struct {
	state    State
	inFlight bool
}

// Manager — оркестратор open/close. На символ — один слот исполнения:
// второй конкурентный вызов получает ErrSymbolBusy сразу, без сети.
// Разные символы работают независимо.
type Manager struct {
	cfg    *config.Config
	client AccountClient

	mu    sync.Mutex
	slots map[string]*slot
}

func NewManager(cfg *config.Config, client AccountClient) *Manager {
	return &Manager{
		cfg:    cfg,
		client: client,
		slots:  make(map[string]*slot),
	}
}

// acquire занимает слот исполнения символа. Очереди нет намеренно:
// конкурирующий триггер должен отвалиться, а не выстроиться за первым.
func (m *Manager) acquire(symbol string, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[symbol]
	if !ok {
		s = &slot{}
		m.slots[symbol] = s
	}
	if s.inFlight {
		return models.ErrSymbolBusy
	}
	s.inFlight = true
	s.state = st
	return nil
}

func (m *Manager) transition(symbol string, st State) {
	m.mu.Lock()
	if s, ok := m.slots[symbol]; ok {
		s.state = st
	}
	m.mu.Unlock()
}

// release отпускает слот и фиксирует терминальное состояние фазы.
func (m *Manager) release(symbol string, st State) {
	m.mu.Lock()
	if s, ok := m.slots[symbol]; ok {
		s.state = st
		s.inFlight = false
	}
	m.mu.Unlock()
}

// RefreshPositions — восстановление после рестарта: биржа помнит открытые
// позиции, мы — нет. Не-flat символы переводим в Open, чтобы SymbolState
// не врал до первого вызова по символу.
func (m *Manager) RefreshPositions(ctx context.Context) ([]models.Position, error) {
	positions, err := m.client.GetAllPositions(ctx, m.cfg.SettleCoin)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	for _, p := range positions {
		if p.Flat() {
			continue
		}
		s, ok := m.slots[p.Symbol]
		if !ok {
			s = &slot{}
			m.slots[p.Symbol] = s
		}
		if !s.inFlight {
			s.state = StateOpen
		}
	}
	m.mu.Unlock()
	return positions, nil
}

// SymbolState — текущее состояние символа (Idle если не видели).
func (m *Manager) SymbolState(symbol string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[symbol]; ok {
		return s.state
	}
	return StateIdle
}
