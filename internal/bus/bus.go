package bus

import (
	"sync"
	"sync/atomic"

	"trade_engine/pkg/logger"
)

// Event — одно из типизированных событий models:
// PriceTick, PositionClosed, FeedUnavailable.
type Event any

// Subscription — хэндл подписчика. Events читаем до Cancel,
// после Cancel канал закрывается.
type Subscription struct {
	id     int64
	ch     chan Event
	cancel func()
	once   sync.Once

	dropped atomic.Int64
}

func (s *Subscription) Events() <-chan Event { return s.ch }

// Dropped — сколько событий потерял этот подписчик из-за забитой очереди.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Bus раздаёт события подписчикам. Медленный подписчик теряет события
// (очередь фиксированная, без бэкпрешера) — фид-луп никогда не блокируем.
type Bus struct {
	mu      sync.RWMutex
	nextID  int64
	subs    map[int64]*Subscription
	bufSize int
}

func New(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Bus{
		subs:    make(map[int64]*Subscription),
		bufSize: bufSize,
	}
}

func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	sub := &Subscription{
		id: id,
		ch: make(chan Event, b.bufSize),
	}
	sub.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; !ok {
			return
		}
		delete(b.subs, id)
		close(sub.ch)
	}
	b.subs[id] = sub
	return sub
}

func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			// очередь забита — дропаем и считаем
			n := sub.dropped.Add(1)
			if n == 1 || n%100 == 0 {
				logger.Error("bus: subscriber %d slow, dropped %d events", sub.id, n)
			}
		}
	}
}

// Subscribers — количество активных подписок.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
