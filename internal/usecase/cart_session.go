package usecase

import (
	"sync"
	"sync/atomic"
	"time"

	"storefront/internal/domain/model"
)

// CartSession は1クライアント分のカート状態。
// cart / identity / selection は mu で守る。
type CartSession struct {
	ClientID string

	mu        sync.Mutex
	cart      *model.CartAggregate
	identity  model.Identity
	selection *model.SelectionSet

	reconciling atomic.Bool
	lastSeen    atomic.Int64
	lines       keyedMutex
}

func newCartSession(clientID string, cart *model.CartAggregate, now time.Time) *CartSession {
	if cart == nil {
		cart = model.NewCartAggregate(model.CartModeGuest)
	}
	s := &CartSession{
		ClientID:  clientID,
		cart:      cart,
		selection: model.NewSelectionSet(),
	}
	s.touch(now)
	return s
}

// Cart は現在の集約のコピー
func (s *CartSession) Cart() *model.CartAggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

func (s *CartSession) Mode() model.CartMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Mode
}

func (s *CartSession) Identity() model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *CartSession) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.LineCount
}

// Selected は選択中の明細IDをカートの表示順で返す。
func (s *CartSession) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Intersect(s.cart)
}

func (s *CartSession) authState() (model.Identity, model.CartMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.cart.Mode
}

func (s *CartSession) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *CartSession) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

// keyedMutex は明細ごとの直列化に使う。
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
