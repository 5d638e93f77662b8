package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain/model"
)

// SessionRegistry はクライアントIDごとの CartSession を保持し、
// 一定時間アクセスの無いものを破棄する。
type SessionRegistry struct {
	storage *CartStorage
	clock   Clock
	idleTTL time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*CartSession

	stop      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewSessionRegistry(storage *CartStorage, clock Clock, idleTTL time.Duration, logger *zap.Logger) *SessionRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRegistry{
		storage:  storage,
		clock:    clock,
		idleTTL:  idleTTL,
		logger:   logger,
		sessions: make(map[string]*CartSession),
		stop:     make(chan struct{}),
	}
}

// Open は既存セッションを返すか、ゲストのスナップショットから作る。
func (r *SessionRegistry) Open(ctx context.Context, clientID string) *CartSession {
	now := r.clock.Now()

	r.mu.Lock()
	if s, ok := r.sessions[clientID]; ok {
		r.mu.Unlock()
		s.touch(now)
		return s
	}
	r.mu.Unlock()

	cart := r.restoreGuest(ctx, clientID)

	r.mu.Lock()
	defer r.mu.Unlock()
	// 読み込み中に別リクエストが作っていればそちらを使う
	if s, ok := r.sessions[clientID]; ok {
		s.touch(now)
		return s
	}
	s := newCartSession(clientID, cart, now)
	r.sessions[clientID] = s
	return s
}

// Lookup は作成せずに探す。
func (r *SessionRegistry) Lookup(clientID string) (*CartSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[clientID]
	return s, ok
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Start は掃除用のgoroutineを起動する。
func (r *SessionRegistry) Start() {
	if r.idleTTL <= 0 {
		return
	}
	r.startOnce.Do(func() {
		interval := r.idleTTL / 2
		if interval < time.Second {
			interval = time.Second
		}
		r.wg.Add(1)
		go r.janitor(interval)
	})
}

func (r *SessionRegistry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
}

// EvictIdle は idleTTL を過ぎたセッションを消し、件数を返す。
// 永続化は各変更時に済んでいるのでメモリから外すだけ。
func (r *SessionRegistry) EvictIdle() int {
	if r.idleTTL <= 0 {
		return 0
	}
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.idleSince(now) >= r.idleTTL {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

func (r *SessionRegistry) janitor(interval time.Duration) {
	defer r.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
			if n := r.EvictIdle(); n > 0 {
				r.logger.Debug("evicted idle cart sessions", zap.Int("count", n))
			}
		}
	}
}

func (r *SessionRegistry) restoreGuest(ctx context.Context, clientID string) *model.CartAggregate {
	snap, err := r.storage.LoadGuest(ctx, clientID)
	if err != nil {
		r.logger.Warn("guest snapshot unreadable, starting empty",
			zap.String("client_id", clientID), zap.Error(err))
		return nil
	}
	if snap == nil {
		return nil
	}
	cart := snap.Cart.Clone()
	cart.Mode = model.CartModeGuest
	return cart
}
