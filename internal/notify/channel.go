// Package notify はカート件数の変化を、カート集約を共有しない画面部品（ヘッダーのバッジなど）へ配信する。
package notify

import (
	"sync"

	"go.uber.org/zap"
)

const defaultBuffer = 8

// CountEvent はあるクライアントのカート件数。
type CountEvent struct {
	ClientID string `json:"client_id"`
	Count    int    `json:"count"`
}

// Channel は CountEvent のpub/sub。
// 配信は at-most-once で、受信側のバッファが埋まっていれば捨てる。
type Channel struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
	logger *zap.Logger
}

func NewChannel(logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		subs:   make(map[uint64]*Subscription),
		logger: logger,
	}
}

// Subscription は購読1件。解除は購読者自身が行う。
type Subscription struct {
	C <-chan CountEvent

	id       uint64
	clientID string
	ch       chan CountEvent
	owner    *Channel
	once     sync.Once
}

// Subscribe は clientID 宛のイベントを購読する（空文字なら全件）。
func (c *Channel) Subscribe(clientID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan CountEvent, buffer)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	sub := &Subscription{
		C:        ch,
		id:       c.nextID,
		clientID: clientID,
		ch:       ch,
		owner:    c,
	}
	if c.closed {
		sub.once.Do(func() { close(ch) })
		return sub
	}
	c.subs[sub.id] = sub
	return sub
}

// Publish は購読者へ送る。ブロックしない。
func (c *Channel) Publish(ev CountEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	for _, sub := range c.subs {
		if sub.clientID != "" && sub.clientID != ev.ClientID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			c.logger.Debug("count event dropped",
				zap.String("client_id", ev.ClientID),
				zap.Int("count", ev.Count),
				zap.Uint64("subscription", sub.id),
			)
		}
	}
}

// Subscribers は現在の購読数。
func (c *Channel) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Close は全購読を終了する。以降の Publish は無視。
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for id, sub := range c.subs {
		delete(c.subs, id)
		sub.closeLocked()
	}
}

// Unsubscribe は購読を解除して C を閉じる。何度呼んでもよい。
func (s *Subscription) Unsubscribe() {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()

	delete(s.owner.subs, s.id)
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	s.once.Do(func() { close(s.ch) })
}
