package usecase

import (
	"context"
	"fmt"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// KVストアのキー（クライアントIDを前置する）
const (
	KeyGuestCart = "cart:guest"
	KeyAuthCache = "cart:auth-cache"
	KeySelection = "checkout:selection"
)

// CartStorage はKVストア上のスナップショットと選択を型付きで読み書きする。
type CartStorage struct {
	kv    repo.KeyValueStore
	clock Clock
}

func NewCartStorage(kv repo.KeyValueStore, clock Clock) *CartStorage {
	return &CartStorage{kv: kv, clock: clock}
}

func StorageKey(clientID string, name string) string {
	return clientID + ":" + name
}

// 無ければ nil
func (s *CartStorage) LoadGuest(ctx context.Context, clientID string) (*model.PersistedSnapshot, error) {
	return s.loadSnapshot(ctx, StorageKey(clientID, KeyGuestCart))
}

func (s *CartStorage) LoadAuthCache(ctx context.Context, clientID string) (*model.PersistedSnapshot, error) {
	return s.loadSnapshot(ctx, StorageKey(clientID, KeyAuthCache))
}

// SaveCart はモードに応じたキーへ保存する。
func (s *CartStorage) SaveCart(ctx context.Context, clientID string, cart *model.CartAggregate, owner model.Identity) error {
	key := KeyGuestCart
	if cart.Mode == model.CartModeAuthenticated {
		key = KeyAuthCache
	}

	raw, err := model.EncodeSnapshot(model.NewSnapshot(cart, owner, s.clock.Now()))
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, StorageKey(clientID, key), raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *CartStorage) DeleteGuest(ctx context.Context, clientID string) error {
	return s.kv.Delete(ctx, StorageKey(clientID, KeyGuestCart))
}

// 保存されていなければ ok=false
func (s *CartStorage) LoadSelection(ctx context.Context, clientID string) ([]string, bool, error) {
	raw, ok, err := s.kv.Get(ctx, StorageKey(clientID, KeySelection))
	if err != nil || !ok {
		return nil, false, err
	}
	sel, err := model.DecodeSelection(raw)
	if err != nil {
		return nil, false, err
	}
	return sel.IDs, true, nil
}

func (s *CartStorage) SaveSelection(ctx context.Context, clientID string, ids []string) error {
	raw, err := model.EncodeSelection(ids, s.clock.Now())
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, StorageKey(clientID, KeySelection), raw)
}

func (s *CartStorage) DeleteSelection(ctx context.Context, clientID string) error {
	return s.kv.Delete(ctx, StorageKey(clientID, KeySelection))
}

func (s *CartStorage) loadSnapshot(ctx context.Context, key string) (*model.PersistedSnapshot, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	snap, err := model.DecodeSnapshot(raw)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
