package model

import (
	"encoding/json"
	"fmt"
	"time"
)

const snapshotVersion = 1

// PersistedSnapshot はKVストアに保存するカートのシリアライズ形式。
type PersistedSnapshot struct {
	Version int           `json:"v"`
	Cart    CartAggregate `json:"cart"`
	// 認証モードのみ
	OwnerUserID      string    `json:"owner_user_id,omitempty"`
	CorrelationToken string    `json:"correlation_token,omitempty"`
	SavedAt          time.Time `json:"saved_at"`
}

func NewSnapshot(cart *CartAggregate, owner Identity, now time.Time) PersistedSnapshot {
	snap := PersistedSnapshot{
		Version: snapshotVersion,
		Cart:    *cart.Clone(),
		SavedAt: now.UTC(),
	}
	if cart.Mode == CartModeAuthenticated {
		snap.OwnerUserID = owner.UserID
		snap.CorrelationToken = owner.CorrelationToken
	}
	return snap
}

func EncodeSnapshot(s PersistedSnapshot) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(b), nil
}

// DecodeSnapshot は復元後に Normalize して不変条件を保証する。
func DecodeSnapshot(raw string) (PersistedSnapshot, error) {
	var s PersistedSnapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return PersistedSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version > snapshotVersion {
		return PersistedSnapshot{}, fmt.Errorf("decode snapshot: unsupported version %d", s.Version)
	}
	s.Cart.Normalize()
	return s, nil
}

// 決済リダイレクトをまたいで保持する選択
type PersistedSelection struct {
	IDs     []string  `json:"ids"`
	SavedAt time.Time `json:"saved_at"`
}

func EncodeSelection(ids []string, now time.Time) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(PersistedSelection{IDs: ids, SavedAt: now.UTC()})
	if err != nil {
		return "", fmt.Errorf("encode selection: %w", err)
	}
	return string(b), nil
}

func DecodeSelection(raw string) (PersistedSelection, error) {
	var s PersistedSelection
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return PersistedSelection{}, fmt.Errorf("decode selection: %w", err)
	}
	return s, nil
}
