package model

import "time"

// KVストア（gorm実装）の1レコード
type KVEntry struct {
	Key       string    `gorm:"primaryKey;column:kv_key;type:varchar(255)" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}
