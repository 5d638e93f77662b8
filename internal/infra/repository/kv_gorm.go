package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type KVGormRepository struct {
	db *gorm.DB
}

// DI
func NewKVGormRepository(db *gorm.DB) *KVGormRepository {
	return &KVGormRepository{db: db}
}

// kv_entries を作成
func (r *KVGormRepository) Migrate() error {
	return r.db.AutoMigrate(&model.KVEntry{})
}

func (r *KVGormRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var e model.KVEntry

	err := r.db.WithContext(ctx).
		Where("kv_key = ?", key).
		First(&e).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.Value, true, nil
}

// 既存キーは上書き
func (r *KVGormRepository) Set(ctx context.Context, key string, value string) error {
	e := model.KVEntry{Key: key, Value: value, UpdatedAt: time.Now()}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kv_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&e).Error
}

// 無いキーの削除はエラーにしない
func (r *KVGormRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).
		Where("kv_key = ?", key).
		Delete(&model.KVEntry{}).Error
}

func (r *KVGormRepository) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	if err := r.db.WithContext(ctx).
		Model(&model.KVEntry{}).
		Where("kv_key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Order("kv_key asc").
		Pluck("kv_key", &keys).Error; err != nil {
		return []string{}, err
	}
	return keys, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

var _ repo.KeyValueStore = (*KVGormRepository)(nil)
