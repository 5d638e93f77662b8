package repository

import (
	"fmt"

	"storefront/internal/config"
	"storefront/internal/infra/db"
	repo "storefront/internal/repository"
)

// OpenKVStore は KV_DRIVER に応じたKVストアと後始末を返す。
func OpenKVStore(cfg config.Config) (repo.KeyValueStore, func() error, error) {
	switch cfg.KVDriver {
	case config.KVDriverMemory:
		return NewKVMemoryRepository(), func() error { return nil }, nil

	case config.KVDriverRedis:
		r, err := NewKVRedisRepository(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil

	case config.KVDriverPostgres, config.KVDriverSQLite:
		gormDB, err := db.Connect(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		r := NewKVGormRepository(gormDB)
		if err := r.Migrate(); err != nil {
			return nil, nil, fmt.Errorf("migrate kv_entries: %w", err)
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			return nil, nil, err
		}
		return r, sqlDB.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown KV_DRIVER %q", cfg.KVDriver)
	}
}
