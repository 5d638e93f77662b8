package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	repo "storefront/internal/repository"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "storefront:"

// Redis上のKVストア（複数インスタンスで共有する場合）
type KVRedisRepository struct {
	client    *redis.Client
	keyPrefix string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewKVRedisRepository(cfg RedisConfig) (*KVRedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewKVRedisRepositoryWithClient(client, ""), nil
}

func NewKVRedisRepositoryWithClient(client *redis.Client, keyPrefix string) *KVRedisRepository {
	if keyPrefix == "" {
		keyPrefix = defaultRedisKeyPrefix
	}
	return &KVRedisRepository{client: client, keyPrefix: keyPrefix}
}

func (r *KVRedisRepository) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

// 期限なしで保存
func (r *KVRedisRepository) Set(ctx context.Context, key string, value string) error {
	if err := r.client.Set(ctx, r.keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *KVRedisRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// SCANで列挙（KEYSは使わない）
func (r *KVRedisRepository) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	iter := r.client.Scan(ctx, 0, r.keyPrefix+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return []string{}, fmt.Errorf("redis scan: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *KVRedisRepository) Close() error {
	return r.client.Close()
}

var _ repo.KeyValueStore = (*KVRedisRepository)(nil)
