package repository

import "context"

// 同期的に読み書きできる key→string ストア。
type KeyValueStore interface {
	// 無ければ ok=false
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
