package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	KVDriverPostgres = "postgres"
	KVDriverSQLite   = "sqlite"
	KVDriverRedis    = "redis"
	KVDriverMemory   = "memory"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	CommerceAPIURL     string        // リモートのコマースAPI
	CommerceAPITimeout time.Duration // タイムアウトはトランスポート任せ

	KVDriver string // postgres/sqlite/redis/memory

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string // 識別トークンの署名シークレット

	GoEnv    string // dev/prod
	LogLevel string
	FEURL    string // フロントURL（CORSなどで使う）

	SessionIdleTTL time.Duration // 使われていないセッションを破棄するまで
	// 同一明細への変更を直列化する（既定は後勝ち）
	SerializeLineMutations bool
}

// Loadは環境変数
func Load() (Config, error) {
	cfg, err := LoadStore()
	if err != nil {
		return Config{}, err
	}

	cfg.Port = getenv("PORT", "8080")
	cfg.CommerceAPIURL = os.Getenv("COMMERCE_API_URL")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.FEURL = os.Getenv("FE_URL")

	if cfg.CommerceAPITimeout, err = durationOr("COMMERCE_API_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SessionIdleTTL, err = durationOr("SESSION_IDLE_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.SerializeLineMutations, err = boolOr("CART_SERIALIZE_LINE_MUTATIONS", false); err != nil {
		return Config{}, err
	}

	//必須チェック
	if cfg.CommerceAPIURL == "" {
		return Config{}, fmt.Errorf("COMMERCE_API_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// LoadStore はKVストアとログの設定だけを読む（cartctl用）。
func LoadStore() (Config, error) {
	cfg := Config{
		KVDriver: getenv("KV_DRIVER", KVDriverPostgres),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  os.Getenv("POSTGRES_SSLMODE"),

		SQLitePath: os.Getenv("SQLITE_PATH"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		GoEnv:    getenv("GO_ENV", "dev"),
		LogLevel: getenv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RedisDB, err = intOr("REDIS_DB", 0); err != nil {
		return Config{}, err
	}

	switch cfg.KVDriver {
	case KVDriverPostgres:
		if cfg.PostgresPort, err = mustAtoi("POSTGRES_PORT"); err != nil {
			return Config{}, err
		}
		if cfg.PostgresUser == "" {
			return Config{}, fmt.Errorf("POSTGRES_USER is required")
		}
		if cfg.PostgresPassword == "" {
			return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
		}
		if cfg.PostgresDB == "" {
			return Config{}, fmt.Errorf("POSTGRES_DB is required")
		}
	case KVDriverSQLite, KVDriverRedis, KVDriverMemory:
	default:
		return Config{}, fmt.Errorf("KV_DRIVER must be one of postgres/sqlite/redis/memory: %q", cfg.KVDriver)
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.GoEnv == "prod" || c.GoEnv == "production"
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func mustAtoi(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func intOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}

func boolOr(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be bool: %w", key, err)
	}
	return b, nil
}
