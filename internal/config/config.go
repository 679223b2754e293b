package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // DSN直接指定（最優先）
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     string // DBポート
	PostgresSSLMode  string

	JWTSecret string // JWT署名シークレット

	// webhook署名検証用の共有シークレット。
	// 未設定のままだとwebhookは全て401になる。
	PaymentWebhookSecret string

	KafkaBrokers   []string // イベント配信先
	CatalogBaseURL string   // カタログサービス
	CheckoutBase   string   // 決済スタンドインのcheckout URLベース

	DeliveryFee      int64 // 配送料（固定）
	CartTTLMinutes   int   // カート有効期限（0で無期限）
	SettleTimeoutSec int   // processingのまま残った決済を倒すまでの秒数
	GoEnv            string
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "app"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getenv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret:            os.Getenv("JWT_SECRET"),
		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),

		KafkaBrokers:   strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ","),
		CatalogBaseURL: getenv("CATALOG_BASE_URL", "http://localhost:4001"),
		CheckoutBase:   getenv("CHECKOUT_BASE_URL", "http://localhost:8080"),

		GoEnv: getenv("GO_ENV", "dev"),
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	var err error
	if cfg.DeliveryFee, err = atoi64("DELIVERY_FEE", 15000); err != nil {
		return Config{}, err
	}
	if cfg.DeliveryFee < 0 {
		return Config{}, fmt.Errorf("DELIVERY_FEE must not be negative")
	}

	if cfg.CartTTLMinutes, err = atoiDefault("CART_TTL_MINUTES", 0); err != nil {
		return Config{}, err
	}
	if cfg.SettleTimeoutSec, err = atoiDefault("SETTLE_TIMEOUT_SECONDS", 60); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
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

func atoi64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}
