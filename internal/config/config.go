package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// アプリ全体の設定。起動時にLoadで一度だけ読む。
type Config struct {
	Port string // HTTPの待ち受けポート

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int

	JWTSecret string // access token署名用

	GoEnv     string // dev / prod
	APIDomain string // cookieのDomain属性
	FEURL     string // CORSで許可するフロントのオリジン

	Currency string // 注文金額の通貨コード。金額は最小通貨単位の整数で持つ。

	// エスクロー自動釈放。配達確定からこの日数で売上が出品者に渡る。
	EscrowHoldDays int
	// 自動釈放スイープの間隔と1回で処理する件数
	SweepIntervalSeconds int
	SweepBatchSize       int

	// 定額送料と、送料無料になる小計のしきい値
	ShippingFlatFee       int64
	FreeShippingThreshold int64

	KafkaBrokers []string // 支払イベントのブローカー
	RedisAddr    string   // consumerの重複排除用
}

// Loadは環境変数から設定を組み立てる。欠けている必須キーはまとめて報告する。
func Load() (Config, error) {
	var missing []string
	req := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	pgPortStr := req("POSTGRES_PORT")

	cfg := Config{
		Port: req("PORT"),

		PostgresUser:     req("POSTGRES_USER"),
		PostgresPassword: req("POSTGRES_PASSWORD"),
		PostgresDB:       req("POSTGRES_DB"),
		PostgresHost:     req("POSTGRES_HOST"),

		JWTSecret: req("JWT_SECRET"),

		GoEnv:     req("GO_ENV"),
		APIDomain: req("API_DOMAIN"),
		FEURL:     req("FE_URL"),

		Currency: getenv("CURRENCY", "JPY"),

		EscrowHoldDays:       getenvInt("ESCROW_HOLD_DAYS", 7),
		SweepIntervalSeconds: getenvInt("SWEEP_INTERVAL_SECONDS", 60),
		SweepBatchSize:       getenvInt("SWEEP_BATCH_SIZE", 100),

		ShippingFlatFee:       int64(getenvInt("SHIPPING_FLAT_FEE", 500)),
		FreeShippingThreshold: int64(getenvInt("FREE_SHIPPING_THRESHOLD", 5000)),

		KafkaBrokers: strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ","),
		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env: %s", strings.Join(missing, ", "))
	}

	pgPort, err := strconv.Atoi(pgPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("POSTGRES_PORT must be a number: %w", err)
	}
	cfg.PostgresPort = pgPort

	if cfg.EscrowHoldDays <= 0 {
		return Config{}, fmt.Errorf("ESCROW_HOLD_DAYS must be > 0")
	}
	if cfg.SweepIntervalSeconds <= 0 {
		return Config{}, fmt.Errorf("SWEEP_INTERVAL_SECONDS must be > 0")
	}
	if cfg.SweepBatchSize <= 0 {
		return Config{}, fmt.Errorf("SWEEP_BATCH_SIZE must be > 0")
	}

	return cfg, nil
}

func getenv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// 数値でない値はdefに落とす。必須ではないキー用。
func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
