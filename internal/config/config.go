package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"hookah_delivery/internal/policy"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	DBPath   string
	LogLevel string

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）、Topic、消费者组
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox（状态变更原子入流，Relay 异步转 Kafka）
	OrderEventStream   string
	OrderEventGroup    string
	OrderEventConsumer string

	// 下单接口限流
	OrderRateLimit  int
	OrderRateWindow time.Duration

	// 管理接口令牌（推进状态、免费续时、重算设备池）
	AdminToken string

	// 设备池与价格
	TotalUnits    int
	MaxPerOrder   int
	MaxAddOns     int
	BaseUnitPrice int64 // GEL
	DepositAmount int64 // GEL
	RebowlPrice   int64 // GEL

	// 会话时长策略
	SessionDuration time.Duration
	FreeExtension   time.Duration
	RebowlDuration  time.Duration
	EndingWarning   time.Duration
	SweepInterval   time.Duration

	// 营业时间（业务时区）
	Timezone        string
	LateOrderCutoff string
	AfterHoursStart string
	AfterHoursEnd   string

	OrdersPaused bool
	PauseReason  string
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DBPath:             getEnv("DB_PATH", "hookah_delivery.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "hookah-order-events"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "hookah-notifier"),
		OrderEventStream:   getEnv("ORDER_EVENT_STREAM", "hookah:order_events"),
		OrderEventGroup:    getEnv("ORDER_EVENT_GROUP", "hookah-relay-group"),
		OrderEventConsumer: getEnv("ORDER_EVENT_CONSUMER", "hookah-relay-1"),
		AdminToken:         getEnv("ADMIN_TOKEN", "dev-admin-token"),
		Timezone:           getEnv("BUSINESS_TIMEZONE", "Asia/Tbilisi"),
		LateOrderCutoff:    getEnv("LATE_ORDER_CUTOFF", "01:30"),
		AfterHoursStart:    getEnv("AFTER_HOURS_START", "02:00"),
		AfterHoursEnd:      getEnv("AFTER_HOURS_END", "18:00"),
		PauseReason:        getEnv("PAUSE_REASON", ""),
	}

	ints := []struct {
		key      string
		fallback int
		min      int
		dst      *int
	}{
		{"REDIS_DB", 0, 0, &cfg.RedisDB},
		{"ORDER_RATE_LIMIT", 10, 1, &cfg.OrderRateLimit},
		{"TOTAL_UNITS", 5, 0, &cfg.TotalUnits},
		{"MAX_UNITS_PER_ORDER", 3, 1, &cfg.MaxPerOrder},
		{"MAX_ADDONS", 8, 0, &cfg.MaxAddOns},
	}
	for _, f := range ints {
		v, err := getEnvInt(f.key, f.fallback)
		if err != nil {
			return AppConfig{}, fmt.Errorf("invalid %s: %w", f.key, err)
		}
		if v < f.min {
			return AppConfig{}, fmt.Errorf("%s must be >= %d", f.key, f.min)
		}
		*f.dst = v
	}

	price, err := getEnvInt("BASE_UNIT_PRICE", 70)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid BASE_UNIT_PRICE: %w", err)
	}
	if price <= 0 {
		return AppConfig{}, fmt.Errorf("BASE_UNIT_PRICE must be > 0")
	}
	cfg.BaseUnitPrice = int64(price)

	deposit, err := getEnvInt("DEPOSIT_AMOUNT", 100)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid DEPOSIT_AMOUNT: %w", err)
	}
	cfg.DepositAmount = int64(deposit)

	rebowl, err := getEnvInt("REBOWL_PRICE", 50)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REBOWL_PRICE: %w", err)
	}
	if rebowl < 0 {
		return AppConfig{}, fmt.Errorf("REBOWL_PRICE must be >= 0")
	}
	cfg.RebowlPrice = int64(rebowl)

	durations := []struct {
		key      string
		fallback int
		unit     time.Duration
		dst      *time.Duration
	}{
		{"ORDER_RATE_WINDOW_SEC", 1, time.Second, &cfg.OrderRateWindow},
		{"SESSION_DURATION_MIN", 120, time.Minute, &cfg.SessionDuration},
		{"FREE_EXTENSION_MIN", 60, time.Minute, &cfg.FreeExtension},
		{"REBOWL_DURATION_MIN", 120, time.Minute, &cfg.RebowlDuration},
		{"ENDING_WARNING_MIN", 30, time.Minute, &cfg.EndingWarning},
		{"SWEEP_INTERVAL_SEC", 60, time.Second, &cfg.SweepInterval},
	}
	for _, d := range durations {
		v, err := getEnvInt(d.key, d.fallback)
		if err != nil {
			return AppConfig{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if v <= 0 {
			return AppConfig{}, fmt.Errorf("%s must be > 0", d.key)
		}
		*d.dst = time.Duration(v) * d.unit
	}

	paused, err := getEnvBool("ORDERS_PAUSED", false)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDERS_PAUSED: %w", err)
	}
	cfg.OrdersPaused = paused

	if _, err := cfg.Hours(); err != nil {
		return AppConfig{}, err
	}

	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}

	return cfg, nil
}

// Hours 构造营业时间策略。
func (c AppConfig) Hours() (policy.Hours, error) {
	return policy.NewHours(c.Timezone, c.LateOrderCutoff, c.AfterHoursStart, c.AfterHoursEnd)
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
