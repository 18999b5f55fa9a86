package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	DBDriver string // sqlite | postgres
	DBDSN    string

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）、推送 Topic、推送消费者组；为空时推送只打日志
	KafkaBrokers     []string
	KafkaPushTopic   string
	KafkaPushGroupID string

	// 任务队列：memory 为进程内工作池，redis 为 Redis Stream 跨进程队列
	TaskQueue    string
	TaskStream   string
	TaskGroup    string
	TaskConsumer string
	TaskWorkers  int

	HoldTTL            time.Duration
	EligibilityRadiusM float64
	NotifyBatchSize    int
	MaxHoldsPerUser    int // 0 表示不限
	LifecycleInterval  time.Duration
	NotifyInterval     time.Duration
	SweepInterval      time.Duration

	// 预占接口限流与库存缓存
	ReserveRateLimit  int
	ReserveRateWindow time.Duration
	StockCacheTTL     time.Duration

	// 运营接口的简单管理员令牌（demo 级别保护）
	AdminToken string
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DBDriver:         getEnv("DB_DRIVER", "sqlite"),
		DBDSN:            getEnv("DB_DSN", "flash_promo.db"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:     splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaPushTopic:   getEnv("KAFKA_PUSH_TOPIC", "flash-promo-push"),
		KafkaPushGroupID: getEnv("KAFKA_PUSH_GROUP_ID", "flash-promo-push-worker"),
		TaskQueue:        getEnv("TASK_QUEUE", "memory"),
		TaskStream:       getEnv("TASK_STREAM", "flash_promo:tasks"),
		TaskGroup:        getEnv("TASK_GROUP", "flash-promo-workers"),
		TaskConsumer:     getEnv("TASK_CONSUMER", hostnameOr("flash-promo-worker-1")),
		AdminToken:       getEnv("ADMIN_TOKEN", "dev-admin-token"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.TaskWorkers, err = positiveInt("TASK_WORKERS", 4); err != nil {
		return AppConfig{}, err
	}
	if cfg.HoldTTL, err = seconds("HOLD_TTL_SEC", 60); err != nil {
		return AppConfig{}, err
	}
	radius, err := positiveInt("ELIGIBILITY_RADIUS_M", 2000)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.EligibilityRadiusM = float64(radius)
	if cfg.NotifyBatchSize, err = positiveInt("NOTIFY_BATCH_SIZE", 1000); err != nil {
		return AppConfig{}, err
	}
	if cfg.MaxHoldsPerUser, err = getEnvInt("MAX_HOLDS_PER_USER", 1); err != nil {
		return AppConfig{}, fmt.Errorf("invalid MAX_HOLDS_PER_USER: %w", err)
	}
	if cfg.MaxHoldsPerUser < 0 {
		return AppConfig{}, fmt.Errorf("MAX_HOLDS_PER_USER must be >= 0")
	}
	if cfg.LifecycleInterval, err = seconds("LIFECYCLE_INTERVAL_SEC", 30); err != nil {
		return AppConfig{}, err
	}
	if cfg.NotifyInterval, err = seconds("NOTIFY_INTERVAL_SEC", 30); err != nil {
		return AppConfig{}, err
	}
	if cfg.SweepInterval, err = seconds("SWEEP_INTERVAL_SEC", 5); err != nil {
		return AppConfig{}, err
	}
	if cfg.ReserveRateLimit, err = positiveInt("RESERVE_RATE_LIMIT", 20); err != nil {
		return AppConfig{}, err
	}
	if cfg.ReserveRateWindow, err = seconds("RESERVE_RATE_WINDOW_SEC", 1); err != nil {
		return AppConfig{}, err
	}
	if cfg.StockCacheTTL, err = seconds("STOCK_CACHE_TTL_SEC", 300); err != nil {
		return AppConfig{}, err
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return AppConfig{}, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DBDriver)
	}
	switch cfg.TaskQueue {
	case "memory", "redis":
	default:
		return AppConfig{}, fmt.Errorf("TASK_QUEUE must be memory or redis, got %q", cfg.TaskQueue)
	}
	if cfg.AdminToken == "" {
		return AppConfig{}, fmt.Errorf("ADMIN_TOKEN must not be empty")
	}

	return cfg, nil
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

func positiveInt(key string, fallback int) (int, error) {
	n, err := getEnvInt(key, fallback)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return n, nil
}

func seconds(key string, fallback int) (time.Duration, error) {
	n, err := positiveInt(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func hostnameOr(fallback string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return fallback
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
