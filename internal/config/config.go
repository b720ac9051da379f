package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Имена поддерживаемых каналов уведомлений
const (
	SinkLog       = "log"
	SinkTelegram  = "telegram"
	SinkRedis     = "redis"
	SinkWebSocket = "ws"
)

type Config struct {
	Environment    string
	LogLevel       string
	DBDSN          string
	MigrationsPath string
	HTTPPort       string
	TelegramToken  string
	RedisAddr      string
	Timezone       string

	NotifySinks   []string
	NotifyTimeout time.Duration

	TrackerInterval     time.Duration
	LateSubmissionGrace time.Duration

	ArchiveCron            string
	ArchiveRetentionMonths int
	ArchiveBatchSize       int
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Environment:            getEnv("ENV", "development"),
		LogLevel:               os.Getenv("LOG_LEVEL"),
		DBDSN:                  os.Getenv("DB_DSN"),
		MigrationsPath:         getEnv("MIGRATIONS_PATH", "migrations"),
		HTTPPort:               getEnv("HTTP_PORT", "8080"),
		TelegramToken:          os.Getenv("TELEGRAM_TOKEN"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		Timezone:               getEnv("TIMEZONE", "Local"),
		NotifySinks:            listEnv("NOTIFY_SINKS", []string{SinkLog, SinkWebSocket}),
		NotifyTimeout:          durationEnv("NOTIFY_TIMEOUT", 5*time.Second),
		TrackerInterval:        durationEnv("TRACKER_INTERVAL", time.Minute),
		LateSubmissionGrace:    durationEnv("LATE_SUBMISSION_GRACE", 0),
		ArchiveCron:            getEnv("ARCHIVE_CRON", "0 3 1 * *"),
		ArchiveRetentionMonths: intEnv("ARCHIVE_RETENTION_MONTHS", 6),
		ArchiveBatchSize:       intEnv("ARCHIVE_BATCH_SIZE", 500),
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	if c.TrackerInterval <= 0 {
		return fmt.Errorf("TRACKER_INTERVAL must be positive")
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive")
	}
	if c.LateSubmissionGrace < 0 {
		return fmt.Errorf("LATE_SUBMISSION_GRACE cannot be negative")
	}
	if c.ArchiveBatchSize <= 0 {
		return fmt.Errorf("ARCHIVE_BATCH_SIZE must be positive")
	}
	if c.ArchiveRetentionMonths < 1 {
		return fmt.Errorf("ARCHIVE_RETENTION_MONTHS must be at least 1")
	}

	for _, sink := range c.NotifySinks {
		switch sink {
		case SinkLog, SinkWebSocket:
		case SinkTelegram:
			if c.TelegramToken == "" {
				return fmt.Errorf("notify sink %q requires TELEGRAM_TOKEN", sink)
			}
		case SinkRedis:
			if c.RedisAddr == "" {
				return fmt.Errorf("notify sink %q requires REDIS_ADDR", sink)
			}
		default:
			return fmt.Errorf("unknown notify sink %q", sink)
		}
	}

	return nil
}

// HasSink сообщает, включён ли канал уведомлений
func (c *Config) HasSink(name string) bool {
	for _, s := range c.NotifySinks {
		if s == name {
			return true
		}
	}
	return false
}

// Location загружает часовой пояс расписания
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Printf("invalid int for %s, using fallback %d", key, fallback)
			return fallback
		}
		return parsed
	}
	return fallback
}

func listEnv(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
