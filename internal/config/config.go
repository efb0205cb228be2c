package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string
	LogLevel string

	// BotToken — токен Telegram-бота; нужен только команде run.
	BotToken         string
	TelegramEndpoint string

	// Admins — статический список администраторов (username без @, в нижнем регистре).
	Admins []string

	ReportRetention   time.Duration
	ReaperInterval    time.Duration
	FanoutConcurrency int
	DeliveryTimeout   time.Duration

	KafkaBrokers     []string
	KafkaTopicReport string
	AMQPURL          string
	AMQPQueue        string
	EventsWebhookURL string

	DB struct {
		Driver     string
		Host       string
		Port       string
		User       string
		Password   string
		Database   string
		SSLMode    string
		SQLitePath string
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:          getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:         firstEnv("APP_PORT", "HTTP_PORT", "8098"),
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		BotToken:         getEnv("BOT_TOKEN", ""),
		TelegramEndpoint: getEnv("TELEGRAM_API_ENDPOINT", ""),
		Admins:           ParseList(getEnv("ADMINS", "")),
		KafkaBrokers:     ParseList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicReport: getEnv("KAFKA_TOPIC_REPORT", "support.reports"),
		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPQueue:        getEnv("AMQP_QUEUE", "support.reports"),
		EventsWebhookURL: getEnv("EVENTS_WEBHOOK_URL", ""),
	}
	for i, a := range cfg.Admins {
		cfg.Admins[i] = strings.ToLower(strings.TrimPrefix(a, "@"))
	}

	var err error
	if cfg.ReportRetention, err = getDuration("REPORT_RETENTION", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ReaperInterval, err = getDuration("REAPER_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.DeliveryTimeout, err = getDuration("DELIVERY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FanoutConcurrency, err = getInt("FANOUT_CONCURRENCY", 8); err != nil {
		return nil, err
	}

	cfg.DB.Driver = getEnv("DB_DRIVER", "postgres")
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "support_bot")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.DB.SQLitePath = getEnv("SQLITE_PATH", "support.db")
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "postgres":
		if c.DB.Host == "" || c.DB.Database == "" {
			return errors.New("config: DB_HOST and DB_DATABASE are required")
		}
		if c.AppEnv == "production" && c.DB.Password == "" {
			return errors.New("config: in production DB_PASSWORD is required")
		}
	case "sqlite":
		if c.DB.SQLitePath == "" {
			return errors.New("config: SQLITE_PATH is required for DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.ReportRetention <= 0 {
		return errors.New("config: REPORT_RETENTION must be positive")
	}
	if c.ReaperInterval <= 0 {
		return errors.New("config: REAPER_INTERVAL must be positive")
	}
	if c.FanoutConcurrency <= 0 {
		return errors.New("config: FANOUT_CONCURRENCY must be positive")
	}
	return nil
}

// ValidateBot дополняет Validate тем, что нужно чат-циклу: токен и хотя бы один админ.
func (c *Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.BotToken == "" {
		return errors.New("config: BOT_TOKEN is required")
	}
	if len(c.Admins) == 0 {
		return errors.New("config: ADMINS must list at least one username")
	}
	return nil
}

// DSN возвращает строку подключения gorm для выбранного драйвера.
func (c *Config) DSN() string {
	if c.DB.Driver == "sqlite" {
		return c.DB.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

// SlogLevel переводит LOG_LEVEL в уровень slog; неизвестное значение = info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ParseList разбивает "a, b,,c" на непустые элементы без пробелов.
func ParseList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
