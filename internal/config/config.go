package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Events    EventsConfig    `yaml:"events"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port      string `yaml:"port" validate:"required,numeric"`
	Host      string `yaml:"host"`
	StaticDir string `yaml:"static_dir"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host" validate:"required"`
	Port            string        `yaml:"port" validate:"required,numeric"`
	User            string        `yaml:"user" validate:"required"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"name" validate:"required"`
	SSLMode         string        `yaml:"sslmode" validate:"oneof=disable require verify-ca verify-full"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MigrationsPath  string        `yaml:"migrations_path" validate:"required"`
}

// KafkaConfig holds Kafka/Redpanda configuration
type KafkaConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers" validate:"required_if=Enabled true"`
	AlertsTopic   string   `yaml:"alerts_topic"`
	EventsTopic   string   `yaml:"events_topic"`
	ConsumerGroup string   `yaml:"consumer_group"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Host          string `yaml:"host"`
	Port          string `yaml:"port"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	EventsChannel string `yaml:"events_channel"`
}

// AuthConfig holds the shared secret expected on alert ingestion
type AuthConfig struct {
	WebhookSecret string `yaml:"webhook_secret" validate:"required"`
}

// TelegramConfig holds notifier settings
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token" validate:"required_if=Enabled true"`
	ChatID   int64  `yaml:"chat_id" validate:"required_if=Enabled true"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

// SchedulerConfig holds the stale-signal sweep settings
type SchedulerConfig struct {
	StaleSpec  string        `yaml:"stale_spec"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

// EventsConfig holds lifecycle event delivery settings
type EventsConfig struct {
	PublishTimeout time.Duration `yaml:"publish_timeout" validate:"gte=0"`
}

// Load reads configuration from environment variables. A .env file is
// loaded first when present, and CONFIG_FILE names an optional YAML overlay.
func Load() (*Config, error) {
	_ = godotenv.Load() // best-effort

	cfg := fromEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := overlayFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      getEnv("SERVER_PORT", "8081"),
			Host:      getEnv("SERVER_HOST", "0.0.0.0"),
			StaticDir: getEnv("STATIC_DIR", ""),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "postgres"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "trader"),
			Password:        getEnv("DB_PASSWORD", "trader5"),
			DBName:          getEnv("DB_NAME", "signal_desk"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			MigrationsPath:  getEnv("DB_MIGRATIONS_PATH", "./db/migrations"),
		},
		Kafka: KafkaConfig{
			Enabled:       getEnvBool("KAFKA_ENABLED", false),
			Brokers:       parseBrokers(getEnv("KAFKA_BROKERS", "localhost:19092")),
			AlertsTopic:   getEnv("KAFKA_ALERTS_TOPIC", "trading.alerts"),
			EventsTopic:   getEnv("KAFKA_EVENTS_TOPIC", "trading.signal-events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "signal-desk"),
		},
		Redis: RedisConfig{
			Enabled:       getEnvBool("REDIS_ENABLED", false),
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnv("REDIS_PORT", "6379"),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			EventsChannel: getEnv("REDIS_EVENTS_CHANNEL", "signals:events"),
		},
		Auth: AuthConfig{
			WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		},
		Telegram: TelegramConfig{
			Enabled:  getEnvBool("TELEGRAM_ENABLED", false),
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   int64(getEnvInt("TELEGRAM_CHAT_ID", 0)),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Pretty: getEnvBool("LOG_PRETTY", false),
		},
		Scheduler: SchedulerConfig{
			StaleSpec:  getEnv("STALE_SIGNAL_SPEC", "@every 1m"),
			StaleAfter: getEnvDuration("STALE_SIGNAL_AFTER", 15*time.Minute),
		},
		Events: EventsConfig{
			PublishTimeout: getEnvDuration("EVENT_PUBLISH_TIMEOUT", 2*time.Second),
		},
	}
}

// overlayFile decodes a YAML file on top of cfg; keys absent from the file
// keep their environment values.
func overlayFile(cfg *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}
	return nil
}

// Validate checks struct constraints
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Address returns the Redis address in host:port format
func (r *RedisConfig) Address() string {
	return r.Host + ":" + r.Port
}

// Address returns the HTTP listen address
func (s *ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

// parseBrokers splits a comma-separated broker list
func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
