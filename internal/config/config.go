package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション設定を表す
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Hold     HoldConfig
	Payment  PaymentConfig
}

// AppConfig はアプリケーション全体の設定
type AppConfig struct {
	Env          string
	ServiceName  string
	StoreBackend string // memory | postgres
	SeatMapFile  string
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// RabbitMQConfig は通知キューの設定
// URL が空の場合は通知をログ出力のみで行う
type RabbitMQConfig struct {
	URL             string
	BookingQueue    string
	EscalationQueue string
}

// HoldConfig は仮押さえの設定
type HoldConfig struct {
	TTL             time.Duration
	Extension       time.Duration
	MaxSeatsPerHold int
	SweepInterval   time.Duration
}

// PaymentConfig は支払い照合の設定
type PaymentConfig struct {
	VerificationTimeout time.Duration
	SweepInterval       time.Duration
	ExtendWithin        time.Duration
	WebhookSecret       string
}

// Load は環境変数から設定を読み込む
func Load() *Config {
	cfg := &Config{
		App: AppConfig{
			Env:          getEnv("APP_ENV", "development"),
			ServiceName:  getEnv("SERVICE_NAME", "seat-hold-booking"),
			StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "memory")),
			SeatMapFile:  getEnv("SEATMAP_FILE", ""),
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "seat_booking"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			BookingQueue:    getEnv("RABBITMQ_BOOKING_QUEUE", "booking.confirmed"),
			EscalationQueue: getEnv("RABBITMQ_ESCALATION_QUEUE", "payment.escalated"),
		},
		Hold: HoldConfig{
			TTL:             getDurationEnv("HOLD_TTL", 10*time.Minute),
			Extension:       getDurationEnv("HOLD_EXTENSION", 5*time.Minute),
			MaxSeatsPerHold: getIntEnv("HOLD_MAX_SEATS", 10),
			SweepInterval:   getDurationEnv("HOLD_SWEEP_INTERVAL", 5*time.Second),
		},
		Payment: PaymentConfig{
			VerificationTimeout: getDurationEnv("PAYMENT_VERIFICATION_TIMEOUT", 30*time.Minute),
			SweepInterval:       getDurationEnv("PAYMENT_SWEEP_INTERVAL", 15*time.Second),
			ExtendWithin:        getDurationEnv("PAYMENT_EXTEND_WITHIN", 2*time.Minute),
			WebhookSecret:       getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		},
	}

	// 接続URL形式（PaaS向け）が指定されていれば個別設定より優先する
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		applyDatabaseURL(&cfg.Database, raw)
	}
	if raw := os.Getenv("REDIS_URL"); raw != "" {
		applyRedisURL(&cfg.Redis, raw)
	}
	return cfg
}

func applyDatabaseURL(c *DatabaseConfig, raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return
	}
	c.Host = u.Hostname()
	if p := u.Port(); p != "" {
		c.Port = p
	}
	if u.User != nil {
		c.User = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.Password = pw
		}
	}
	if name := strings.TrimPrefix(u.Path, "/"); name != "" {
		c.DBName = name
	}
	c.SSLMode = "require"
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.SSLMode = mode
	}
}

func applyRedisURL(c *RedisConfig, raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return
	}
	c.Enabled = true
	c.Host = u.Hostname()
	if p := u.Port(); p != "" {
		c.Port = p
	}
	if u.User != nil {
		if pw, ok := u.User.Password(); ok {
			c.Password = pw
		}
	}
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// UsePostgres は永続ストアを使用するかを返す
func (c *AppConfig) UsePostgres() bool {
	return c.StoreBackend == "postgres"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getDurationEnv は0以下の値を不正として既定値を返す
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
