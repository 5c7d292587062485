// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration knobs for the HTTP server, storage and integrations.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string

	// Document store
	DataDir string
	DBFile  string

	// Admin gates
	AdminUser         string
	AdminPassword     string
	AdminPasswordHash string // bcrypt; wins over AdminPassword when set
	AdminRealm        string
	DebugToken        string

	// Payment code payee
	PixKey  string
	PixName string
	PixCity string

	// Telegram message channel
	TelegramToken   string
	TelegramChatID  string
	TelegramBaseURL string

	// Web push channel
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	PushConcurrency int

	// Broker channel (optional)
	AMQPURL      string
	AMQPExchange string

	// Rate limit on order submission (optional, needs Redis)
	RedisURL        string
	OrderRateLimit  int
	OrderRateWindow time.Duration

	// Notification dispatcher
	NotifyQueueSize int
	NotifyWorkers   int
	NotifyTimeout   time.Duration

	// CORS
	CORSOrigins []string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if sec, err := strconv.Atoi(v); err == nil {
			return time.Duration(sec) * time.Second
		}
	}
	return def
}

func getenvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load collects configuration from environment with defaults.
func Load() Config {
	dataDir := getenv("DATA_DIR", "/data")
	return Config{
		HTTPAddr:        ":" + getenv("PORT", "3000"),
		ShutdownTimeout: getenvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		LogLevel:        getenv("LOG_LEVEL", "INFO"),

		DataDir: dataDir,
		DBFile:  getenv("DB_FILE", filepath.Join(dataDir, "db.json")),

		AdminUser:         getenv("ADMIN_USER", "admin"),
		AdminPassword:     getenv("ADMIN_PASS", "senha123"),
		AdminPasswordHash: getenv("ADMIN_PASS_HASH", ""),
		AdminRealm:        getenv("ADMIN_REALM", "Adega Admin"),
		DebugToken:        getenv("DEBUG_TOKEN", "segredo123"),

		PixKey:  getenv("PIX_KEY", "55160826000100"),
		PixName: getenv("PIX_NAME", "RS LUBRIFICANTES"),
		PixCity: getenv("PIX_CITY", "SAMBAIBA"),

		TelegramToken:   getenv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:  getenv("TELEGRAM_CHAT_ID", ""),
		TelegramBaseURL: getenv("TELEGRAM_API_URL", "https://api.telegram.org"),

		VAPIDPublicKey:  getenv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: getenv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    getenv("VAPID_SUBJECT", "mailto:suporte@exemplo.com"),
		PushConcurrency: getenvInt("PUSH_CONCURRENCY", 8),

		AMQPURL:      getenv("AMQP_URL", ""),
		AMQPExchange: getenv("AMQP_EXCHANGE", "storefront.orders"),

		RedisURL:        getenv("REDIS_URL", ""),
		OrderRateLimit:  getenvInt("ORDER_RATE_LIMIT", 20),
		OrderRateWindow: getenvDuration("ORDER_RATE_WINDOW", time.Minute),

		NotifyQueueSize: getenvInt("NOTIFY_QUEUE_SIZE", 256),
		NotifyWorkers:   getenvInt("NOTIFY_WORKERS", 2),
		NotifyTimeout:   getenvDuration("NOTIFY_TIMEOUT", 10*time.Second),

		CORSOrigins: getenvList("CORS_ORIGINS"),
	}
}
