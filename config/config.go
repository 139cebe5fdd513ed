package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	Database          DatabaseConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	JWT               JWTConfig
	VNPay             VNPayConfig
	Orders            OrdersConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
	APIKey      string
}

type ServerConfig struct {
	Host string
	Port string
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type JWTConfig struct {
	AccessSecret string
	Issuer       string
}

// VNPayConfig is read once at startup. HashSecret and TmnCode are already
// sanitized by Load.
type VNPayConfig struct {
	BaseURL       string
	QueryURL      string
	TmnCode       string
	HashSecret    string
	ReturnURL     string
	ResultPageURL string
	Locale        string
	PaymentTTL    time.Duration
	HTTPTimeout   time.Duration
	DebugSigning  bool
}

// OrdersConfig drives the order service. PaymentTTL mirrors VNPay.PaymentTTL:
// a pending order the gateway has no transaction for after that long is
// treated as abandoned by the reconcile job.
type OrdersConfig struct {
	PersistTimeout      time.Duration
	ReconcileStaleAfter time.Duration
	PaymentTTL          time.Duration
	JobBatchSize        int32
}

type JobsConfig struct {
	ReconcileInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		return nil, errors.New("DB_DSN environment variable is required")
	}
	jwtSecret := SanitizeSecret(os.Getenv("JWT_ACCESS_SECRET"))
	if jwtSecret == "" {
		return nil, errors.New("JWT_ACCESS_SECRET environment variable is required")
	}

	paymentTTL := getMinutesEnv("VNPAY_PAYMENT_TTL_MINUTES", 15*time.Minute)

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "orders-service"),
			APIKey:      getEnv("APP_API_KEY", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "5000"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", "mysql")),
			DSN:             dsn,
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("DB_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9091"),
		},
		JWT: JWTConfig{
			AccessSecret: jwtSecret,
			Issuer:       getEnv("JWT_ISSUER", ""),
		},
		VNPay: VNPayConfig{
			BaseURL:       getEnv("VNPAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
			QueryURL:      getEnv("VNPAY_QUERY_URL", "https://sandbox.vnpayment.vn/merchant_webapi/api/transaction"),
			TmnCode:       SanitizeSecret(os.Getenv("VNPAY_TMN_CODE")),
			HashSecret:    SanitizeSecret(os.Getenv("VNPAY_HASH_SECRET")),
			ReturnURL:     getEnv("VNPAY_RETURN_URL", "http://localhost:5000/api/orders/vnpay-return"),
			ResultPageURL: stripQuery(getEnv("VNPAY_RESULT_PAGE_URL", "http://localhost:3000/payment-result")),
			Locale:        getEnv("VNPAY_LOCALE", "vn"),
			PaymentTTL:    paymentTTL,
			HTTPTimeout:   getSecondsEnv("VNPAY_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			DebugSigning:  getBoolEnv("VNPAY_DEBUG_SIGNING", false),
		},
		Orders: OrdersConfig{
			PersistTimeout:      getSecondsEnv("ORDERS_PERSIST_TIMEOUT_SECONDS", 5*time.Second),
			ReconcileStaleAfter: getMinutesEnv("ORDERS_RECONCILE_STALE_AFTER_MINUTES", 20*time.Minute),
			PaymentTTL:          paymentTTL,
			JobBatchSize:        int32(getIntEnv("ORDERS_JOB_BATCH_SIZE", 100)),
		},
		Jobs: JobsConfig{
			ReconcileInterval: getMinutesEnv("ORDERS_RECONCILE_INTERVAL_MINUTES", 5*time.Minute),
		},
	}, nil
}

// SanitizeSecret removes whitespace and wrapping quote characters that are
// commonly pasted into .env files along with the value.
func SanitizeSecret(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.Trim(value, `"`)
	value = strings.Trim(value, `'`)
	return strings.TrimSpace(value)
}

func stripQuery(rawURL string) string {
	if idx := strings.Index(rawURL, "?"); idx >= 0 {
		return rawURL[:idx]
	}
	return rawURL
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
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

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
