package config

import (
	"fmt"
	"time"
)

// Config aggregates every deployment knob the service reads at startup.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	Admission AdmissionConfig
	Vault     VaultConfig
	Links     LinkConfig
	JWT       JWTConfig
}

type ServerConfig struct {
	Port               string
	Env                string
	CORSAllowedOrigins string
	PublicBaseURL      string
	// ProxyHeader is handed to fiber so c.IP() resolves the client behind a proxy.
	ProxyHeader string
	LogLevel    string
}

type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN builds a postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type AdmissionConfig struct {
	RateLimitEnabled    bool
	RateLimitWindow     time.Duration
	RateLimitMax        int
	OverloadEnabled     bool
	MaxConcurrency      int
	MaxAvgLatency       time.Duration
	LatencySampleSize   int
	LatencySampleMaxAge time.Duration
	TelemetryRateMax    int
}

type VaultConfig struct {
	HashCost      int
	EncryptionKey string
	ExposeTokens  bool
	RevealEnabled bool
}

type LinkConfig struct {
	TTL           time.Duration
	QRLinkBase    string
	QuotaTimezone string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// Load reads the environment into a Config. Call LoadEnv first when a .env file is expected.
func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:               GetEnv("PORT", "3000"),
			Env:                GetEnv("ENV", "development"),
			CORSAllowedOrigins: GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			PublicBaseURL:      GetEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
			ProxyHeader:        GetEnv("TRUSTED_PROXY_HEADER", ""),
			LogLevel:           GetEnv("LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			Host:            GetEnv("DB_HOST", "localhost"),
			Port:            GetEnv("DB_PORT", "5432"),
			User:            GetEnv("DB_USER", "postgres"),
			Password:        GetEnv("DB_PASSWORD", "postgres"),
			Name:            GetEnv("DB_NAME", "paylink"),
			SSLMode:         GetEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    GetIntEnv("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    GetIntEnv("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  GetBoolEnv("REDIS_ENABLED", true),
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetIntEnv("REDIS_DB", 0),
		},
		Admission: AdmissionConfig{
			RateLimitEnabled:    GetBoolEnv("RATE_LIMIT_ENABLED", true),
			RateLimitWindow:     GetDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
			RateLimitMax:        GetIntEnv("RATE_LIMIT_MAX", 60),
			OverloadEnabled:     GetBoolEnv("OVERLOAD_ENABLED", true),
			MaxConcurrency:      GetIntEnv("OVERLOAD_MAX_CONCURRENCY", 200),
			MaxAvgLatency:       GetDurationEnv("OVERLOAD_MAX_AVG_LATENCY", 2*time.Second),
			LatencySampleSize:   GetIntEnv("OVERLOAD_SAMPLE_SIZE", 100),
			LatencySampleMaxAge: GetDurationEnv("OVERLOAD_SAMPLE_MAX_AGE", 30*time.Second),
			TelemetryRateMax:    GetIntEnv("TELEMETRY_RATE_MAX", 120),
		},
		Vault: VaultConfig{
			HashCost:      GetIntEnv("TOKEN_HASH_COST", 10),
			EncryptionKey: GetEnv("TOKEN_ENCRYPTION_KEY", ""),
			ExposeTokens:  GetBoolEnv("EXPOSE_SENSITIVE_TOKENS", false),
			RevealEnabled: GetBoolEnv("TOKEN_REVEAL_ENABLED", false),
		},
		Links: LinkConfig{
			TTL:           GetDurationEnv("PAYMENT_LINK_TTL", 24*time.Hour),
			QRLinkBase:    GetEnv("QR_LINK_BASE", "https://bank.gov.ua/qr/"),
			QuotaTimezone: GetEnv("QUOTA_TIMEZONE", ""),
		},
		JWT: JWTConfig{
			Secret: GetEnv("JWT_SECRET", ""),
			TTL:    GetDurationEnv("JWT_TTL", 12*time.Hour),
		},
	}
}

// QuotaLocation resolves the timezone used for the daily issuance window.
// An empty setting means server local time.
func (c LinkConfig) QuotaLocation() (*time.Location, error) {
	if c.QuotaTimezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.QuotaTimezone)
}
