package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	ServerPort string
	ServerHost string

	// AppID seeds the UUIDv5 namespace that every user id is derived from
	// (see internal/directory). It must match the value clients are
	// configured with, or the same email will resolve to different ids on
	// each side.
	AppID string

	// SessionSigningSecret keys the HMAC token a session receives on a
	// successful join (see internal/security.SessionSigner). Distinct from
	// the per-credential secrets internal/security.Verifier checks join
	// signatures against.
	SessionSigningSecret string

	// SessionIdleTimeout is read from SESSION_IDLE_TIMEOUT_SECONDS but is
	// not passed to the session registry; the reaper drops idle sessions
	// after its own fixed five-minute timeout (internal/session.staleTimeout).
	SessionIdleTimeout int // seconds

	// Observability
	JaegerEndpoint string
	// TraceSampleRatio is the fraction of spans sampled, in [0, 1]. 1
	// samples every span, appropriate for a system whose traffic is a
	// modest number of long-lived sessions rather than high-volume
	// request/response calls.
	TraceSampleRatio float64
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "docsync"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		ServerPort: getEnv("SERVER_PORT", "8080"),
		ServerHost: getEnv("SERVER_HOST", "localhost"),

		AppID: getEnv("APP_ID", "docsync"),

		SessionSigningSecret: getEnv("SESSION_SIGNING_SECRET", "insecure-dev-session-secret"),

		SessionIdleTimeout: getEnvInt("SESSION_IDLE_TIMEOUT_SECONDS", 300),

		JaegerEndpoint:   getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		TraceSampleRatio: getEnvFloat("TRACE_SAMPLE_RATIO", 1.0),
	}

	if cfg.AppID == "" {
		return nil, fmt.Errorf("APP_ID is required")
	}
	if cfg.SessionSigningSecret == "" {
		return nil, fmt.Errorf("SESSION_SIGNING_SECRET is required")
	}

	return cfg, nil
}

// AppNamespace is the UUIDv5 namespace every user id is derived under:
// UUIDv5(DNS namespace, AppID). Two nodes with the same APP_ID agree on
// every user's id without ever talking to each other.
func (c *Config) AppNamespace() uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(c.AppID))
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%g", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
