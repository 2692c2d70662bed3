// Package config provides environment configuration for the API server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Store settings
	StoreDriver string
	SQLitePath  string
	BoltPath    string

	// Room lock settings
	LockBackend     string
	LockTimeout     time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisLockTTL    time.Duration
	RedisLockPrefix string

	// Chat settings
	RoomAutoCreate    bool
	TurnTimeout       time.Duration
	SystemPrompt      string
	ContextBudget     int
	ContextBudgetUnit string
	TokenEncoding     string

	// LLM settings
	LLMProvider       string
	LLMModel          string
	LLMMaxTokens      int
	LLMTemperature    float64
	LLMTimeout        time.Duration
	LLMMaxRetries     int
	LLMBackoffInitial time.Duration
	LLMBackoffMax     time.Duration
	AnthropicAPIKey   string
	OpenAIAPIKey      string
	OpenAIBaseURL     string

	// Event journal (NATS JetStream)
	EventsEnabled bool
	NATSURL       string
	NATSCAFile    string
	NATSCertFile  string
	NATSKeyFile   string
	NATSToken     string

	// JWT settings
	JWTSecret string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 180*time.Second),

		// Store
		StoreDriver: getEnv("STORE_DRIVER", "sqlite"),
		SQLitePath:  getEnv("SQLITE_PATH", "data/chatrooms.db"),
		BoltPath:    getEnv("BOLT_PATH", "data/chatrooms.bolt"),

		// Room lock
		LockBackend:     getEnv("LOCK_BACKEND", "local"),
		LockTimeout:     getDurationEnv("ROOM_LOCK_TIMEOUT", 30*time.Second),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getIntEnv("REDIS_DB", 0),
		RedisLockTTL:    getDurationEnv("REDIS_LOCK_TTL", 3*time.Minute),
		RedisLockPrefix: getEnv("REDIS_LOCK_PREFIX", "chatrooms:lock:"),

		// Chat
		RoomAutoCreate:    getBoolEnv("ROOM_AUTO_CREATE", true),
		TurnTimeout:       getDurationEnv("CHAT_TURN_TIMEOUT", 150*time.Second),
		SystemPrompt:      getEnv("SYSTEM_PROMPT", "You are a helpful assistant."),
		ContextBudget:     getIntEnv("CONTEXT_BUDGET", 16000),
		ContextBudgetUnit: strings.ToLower(getEnv("CONTEXT_BUDGET_UNIT", "chars")),
		TokenEncoding:     getEnv("TOKEN_ENCODING", "cl100k_base"),

		// LLM
		LLMProvider:       getEnv("LLM_PROVIDER", "anthropic"),
		LLMModel:          getEnv("LLM_MODEL", ""),
		LLMMaxTokens:      getIntEnv("LLM_MAX_TOKENS", 1024),
		LLMTemperature:    getFloatEnv("LLM_TEMPERATURE", 0.7),
		LLMTimeout:        getDurationEnv("LLM_TIMEOUT", 45*time.Second),
		LLMMaxRetries:     getIntEnv("LLM_MAX_RETRIES", 2),
		LLMBackoffInitial: getDurationEnv("LLM_BACKOFF_INITIAL", 500*time.Millisecond),
		LLMBackoffMax:     getDurationEnv("LLM_BACKOFF_MAX", 5*time.Second),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),

		// Events
		EventsEnabled: getBoolEnv("EVENTS_ENABLED", false),
		NATSURL:       getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:    getEnv("NATS_CA_FILE", ""),
		NATSCertFile:  getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:   getEnv("NATS_KEY_FILE", ""),
		NATSToken:     getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case "memory", "sqlite", "bolt":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.LockBackend {
	case "local", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend))
	}
	if c.LockBackend == "redis" && c.RedisLockTTL <= c.TurnTimeout {
		errs = append(errs, errors.New("REDIS_LOCK_TTL must exceed CHAT_TURN_TIMEOUT"))
	}

	if c.ContextBudget <= 0 {
		errs = append(errs, errors.New("CONTEXT_BUDGET must be positive"))
	}
	switch c.ContextBudgetUnit {
	case "chars", "tokens":
	default:
		errs = append(errs, fmt.Errorf("unknown CONTEXT_BUDGET_UNIT %q", c.ContextBudgetUnit))
	}

	switch c.LLMProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic"))
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when LLM_PROVIDER=openai"))
		}
	case "echo":
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}

	if c.LLMMaxRetries < 0 {
		errs = append(errs, errors.New("LLM_MAX_RETRIES must not be negative"))
	}
	if c.TurnTimeout <= 0 || c.LockTimeout <= 0 {
		errs = append(errs, errors.New("CHAT_TURN_TIMEOUT and ROOM_LOCK_TIMEOUT must be positive"))
	}
	if c.LLMMaxRetries >= 0 && c.LLMTimeout > 0 && c.RetryBudget() >= c.TurnTimeout {
		errs = append(errs, fmt.Errorf(
			"LLM_TIMEOUT x (LLM_MAX_RETRIES+1) + LLM_BACKOFF_MAX x LLM_MAX_RETRIES (%s) must be below CHAT_TURN_TIMEOUT (%s)",
			c.RetryBudget(), c.TurnTimeout))
	}

	return errors.Join(errs...)
}

// RetryBudget is the longest a turn can spend on model backend attempts
// and the backoff between them.
func (c *Config) RetryBudget() time.Duration {
	retries := time.Duration(c.LLMMaxRetries)
	return c.LLMTimeout*(retries+1) + c.LLMBackoffMax*retries
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

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
