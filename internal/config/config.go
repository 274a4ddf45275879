package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	// Server
	Port       string
	Env        string
	TrustProxy bool // honor X-Forwarded-For / X-Real-IP from a fronting proxy

	// Remote answer service
	AnswerServiceURL     string
	AnswerTimeoutSeconds int
	AnswerLegacyFields   bool

	// History store
	StoreBackend string
	HistoryKey   string
	DatabaseURL  string
	RedisURL     string

	// Sessions
	SessionSecret      string
	SessionIdleMinutes int

	// Rate limiting
	AskRequestsPerMin int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		TrustProxy:           getEnvAsBoolOrDefault("TRUST_PROXY", false),
		AnswerServiceURL:     getEnvOrDefault("ANSWER_SERVICE_URL", "https://chatbot-fk3n.onrender.com"),
		AnswerTimeoutSeconds: getEnvAsIntOrDefault("ANSWER_TIMEOUT_SECONDS", 0),
		AnswerLegacyFields:   getEnvAsBoolOrDefault("ANSWER_LEGACY_FIELDS", false),
		StoreBackend:         strings.ToLower(getEnvOrDefault("STORE_BACKEND", StoreMemory)),
		HistoryKey:           getEnvOrDefault("HISTORY_KEY", "chat_historial"),
		SessionSecret:        mustGetEnv("SESSION_SECRET"),
		SessionIdleMinutes:   getEnvAsIntOrDefault("SESSION_IDLE_MINUTES", 60),
		AskRequestsPerMin:    getEnvAsIntOrDefault("ASK_REQUESTS_PER_MINUTE", 30),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:8080"),
	}

	switch cfg.StoreBackend {
	case StoreRedis:
		cfg.RedisURL = mustGetEnv("REDIS_URL")
	case StorePostgres:
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
		cfg.RedisURL = getEnvOrDefault("REDIS_URL", "")
	case StoreMemory:
		cfg.RedisURL = getEnvOrDefault("REDIS_URL", "")
	default:
		panic(fmt.Sprintf("unsupported STORE_BACKEND %q (want memory, redis or postgres)", cfg.StoreBackend))
	}

	return cfg
}

// WriteTimeout bounds how long the server may take to answer a request. Form
// submits wait for the answer service, so without an answer timeout the
// server sets none either; otherwise it leaves a margin on top of it.
func (c *Config) WriteTimeout() time.Duration {
	if c.AnswerTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.AnswerTimeoutSeconds)*time.Second + 30*time.Second
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
