package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/example/tournament-chat/modules/api"
	"github.com/example/tournament-chat/modules/chat"
	"github.com/example/tournament-chat/modules/unread"
)

const defaultJWTSecret = "change-me-in-production"

// Config is the process configuration, read from the environment.
type Config struct {
	DBPath  string
	DBDebug bool
	API     api.Config
	Session chat.SessionConfig
	Unread  unread.Config
}

// loadConfig reads the configuration from environment variables.
func loadConfig() Config {
	session := chat.DefaultSessionConfig()
	session.DeliverTimeout = getEnvDuration("DELIVER_TIMEOUT", session.DeliverTimeout)
	session.OutboundBuffer = getEnvInt("OUTBOUND_BUFFER", session.OutboundBuffer)
	session.RatePerSecond = getEnvFloat("WS_RATE_PER_SECOND", session.RatePerSecond)
	session.RateBurst = getEnvInt("WS_RATE_BURST", session.RateBurst)

	cache := unread.DefaultConfig()
	cache.Backend = getEnv("UNREAD_CACHE", cache.Backend)
	cache.RedisAddr = getEnv("REDIS_ADDR", cache.RedisAddr)
	cache.RedisPassword = getEnv("REDIS_PASSWORD", cache.RedisPassword)
	cache.Prefix = getEnv("UNREAD_CACHE_PREFIX", cache.Prefix)
	cache.TTL = getEnvDuration("UNREAD_CACHE_TTL", cache.TTL)

	return Config{
		DBPath:  getEnv("DB_PATH", "./chat.db"),
		DBDebug: getEnvBool("DB_DEBUG", false),
		API: api.Config{
			Port:               getEnv("PORT", "3000"),
			JWTSecret:          getEnv("JWT_SECRET_KEY", defaultJWTSecret),
			JWTIssuer:          getEnv("JWT_ISSUER", ""),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080"),
		},
		Session: session,
		Unread:  cache,
	}
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvFloat returns environment variable as float64 or default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
		log.Printf("Warning: invalid float value for %s: %s, using default: %g", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvBool returns environment variable as bool or default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: invalid bool value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
