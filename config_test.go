package main

import (
	"testing"
	"time"

	"github.com/example/tournament-chat/modules/unread"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "DB_PATH", "DB_DEBUG", "JWT_SECRET_KEY", "UNREAD_CACHE",
		"DELIVER_TIMEOUT", "OUTBOUND_BUFFER", "WS_RATE_PER_SECOND", "WS_RATE_BURST",
	} {
		t.Setenv(key, "")
	}

	cfg := loadConfig()
	assert.Equal(t, "3000", cfg.API.Port)
	assert.Equal(t, "./chat.db", cfg.DBPath)
	assert.False(t, cfg.DBDebug)
	assert.Equal(t, defaultJWTSecret, cfg.API.JWTSecret)
	assert.Equal(t, unread.BackendMemory, cfg.Unread.Backend)
	assert.Equal(t, 2*time.Second, cfg.Session.DeliverTimeout)
	assert.Equal(t, 64, cfg.Session.OutboundBuffer)
	assert.Equal(t, 10.0, cfg.Session.RatePerSecond)
	assert.Equal(t, 20, cfg.Session.RateBurst)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DB_DEBUG", "true")
	t.Setenv("UNREAD_CACHE", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("DELIVER_TIMEOUT", "500ms")
	t.Setenv("WS_RATE_PER_SECOND", "2.5")
	t.Setenv("WS_RATE_BURST", "not-a-number")

	cfg := loadConfig()
	assert.Equal(t, "8080", cfg.API.Port)
	assert.True(t, cfg.DBDebug)
	assert.Equal(t, unread.BackendRedis, cfg.Unread.Backend)
	assert.Equal(t, "cache:6379", cfg.Unread.RedisAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.Session.DeliverTimeout)
	assert.Equal(t, 2.5, cfg.Session.RatePerSecond)
	assert.Equal(t, 20, cfg.Session.RateBurst, "invalid values fall back to the default")
}
