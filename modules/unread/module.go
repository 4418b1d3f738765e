package unread

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds unread tracker configuration.
type Config struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	Prefix        string
	TTL           time.Duration
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		Backend:   BackendMemory,
		RedisAddr: "localhost:6379",
		Prefix:    "chat:unread:",
		TTL:       24 * time.Hour,
	}
}

// Module owns the unread tracker and its counter cache.
type Module struct {
	cfg     Config
	client  *redis.Client
	cache   CounterCache
	tracker *Tracker
	logger  types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new unread module. The Redis client is created here but
// only contacted on Start.
func NewModule(cfg Config, store Store, logger types.Logger) (*Module, error) {
	m := &Module{cfg: cfg, logger: logger}

	switch cfg.Backend {
	case BackendMemory, "":
		m.cache = NewMemoryCache()
	case BackendRedis:
		m.client = redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			PoolSize:     50,
			MinIdleConns: 5,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		m.cache = NewRedisCache(m.client, cfg.Prefix, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown unread cache backend %q", cfg.Backend)
	}

	m.tracker = NewTracker(store, m.cache, logger)
	return m, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "unread"
}

// Start verifies the Redis connection when Redis is the backend.
func (m *Module) Start(ctx context.Context) error {
	if m.client != nil {
		if err := m.client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		m.logger.Info("Unread module started",
			"backend", BackendRedis,
			"addr", m.cfg.RedisAddr,
			"prefix", m.cfg.Prefix,
			"ttl", m.cfg.TTL)
		return nil
	}
	m.logger.Info("Unread module started", "backend", BackendMemory)
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}
	m.logger.Info("Unread module stopped")
	return nil
}

// Health reports cache connectivity and hit statistics.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	switch c := m.cache.(type) {
	case *RedisCache:
		if err := c.Ping(ctx); err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("redis ping failed: %v", err),
			}
		}
		return mono.HealthStatus{
			Healthy: true,
			Message: "operational",
			Details: map[string]any{"backend": BackendRedis, "stats": c.GetStats()},
		}
	case *MemoryCache:
		return mono.HealthStatus{
			Healthy: true,
			Message: "operational",
			Details: map[string]any{"backend": BackendMemory, "stats": c.GetStats()},
		}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational"}
}

// GetTracker returns the unread tracker.
func (m *Module) GetTracker() *Tracker {
	return m.tracker
}
