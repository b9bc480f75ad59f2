//go:build integration

// Package testhelpers provides shared setup for integration tests that need
// a real cache server.
package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/climate-tracker/internal/cache"
	"github.com/kjstillabower/climate-tracker/internal/config"
)

// IntegrationTestConfig selects the cache server used by integration tests.
type IntegrationTestConfig struct {
	CacheBackend   string
	RedisURL       string
	MemcachedAddrs string
}

// GetIntegrationConfig reads INTEGRATION_CACHE_BACKEND (redis or memcached,
// default redis), REDIS_URL and MEMCACHED_ADDRS.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	cfg := IntegrationTestConfig{
		CacheBackend:   os.Getenv("INTEGRATION_CACHE_BACKEND"),
		RedisURL:       os.Getenv("REDIS_URL"),
		MemcachedAddrs: os.Getenv("MEMCACHED_ADDRS"),
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = config.BackendRedis
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = "redis://localhost:6379"
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	return cfg
}

// SetupIntegrationStore connects to the configured cache server and skips the
// test when it is not reachable. The store is closed on cleanup.
func SetupIntegrationStore(t *testing.T, cfg IntegrationTestConfig) cache.Store {
	t.Helper()
	var store cache.Store
	switch cfg.CacheBackend {
	case config.BackendMemcached:
		store = cache.NewMemcachedStore(cfg.MemcachedAddrs, 500*time.Millisecond, 2, 0, zap.NewNop())
	case config.BackendRedis:
		store = cache.NewRedisStore(cache.RedisConfig{URL: cfg.RedisURL}, zap.NewNop())
	default:
		t.Fatalf("unsupported INTEGRATION_CACHE_BACKEND %q", cfg.CacheBackend)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	store.Connect(ctx)
	if !store.IsReady() {
		t.Skipf("%s not reachable, skipping integration test", cfg.CacheBackend)
	}
	return store
}
