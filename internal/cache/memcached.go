package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"go.uber.org/zap"
)

// maxRelativeExp is the largest expiration memcached treats as relative seconds.
const maxRelativeExp = 30 * 24 * 60 * 60

// MemcachedStore implements Store using memcached.
type MemcachedStore struct {
	client          *memcache.Client
	logger          *zap.Logger
	monitorInterval time.Duration
	ready           atomic.Bool

	monitorOnce sync.Once
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero. A positive
// monitorInterval re-checks readiness in the background after Connect.
func NewMemcachedStore(addrs string, timeout time.Duration, maxIdleConns int, monitorInterval time.Duration, logger *zap.Logger) *MemcachedStore {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemcachedStore{client: client, logger: logger, monitorInterval: monitorInterval}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Connect pings every server; readiness follows the result.
func (s *MemcachedStore) Connect(ctx context.Context) {
	s.monitorOnce.Do(func() {
		if s.monitorInterval <= 0 {
			return
		}
		monitorCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.done = make(chan struct{})
		go func() {
			defer close(s.done)
			ping := func(context.Context) error { return s.client.Ping() }
			watchReadiness(monitorCtx, s.monitorInterval, s.client.Timeout, ping, &s.ready, s.logger, "memcached")
		}()
	})
	if err := s.client.Ping(); err != nil {
		s.ready.Store(false)
		s.logger.Warn("cache store unavailable, continuing without cache", zap.String("backend", "memcached"), zap.Error(err))
		return
	}
	if !s.ready.Swap(true) {
		s.logger.Info("cache store connected", zap.String("backend", "memcached"))
	}
}

// IsReady reports whether the last Ping or operation succeeded.
func (s *MemcachedStore) IsReady() bool {
	return s.ready.Load()
}

// Get returns false, nil on cache miss; false, err on error.
func (s *MemcachedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}
	if !s.IsReady() {
		return nil, false, ErrNotReady
	}
	item, err := s.client.Get(key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, false, nil
		}
		s.markError(err)
		return nil, false, fmt.Errorf("memcached get: %w", err)
	}
	return item.Value, true, nil
}

// SetWithExpiry stores value. TTLs are rounded down to whole seconds, with a
// one second minimum, and capped at memcached's 30-day relative limit.
func (s *MemcachedStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !s.IsReady() {
		return ErrNotReady
	}
	err := s.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: expirationSeconds(ttl),
	})
	if err != nil {
		s.markError(err)
		return fmt.Errorf("memcached set: %w", err)
	}
	return nil
}

// expirationSeconds converts ttl to memcached's relative expiration. The cap
// is applied on the duration so very large TTLs cannot overflow int32.
func expirationSeconds(ttl time.Duration) int32 {
	if ttl >= maxRelativeExp*time.Second {
		return maxRelativeExp
	}
	if sec := int32(ttl / time.Second); sec > 0 {
		return sec
	}
	return 1
}

func (s *MemcachedStore) markError(err error) {
	if isConnectionError(err) && s.ready.Swap(false) {
		s.logger.Warn("cache store connection error", zap.String("backend", "memcached"), zap.Error(err))
	}
}

// Ping checks if memcached is reachable.
func (s *MemcachedStore) Ping() error {
	return s.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (s *MemcachedStore) Close() error {
	s.monitorOnce.Do(func() {})
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}
	s.ready.Store(false)
	return s.client.Close()
}
