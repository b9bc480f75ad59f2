package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	URL string
	// MonitorInterval is how often readiness is re-checked with PING. Zero disables the monitor.
	MonitorInterval time.Duration
	// OpTimeout bounds reads and writes on the connection.
	OpTimeout   time.Duration
	DialTimeout time.Duration
}

// RedisStore implements Store on a single Redis connection pool.
// Readiness is set by a successful PING and cleared by connection errors.
type RedisStore struct {
	cfg    RedisConfig
	logger *zap.Logger

	mu     sync.Mutex
	client *redis.Client
	cancel context.CancelFunc
	done   chan struct{}

	ready atomic.Bool
}

// NewRedisStore creates a RedisStore. No connection is attempted until Connect.
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) *RedisStore {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 500 * time.Millisecond
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{cfg: cfg, logger: logger}
}

// Connect creates the client, PINGs it, and starts the readiness monitor.
// Calling it again re-checks readiness without creating a second client.
func (s *RedisStore) Connect(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		opt, err := redis.ParseURL(s.cfg.URL)
		if err != nil {
			s.logger.Warn("cache store disabled: invalid redis url", zap.Error(err))
			return
		}
		opt.DialTimeout = s.cfg.DialTimeout
		opt.ReadTimeout = s.cfg.OpTimeout
		opt.WriteTimeout = s.cfg.OpTimeout
		s.client = redis.NewClient(opt)

		if s.cfg.MonitorInterval > 0 {
			monitorCtx, cancel := context.WithCancel(context.Background())
			s.cancel = cancel
			s.done = make(chan struct{})
			go s.monitor(monitorCtx, s.client, s.done)
		}
	}

	if err := s.client.Ping(ctx).Err(); err != nil {
		s.ready.Store(false)
		s.logger.Warn("cache store unavailable, continuing without cache", zap.String("backend", "redis"), zap.Error(err))
		return
	}
	if !s.ready.Swap(true) {
		s.logger.Info("cache store connected", zap.String("backend", "redis"))
	}
}

func (s *RedisStore) monitor(ctx context.Context, client *redis.Client, done chan struct{}) {
	defer close(done)
	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	watchReadiness(ctx, s.cfg.MonitorInterval, s.cfg.OpTimeout, ping, &s.ready, s.logger, "redis")
}

// IsReady reports whether the last PING or operation succeeded.
func (s *RedisStore) IsReady() bool {
	return s.ready.Load()
}

func (s *RedisStore) getClient() *redis.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// Get returns the value for key. redis.Nil is a miss.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	client := s.getClient()
	if client == nil || !s.IsReady() {
		return nil, false, ErrNotReady
	}
	val, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		s.markError(err)
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// SetWithExpiry writes value with the given TTL.
func (s *RedisStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	client := s.getClient()
	if client == nil || !s.IsReady() {
		return ErrNotReady
	}
	if err := client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.markError(err)
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) markError(err error) {
	if isConnectionError(err) && s.ready.Swap(false) {
		s.logger.Warn("cache store connection error", zap.String("backend", "redis"), zap.Error(err))
	}
}

// Close stops the monitor and closes the client. Safe to call more than once.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	client, cancel, done := s.client, s.cancel, s.done
	s.client, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()

	s.ready.Store(false)
	if cancel != nil {
		cancel()
		<-done
	}
	if client == nil {
		return nil
	}
	return client.Close()
}
