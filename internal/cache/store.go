// Package cache provides the key-value stores behind the response cache.
//
// Every Store is best-effort: a store that is not ready, or an operation that
// fails, means "no cache" to callers and never an error response.
package cache

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Store is a string-keyed byte store with per-entry expiry.
type Store interface {
	// Connect establishes the connection. It never fails the process: on
	// error the store stays not-ready and the caller keeps running uncached.
	Connect(ctx context.Context)
	IsReady() bool
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// ErrNotReady is returned by operations on a store that is not connected.
var ErrNotReady = errors.New("cache store not ready")

// MemoryStore implements Store using an in-memory map with TTL-based expiration.
// Expired entries are removed on access. Safe for concurrent use.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore. It is always ready.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// Connect is a no-op.
func (s *MemoryStore) Connect(ctx context.Context) {}

// IsReady always reports true.
func (s *MemoryStore) IsReady() bool { return true }

// Get returns a copy of the stored value if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.data, key)
		return nil, false, nil
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

// SetWithExpiry stores a copy of value; it stops being readable once ttl elapses.
func (s *MemoryStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v := make([]byte, len(value))
	copy(v, value)

	s.mu.Lock()
	s.data[key] = memoryEntry{value: v, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Close drops all entries.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.data = make(map[string]memoryEntry)
	s.mu.Unlock()
	return nil
}

// NopStore is used when caching is disabled. It is never ready.
type NopStore struct{}

// Connect is a no-op.
func (NopStore) Connect(ctx context.Context) {}

// IsReady always reports false.
func (NopStore) IsReady() bool { return false }

func (NopStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, ErrNotReady
}

func (NopStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return ErrNotReady
}

func (NopStore) Close() error { return nil }

// Error categories used as the "category" label on cache error metrics.
const (
	ErrorCategoryTimeout  = "timeout"
	ErrorCategoryNetwork  = "network"
	ErrorCategoryNotReady = "not_ready"
	ErrorCategoryKey      = "invalid_key"
	ErrorCategoryUnknown  = "unknown"
)

// CategorizeError maps a store error to a stable metric label.
func CategorizeError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}
	if errors.Is(err, ErrNotReady) {
		return ErrorCategoryNotReady
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorCategoryTimeout
		}
		return ErrorCategoryNetwork
	}
	if isConnectionError(err) {
		return ErrorCategoryNetwork
	}
	if strings.Contains(err.Error(), "malformed") {
		return ErrorCategoryKey
	}
	return ErrorCategoryUnknown
}

// isConnectionError reports whether err means the connection itself is
// unusable, as opposed to a failure of one command.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "client is closed") ||
		strings.Contains(msg, "EOF")
}

// watchReadiness pings at interval until ctx is done, keeping ready in step
// with the result and logging each transition.
func watchReadiness(ctx context.Context, interval, timeout time.Duration, ping func(context.Context) error, ready *atomic.Bool, logger *zap.Logger, backend string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, timeout)
			err := ping(pingCtx)
			cancel()
			if err != nil {
				if ready.Swap(false) {
					logger.Warn("cache store disconnected", zap.String("backend", backend), zap.Error(err))
				}
				continue
			}
			if !ready.Swap(true) {
				logger.Info("cache store reconnected", zap.String("backend", backend))
			}
		}
	}
}
