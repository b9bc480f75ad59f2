//go:build integration
// +build integration

package cache

import (
	"context"
	"testing"
	"time"
)

func newIntegrationMemcached(t *testing.T) *MemcachedStore {
	t.Helper()
	s := NewMemcachedStore("localhost:11211", 500*time.Millisecond, 2, 0, nil)
	t.Cleanup(func() { _ = s.Close() })
	s.Connect(context.Background())
	if !s.IsReady() {
		t.Skip("memcached not running on localhost:11211")
	}
	return s
}

// TestMemcachedStore_GetSet_Integration verifies that MemcachedStore stores
// and retrieves bytes when a memcached server is available.
func TestMemcachedStore_GetSet_Integration(t *testing.T) {
	s := newIntegrationMemcached(t)
	ctx := context.Background()

	val := []byte(`{"location":"Seattle, US"}`)
	if err := s.SetWithExpiry(ctx, "cache:/api/weather/47.61/-122.33", val, time.Minute); err != nil {
		t.Fatalf("SetWithExpiry() error = %v", err)
	}

	got, ok, err := s.Get(ctx, "cache:/api/weather/47.61/-122.33")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if string(got) != string(val) {
		t.Errorf("Get() = %s, want %s", got, val)
	}
}

// TestMemcachedStore_Get_Miss_Integration verifies that MemcachedStore returns
// ok=false when the requested key does not exist.
func TestMemcachedStore_Get_Miss_Integration(t *testing.T) {
	s := newIntegrationMemcached(t)

	_, ok, err := s.Get(context.Background(), "cache:/nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}
