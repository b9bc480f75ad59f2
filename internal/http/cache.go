package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/climate-tracker/internal/cache"
	"github.com/kjstillabower/climate-tracker/internal/observability"
)

const (
	// CacheKeyPrefix is prepended to the request URI to form the store key.
	CacheKeyPrefix = "cache:"

	// CacheHeader marks whether a response was served from the store.
	CacheHeader = "X-Cache"
	cacheHit    = "HIT"
	cacheMiss   = "MISS"
)

// CacheKey returns the store key for a request: the prefix plus the path and
// query exactly as requested. Query parameters are not reordered.
func CacheKey(r *http.Request) string {
	return CacheKeyPrefix + r.URL.RequestURI()
}

// CacheMiddleware serves 200 JSON responses from store and populates it on a
// miss, keeping each entry for ttl. Whenever the store is not ready or a lookup
// fails the request passes through untouched; store faults never reach the client.
func CacheMiddleware(store cache.Store, ttl time.Duration, logger *zap.Logger) mux.MiddlewareFunc {
	stampede := newStampedeTracker()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := getRoute(r)
			if !store.IsReady() {
				observability.CacheRequestsTotal.WithLabelValues(route, "bypass").Inc()
				next.ServeHTTP(w, r)
				return
			}

			log := observability.LoggerFromContext(r.Context(), logger)
			key := CacheKey(r)

			start := time.Now()
			value, found, err := store.Get(r.Context(), key)
			recordStoreOp("get", start, err)
			if err != nil {
				log.Debug("cache lookup failed", zap.String("key", key), zap.Error(err))
				observability.CacheRequestsTotal.WithLabelValues(route, "bypass").Inc()
				next.ServeHTTP(w, r)
				return
			}
			if found {
				if json.Valid(value) {
					observability.CacheRequestsTotal.WithLabelValues(route, "hit").Inc()
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set(CacheHeader, cacheHit)
					w.WriteHeader(http.StatusOK)
					_, _ = w.Write(value)
					return
				}
				log.Debug("cache entry is not valid JSON", zap.String("key", key))
				observability.CacheRequestsTotal.WithLabelValues(route, "bypass").Inc()
				next.ServeHTTP(w, r)
				return
			}

			observability.CacheRequestsTotal.WithLabelValues(route, "miss").Inc()
			if n := stampede.begin(key); n > 1 {
				observability.CacheStampedeDetectedTotal.WithLabelValues(route).Inc()
				log.Debug("concurrent cache miss", zap.String("key", key), zap.Int("concurrent", n))
			}
			defer stampede.end(key)

			capture := newCacheCapture(w)
			next.ServeHTTP(capture, r)

			if !capture.cacheable() || !store.IsReady() {
				return
			}
			body := capture.body()
			ctx := context.WithoutCancel(r.Context())
			go func() {
				start := time.Now()
				err := store.SetWithExpiry(ctx, key, body, ttl)
				recordStoreOp("set", start, err)
				if err != nil {
					log.Debug("cache write failed", zap.String("key", key), zap.Error(err))
				}
			}()
		})
	}
}

func recordStoreOp(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		observability.CacheErrorsTotal.WithLabelValues(op, cache.CategorizeError(err)).Inc()
	}
	observability.CacheOperationDurationSeconds.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

// cacheCapture wraps the downstream ResponseWriter on a miss. It marks the
// response as a miss and keeps a copy of the body; what the client receives
// is unchanged.
type cacheCapture struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	buf         bytes.Buffer
}

func newCacheCapture(w http.ResponseWriter) *cacheCapture {
	return &cacheCapture{ResponseWriter: w, status: http.StatusOK}
}

func (c *cacheCapture) WriteHeader(code int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true
	c.status = code
	c.Header().Set(CacheHeader, cacheMiss)
	c.ResponseWriter.WriteHeader(code)
}

func (c *cacheCapture) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	n, err := c.ResponseWriter.Write(b)
	c.buf.Write(b[:n])
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (c *cacheCapture) Unwrap() http.ResponseWriter {
	return c.ResponseWriter
}

// cacheable reports whether the captured response may be stored: a 200 with a
// JSON content type and a complete JSON body, not marked no-store.
func (c *cacheCapture) cacheable() bool {
	if c.status != http.StatusOK || c.buf.Len() == 0 {
		return false
	}
	if noStore(c.Header()) {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(c.Header().Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return false
	}
	return json.Valid(c.buf.Bytes())
}

func noStore(h http.Header) bool {
	for _, v := range h.Values("Cache-Control") {
		for _, directive := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(directive), "no-store") {
				return true
			}
		}
	}
	return false
}

func (c *cacheCapture) body() []byte {
	return bytes.Clone(c.buf.Bytes())
}
