package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/climate-tracker/internal/catalog"
	"github.com/kjstillabower/climate-tracker/internal/observability"
)

// warmConcurrency caps in-flight warm requests so a warm run cannot exhaust
// upstream quotas in a single burst.
const warmConcurrency = 4

type warmingKey struct{}

// WithWarming marks ctx as belonging to a cache warm request.
func WithWarming(ctx context.Context) context.Context {
	return context.WithValue(ctx, warmingKey{}, true)
}

// IsWarming reports whether ctx was marked by WithWarming.
func IsWarming(ctx context.Context) bool {
	v, _ := ctx.Value(warmingKey{}).(bool)
	return v
}

// CacheWarmer warms the response cache by replaying GET requests through the
// HTTP handler, so entries are written by the same middleware that serves them.
type CacheWarmer struct {
	handler http.Handler
	logger  *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer that sends requests to handler.
func NewCacheWarmer(handler http.Handler, logger *zap.Logger) *CacheWarmer {
	return &CacheWarmer{handler: handler, logger: logger}
}

// WeatherPaths returns the weather route for each city.
func WeatherPaths(cities []catalog.City) []string {
	paths := make([]string, 0, len(cities))
	for _, c := range cities {
		paths = append(paths, "/api/weather/"+formatCoord(c.Lat)+"/"+formatCoord(c.Lon))
	}
	return paths
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Warm requests each path concurrently. A path whose response is not 200 is
// reported in the aggregated error; the others still complete.
func (w *CacheWarmer) Warm(ctx context.Context, paths []string) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("paths", len(paths)))
	}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(warmConcurrency)
	for _, path := range paths {
		if ctx.Err() != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("warm %s: %w", path, ctx.Err()))
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			if err := w.warmOne(ctx, path); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("warm %s: %w", path, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("cache warming complete", zap.Int("paths", len(paths)), zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}

func (w *CacheWarmer) warmOne(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(WithWarming(ctx), http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	rec := &discardWriter{header: make(http.Header)}
	w.handler.ServeHTTP(rec, req)
	if rec.status() != http.StatusOK {
		return fmt.Errorf("status %d", rec.status())
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval until ctx is done.
func (w *CacheWarmer) WarmPeriodic(ctx context.Context, paths []string, interval time.Duration) error {
	if err := w.Warm(ctx, paths); err != nil && w.logger != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, paths); err != nil && w.logger != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}

// discardWriter records the status code and drops the body.
type discardWriter struct {
	header http.Header
	code   int
}

func (d *discardWriter) Header() http.Header { return d.header }

func (d *discardWriter) Write(b []byte) (int, error) {
	if d.code == 0 {
		d.code = http.StatusOK
	}
	return len(b), nil
}

func (d *discardWriter) WriteHeader(code int) {
	if d.code == 0 {
		d.code = code
	}
}

func (d *discardWriter) status() int {
	if d.code == 0 {
		return http.StatusOK
	}
	return d.code
}
