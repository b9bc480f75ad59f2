package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/climate-tracker/internal/cache"
	"github.com/kjstillabower/climate-tracker/internal/catalog"
	"github.com/kjstillabower/climate-tracker/internal/circuitbreaker"
	"github.com/kjstillabower/climate-tracker/internal/client"
	"github.com/kjstillabower/climate-tracker/internal/config"
	httphandler "github.com/kjstillabower/climate-tracker/internal/http"
	"github.com/kjstillabower/climate-tracker/internal/observability"
	"github.com/kjstillabower/climate-tracker/internal/service"
	"github.com/kjstillabower/climate-tracker/internal/traffic"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.OpenWeatherAPIKey == "" {
		logger.Warn("OPENWEATHERMAP_API_KEY not set; weather, air quality and tile requests will fail")
	}
	if cfg.MapTilerAPIKey == "" {
		logger.Warn("MAPTILER_API_KEY not set; geocode requests will fail")
	}

	store := newStore(cfg, logger)
	connectCtx, connectCancel := context.WithTimeout(context.Background(), 5*time.Second)
	store.Connect(connectCtx)
	connectCancel()
	observability.RegisterStoreReadyGauge(store.IsReady)

	upstream := client.NewUpstream(client.Options{
		Timeout:               cfg.UpstreamTimeout,
		RetryAttempts:         cfg.RetryAttempts,
		RetryBaseDelay:        cfg.RetryBaseDelay,
		RetryMaxDelay:         cfg.RetryMaxDelay,
		CircuitBreakerEnabled: cfg.CircuitBreakerEnabled,
		CircuitBreaker: circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
		},
		Logger: logger,
	})
	if cfg.CircuitBreakerEnabled {
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}
	owm := client.NewOpenWeatherClient(upstream, cfg.OpenWeatherAPIKey, cfg.OpenWeatherURL, cfg.TileURL, cfg.TileTimeout)
	mapTiler := client.NewMapTilerClient(upstream, cfg.MapTilerAPIKey, cfg.GeocodeURL)

	weatherService := service.NewWeatherService(owm)
	airQualityService := service.NewAirQualityService(owm)
	services := httphandler.Services{
		Weather:    weatherService,
		AirQuality: airQualityService,
		Geocode:    service.NewGeocodeService(mapTiler),
		Summary:    service.NewSummaryService(weatherService, airQualityService, logger),
		Tiles:      service.NewTileService(owm),
	}

	tracker := traffic.NewTracker()
	handler := httphandler.NewHandler(services, store, httphandler.HealthConfig{
		Version:              cfg.Version,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
	}, tracker, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	inFlight := &httphandler.InFlightTracker{}
	router := httphandler.NewRouter(httphandler.RouterConfig{
		Handler:        handler,
		Store:          store,
		Logger:         logger,
		InFlight:       inFlight,
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigin:     cfg.CORSOrigin,
		WeatherTTL:     cfg.WeatherTTL,
		AirQualityTTL:  cfg.AirQualityTTL,
		GeocodeTTL:     cfg.GeocodeTTL,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("cache_backend", cfg.CacheBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	warmCtx, warmCancel := context.WithCancel(context.Background())
	defer warmCancel()
	if cfg.WarmCache {
		startWarming(warmCtx, router, cfg, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	handler.SetShuttingDown(true)
	warmCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight.Count()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := inFlight.WaitForZero(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", inFlight.Count()))
	}

	if err := store.Close(); err != nil {
		logger.Error("cache store close", zap.Error(err))
	}
	logger.Info("shutdown complete")
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
}

// newStore builds the cache store for the configured backend. It does not connect.
func newStore(cfg *config.Config, logger *zap.Logger) cache.Store {
	switch cfg.CacheBackend {
	case config.BackendMemcached:
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return cache.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.MemcachedMonitorInterval, logger)
	case config.BackendInMemory:
		logger.Info("cache backend: in_memory")
		return cache.NewMemoryStore()
	case config.BackendNone:
		logger.Info("cache backend: none; response caching disabled")
		return cache.NopStore{}
	default:
		logger.Info("cache backend: redis")
		return cache.NewRedisStore(cache.RedisConfig{
			URL:             cfg.RedisURL,
			MonitorInterval: cfg.RedisMonitorInterval,
			OpTimeout:       cfg.RedisOpTimeout,
			DialTimeout:     cfg.RedisDialTimeout,
		}, logger)
	}
}

// startWarming replays the weather routes of the configured region through
// the router in the background, once or periodically.
func startWarming(ctx context.Context, router http.Handler, cfg *config.Config, logger *zap.Logger) {
	paths := cache.WeatherPaths(catalog.CitiesInRegion(cfg.WarmRegion))
	if len(paths) == 0 {
		logger.Warn("cache warming enabled but no cities match region", zap.String("region", cfg.WarmRegion))
		return
	}
	warmer := cache.NewCacheWarmer(router, logger)
	logger.Info("cache warming enabled", zap.Int("paths", len(paths)), zap.Duration("interval", cfg.WarmInterval))
	go func() {
		if cfg.WarmInterval <= 0 {
			if err := warmer.Warm(ctx, paths); err != nil {
				logger.Warn("cache warming failed", zap.Error(err))
			}
			return
		}
		if err := warmer.WarmPeriodic(ctx, paths, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("periodic cache warming stopped", zap.Error(err))
		}
	}()
}
