package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Cache backends accepted by cache.backend / CACHE_BACKEND.
const (
	BackendRedis     = "redis"
	BackendMemcached = "memcached"
	BackendInMemory  = "in_memory"
	BackendNone      = "none"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string
	CORSOrigin string
	Version    string

	OpenWeatherAPIKey string
	MapTilerAPIKey    string

	OpenWeatherURL string
	TileURL        string
	GeocodeURL     string

	UpstreamTimeout time.Duration
	TileTimeout     time.Duration
	RetryAttempts   int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	RequestTimeout time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	CacheBackend             string
	RedisURL                 string
	RedisMonitorInterval     time.Duration
	RedisOpTimeout           time.Duration
	RedisDialTimeout         time.Duration
	MemcachedAddrs           string
	MemcachedTimeout         time.Duration
	MemcachedMaxIdleConns    int
	MemcachedMonitorInterval time.Duration

	WeatherTTL    time.Duration
	AirQualityTTL time.Duration
	GeocodeTTL    time.Duration

	WarmCache    bool
	WarmInterval time.Duration
	WarmRegion   string

	DegradedWindow       time.Duration
	DegradedErrorPct     int
	OverloadWindow       time.Duration
	OverloadThresholdPct int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration
}

type fileConfig struct {
	Server struct {
		Port       string `yaml:"port"`
		CORSOrigin string `yaml:"cors_origin"`
		Version    string `yaml:"version"`
	} `yaml:"server"`

	Upstream struct {
		OpenWeatherURL string `yaml:"openweather_url"`
		TileURL        string `yaml:"tile_url"`
		GeocodeURL     string `yaml:"geocode_url"`
		Timeout        string `yaml:"timeout"`
		TileTimeout    string `yaml:"tile_timeout"`
	} `yaml:"upstream"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend string `yaml:"backend"`
		Redis struct {
			URL             string `yaml:"url"`
			MonitorInterval string `yaml:"monitor_interval"`
			OpTimeout       string `yaml:"op_timeout"`
			DialTimeout     string `yaml:"dial_timeout"`
		} `yaml:"redis"`
		Memcached struct {
			Addrs           string `yaml:"addrs"`
			Timeout         string `yaml:"timeout"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			MonitorInterval string `yaml:"monitor_interval"`
		} `yaml:"memcached"`
		TTL struct {
			Weather    string `yaml:"weather"`
			AirQuality string `yaml:"air_quality"`
			Geocode    string `yaml:"geocode"`
		} `yaml:"ttl"`
		Warm struct {
			Enabled  bool   `yaml:"enabled"`
			Interval string `yaml:"interval"`
			Region   string `yaml:"region"`
		} `yaml:"warm"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		CircuitBreaker struct {
			Enabled          bool   `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Health struct {
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	OpenWeatherAPIKey string `yaml:"openweathermap_api_key"`
	MapTilerAPIKey    string `yaml:"maptiler_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml, then applies environment overrides. A missing env file
// means all defaults. Missing API keys are not an error here: the upstream
// clients report them per request.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	var fc fileConfig
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case os.IsNotExist(err):
		if os.Getenv("ENV_NAME") != "" {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var sec secretsFile
	secretsData, err := os.ReadFile(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read secrets file: %w", err)
		}
	} else if err := yaml.Unmarshal(secretsData, &sec); err != nil {
		return nil, fmt.Errorf("parse secrets file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, "5000")
	cfg.CORSOrigin = firstNonEmpty(os.Getenv("CORS_ORIGIN"), fc.Server.CORSOrigin, "http://localhost:3000")
	cfg.Version = firstNonEmpty(fc.Server.Version, "0.1.0")

	cfg.OpenWeatherAPIKey = firstNonEmpty(os.Getenv("OPENWEATHERMAP_API_KEY"), sec.OpenWeatherAPIKey)
	cfg.MapTilerAPIKey = firstNonEmpty(os.Getenv("MAPTILER_API_KEY"), sec.MapTilerAPIKey)

	cfg.OpenWeatherURL = firstNonEmpty(fc.Upstream.OpenWeatherURL, "https://api.openweathermap.org/data/2.5")
	cfg.TileURL = firstNonEmpty(fc.Upstream.TileURL, "https://tile.openweathermap.org/map")
	cfg.GeocodeURL = firstNonEmpty(fc.Upstream.GeocodeURL, "https://api.maptiler.com/geocoding/v1")
	cfg.UpstreamTimeout = parseDurationOrZero(fc.Upstream.Timeout, 15*time.Second)
	cfg.TileTimeout = parseDurationOrZero(fc.Upstream.TileTimeout, 10*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 20*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = BackendRedis
	}
	cfg.RedisURL = firstNonEmpty(strings.TrimSpace(os.Getenv("REDIS_URL")), strings.TrimSpace(fc.Cache.Redis.URL), "redis://localhost:6379")
	cfg.RedisMonitorInterval = parseDuration(fc.Cache.Redis.MonitorInterval, 5*time.Second)
	cfg.RedisOpTimeout = parseDuration(fc.Cache.Redis.OpTimeout, 500*time.Millisecond)
	cfg.RedisDialTimeout = parseDuration(fc.Cache.Redis.DialTimeout, 2*time.Second)
	cfg.MemcachedAddrs = firstNonEmpty(strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS")), strings.TrimSpace(fc.Cache.Memcached.Addrs), "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	cfg.MemcachedMonitorInterval = parseDuration(fc.Cache.Memcached.MonitorInterval, 5*time.Second)
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.WeatherTTL = parseDuration(fc.Cache.TTL.Weather, 30*time.Minute)
	cfg.AirQualityTTL = parseDuration(fc.Cache.TTL.AirQuality, 30*time.Minute)
	cfg.GeocodeTTL = parseDuration(fc.Cache.TTL.Geocode, 24*time.Hour)

	cfg.WarmCache = fc.Cache.Warm.Enabled
	cfg.WarmInterval = parseDurationOrZero(fc.Cache.Warm.Interval, 0)
	cfg.WarmRegion = strings.TrimSpace(fc.Cache.Warm.Region)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}
	cfg.CircuitBreakerEnabled = fc.Reliability.CircuitBreaker.Enabled
	cfg.CircuitBreakerFailureThreshold = fc.Reliability.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.Reliability.CircuitBreaker.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.Reliability.CircuitBreaker.Timeout, 30*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}
	cfg.OverloadWindow = parseDuration(fc.Health.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Health.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 20
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// firstNonEmpty returns the first argument that is not empty after trimming.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. The request timeout is raised
// above the upstream timeout so upstream timeouts surface as upstream faults
// rather than as a cancelled request.
func validate(cfg *Config) error {
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if cfg.TileTimeout <= 0 {
		return fmt.Errorf("upstream.tile_timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.UpstreamTimeout {
		cfg.RequestTimeout = cfg.UpstreamTimeout + time.Second
	}
	switch cfg.CacheBackend {
	case BackendRedis, BackendMemcached, BackendInMemory, BackendNone:
	default:
		return fmt.Errorf("cache.backend must be redis, memcached, in_memory or none, got %q", cfg.CacheBackend)
	}
	if cfg.OverloadThresholdPct > 100 {
		return fmt.Errorf("health.overload_threshold_pct must be <= 100, got %d", cfg.OverloadThresholdPct)
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("health.degraded_error_pct must be <= 100, got %d", cfg.DegradedErrorPct)
	}
	return nil
}
