package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/climate-tracker/internal/cache"
	"github.com/kjstillabower/climate-tracker/internal/observability"
)

// Default response cache lifetimes per route.
const (
	DefaultWeatherTTL    = 30 * time.Minute
	DefaultAirQualityTTL = 30 * time.Minute
	DefaultGeocodeTTL    = 24 * time.Hour
)

// RouterConfig wires the handler into the route table.
type RouterConfig struct {
	Handler *Handler
	Store   cache.Store
	Logger  *zap.Logger

	// InFlight, when set, counts requests for graceful shutdown.
	InFlight *InFlightTracker
	// Limiter, when set, rate limits /api routes.
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
	// CORSOrigin is the single allowed browser origin; empty disables CORS handling.
	CORSOrigin string

	WeatherTTL    time.Duration
	AirQualityTTL time.Duration
	GeocodeTTL    time.Duration
}

// NewRouter builds the route table. Each cached route runs validation, then
// the cache middleware, then the handler.
func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handler
	store := cfg.Store
	if store == nil {
		store = cache.NopStore{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(h.NotFound)
	router.Use(CorrelationIDMiddleware(logger))
	if cfg.InFlight != nil {
		router.Use(cfg.InFlight.Middleware())
	}
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/api", h.GetIndex).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(RateLimitMiddleware(cfg.Limiter, h.traffic))
	api.Use(TimeoutMiddleware(cfg.RequestTimeout))

	weatherCache := CacheMiddleware(store, ttlOr(cfg.WeatherTTL, DefaultWeatherTTL), logger)
	airQualityCache := CacheMiddleware(store, ttlOr(cfg.AirQualityTTL, DefaultAirQualityTTL), logger)
	geocodeCache := CacheMiddleware(store, ttlOr(cfg.GeocodeTTL, DefaultGeocodeTTL), logger)

	api.Handle("/weather/{lat}/{lon}",
		chain(h.handle(h.GetWeather), h.ValidateCoordinates(), weatherCache)).Methods(http.MethodGet)
	api.Handle("/air-quality/{lat}/{lon}",
		chain(h.handle(h.GetAirQuality), h.ValidateCoordinates(), airQualityCache)).Methods(http.MethodGet)
	api.Handle("/summary/{lat}/{lon}",
		chain(h.handle(h.GetSummary), h.ValidateCoordinates(), weatherCache)).Methods(http.MethodGet)
	api.Handle("/geocode",
		chain(h.handle(h.Geocode), h.ValidateGeocodeQuery(), geocodeCache)).Methods(http.MethodGet)
	api.Handle("/tiles/{layer}/{z}/{x}/{y}",
		chain(h.handle(h.GetTile), h.ValidateTileParams())).Methods(http.MethodGet)
	api.HandleFunc("/layers", h.GetLayers).Methods(http.MethodGet)
	api.HandleFunc("/cities", h.GetCities).Methods(http.MethodGet)

	if cfg.CORSOrigin == "" {
		return router
	}
	return CORSMiddleware(cfg.CORSOrigin)(router)
}

// chain wraps final with mws so that mws[0] runs first.
func chain(final http.Handler, mws ...mux.MiddlewareFunc) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		final = mws[i](final)
	}
	return final
}

func ttlOr(ttl, fallback time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return fallback
}
