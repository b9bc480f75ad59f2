package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/climate-tracker/internal/cache"
	"github.com/kjstillabower/climate-tracker/internal/catalog"
	"github.com/kjstillabower/climate-tracker/internal/models"
	"github.com/kjstillabower/climate-tracker/internal/observability"
	"github.com/kjstillabower/climate-tracker/internal/service"
	"github.com/kjstillabower/climate-tracker/internal/traffic"
)

// WeatherProvider composes current conditions and forecast for a coordinate.
type WeatherProvider interface {
	GetWeather(ctx context.Context, lat, lon float64) (models.WeatherResponse, error)
}

// AirQualityProvider looks up air quality for a coordinate.
type AirQualityProvider interface {
	GetAirQuality(ctx context.Context, lat, lon float64) (models.AirQuality, error)
}

// Geocoder resolves a place name to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, query string) ([]models.GeocodeResult, error)
}

// SummaryProvider combines weather and air quality for a coordinate.
type SummaryProvider interface {
	GetSummary(ctx context.Context, lat, lon float64) (models.SummaryResponse, error)
}

// TileProvider fetches weather map tiles.
type TileProvider interface {
	GetTile(ctx context.Context, layer string, z, x, y int) (service.Tile, error)
}

// Services are the domain services behind the API routes.
type Services struct {
	Weather    WeatherProvider
	AirQuality AirQualityProvider
	Geocode    Geocoder
	Summary    SummaryProvider
	Tiles      TileProvider
}

// HealthConfig holds the thresholds used by GET /health.
type HealthConfig struct {
	Version string
	// DegradedWindow and DegradedErrorPct mark the service degraded when
	// upstream failures make up at least DegradedErrorPct percent of the
	// API outcomes within DegradedWindow. Zero disables the check.
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// The service is overloaded when rate-limit denials within OverloadWindow
	// exceed OverloadThresholdPct percent of what RateLimitRPS admits in
	// that window. RateLimitRPS zero disables the check.
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	services Services
	store    cache.Store
	health   HealthConfig
	traffic  *traffic.Tracker
	logger   *zap.Logger

	shuttingDown     atomic.Bool
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. A nil tracker gets a private one.
func NewHandler(services Services, store cache.Store, health HealthConfig, tracker *traffic.Tracker, logger *zap.Logger) *Handler {
	if tracker == nil {
		tracker = traffic.NewTracker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = cache.NopStore{}
	}
	return &Handler{
		services: services,
		store:    store,
		health:   health,
		traffic:  tracker,
		logger:   logger,
	}
}

// SetShuttingDown makes /health report shutting-down with 503.
func (h *Handler) SetShuttingDown(v bool) {
	h.shuttingDown.Store(v)
}

const (
	statusOK           = "ok"
	statusDegraded     = "degraded"
	statusOverloaded   = "overloaded"
	statusShuttingDown = "shutting-down"

	checkHealthy   = "healthy"
	checkUnhealthy = "unhealthy"
	checkDisabled  = "disabled"
)

type healthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// GetHealth handles GET /health. The cache check is informational: the
// service runs without a cache, so an unavailable store never fails health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status, code, reason := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	if prev := h.healthStatusPrev; prev != "" && prev != status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", status),
			zap.String("reason", reason))
	}
	h.healthStatusPrev = status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"upstream": checkHealthy, "cache": checkHealthy}
	if status == statusDegraded {
		checks["upstream"] = checkUnhealthy
	}
	switch {
	case isNopStore(h.store):
		checks["cache"] = checkDisabled
	case !h.store.IsReady():
		checks["cache"] = checkUnhealthy
	}

	writeJSON(w, code, healthResponse{
		Status:    status,
		Version:   h.health.Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// computeHealthStatus returns status, HTTP code and reason.
// Order: shutting-down, overloaded, degraded, ok.
func (h *Handler) computeHealthStatus() (string, int, string) {
	if h.shuttingDown.Load() {
		return statusShuttingDown, http.StatusServiceUnavailable, "signal"
	}
	if h.overloaded() {
		return statusOverloaded, http.StatusServiceUnavailable, "overload_threshold"
	}
	if h.traffic.Degraded(h.health.DegradedWindow, h.health.DegradedErrorPct) {
		return statusDegraded, http.StatusServiceUnavailable, "error_rate_breach"
	}
	return statusOK, http.StatusOK, ""
}

func (h *Handler) overloaded() bool {
	cfg := h.health
	if cfg.RateLimitRPS <= 0 || cfg.OverloadWindow <= 0 || cfg.OverloadThresholdPct <= 0 {
		return false
	}
	threshold := float64(cfg.RateLimitRPS) * cfg.OverloadWindow.Seconds() * float64(cfg.OverloadThresholdPct) / 100
	return float64(h.traffic.DenialCount(cfg.OverloadWindow)) > threshold
}

func isNopStore(s cache.Store) bool {
	switch s.(type) {
	case cache.NopStore, *cache.NopStore:
		return true
	}
	return false
}

// GetIndex handles GET /api.
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Climate Tracker API",
		"version": h.health.Version,
	})
}

// GetWeather handles GET /api/weather/{lat}/{lon}.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) error {
	c, err := coordinatesFrom(r)
	if err != nil {
		return err
	}
	resp, err := h.services.Weather.GetWeather(r.Context(), c.Lat, c.Lon)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

// GetAirQuality handles GET /api/air-quality/{lat}/{lon}.
func (h *Handler) GetAirQuality(w http.ResponseWriter, r *http.Request) error {
	c, err := coordinatesFrom(r)
	if err != nil {
		return err
	}
	resp, err := h.services.AirQuality.GetAirQuality(r.Context(), c.Lat, c.Lon)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

// GetSummary handles GET /api/summary/{lat}/{lon}.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) error {
	c, err := coordinatesFrom(r)
	if err != nil {
		return err
	}
	resp, err := h.services.Summary.GetSummary(r.Context(), c.Lat, c.Lon)
	if err != nil {
		return err
	}
	if resp.AirQuality == nil {
		// Partial summary: keep it out of the response cache.
		w.Header().Set("Cache-Control", "no-store")
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

// Geocode handles GET /api/geocode?query=.
func (h *Handler) Geocode(w http.ResponseWriter, r *http.Request) error {
	q, err := geocodeQueryFrom(r)
	if err != nil {
		return err
	}
	results, err := h.services.Geocode.Geocode(r.Context(), q.Query)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, results)
	return nil
}

// GetTile handles GET /api/tiles/{layer}/{z}/{x}/{y}. Tiles bypass the
// response cache; browsers cache them through Cache-Control.
func (h *Handler) GetTile(w http.ResponseWriter, r *http.Request) error {
	p, err := tileParamsFrom(r)
	if err != nil {
		return err
	}
	tile, err := h.services.Tiles.GetTile(r.Context(), p.Layer, p.Z, p.X, p.Y)
	if err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).Warn("tile proxy error",
			zap.String("layer", p.Layer),
			zap.Int("z", p.Z), zap.Int("x", p.X), zap.Int("y", p.Y),
			zap.Error(err))
		return err
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", tile.CacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(tile.Data)))
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(tile.Data)
	return nil
}

// GetLayers handles GET /api/layers.
func (h *Handler) GetLayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Layers())
}

// GetCities handles GET /api/cities, optionally filtered by ?region=.
func (h *Handler) GetCities(w http.ResponseWriter, r *http.Request) {
	cities := catalog.CitiesInRegion(r.URL.Query().Get("region"))
	if cities == nil {
		cities = []catalog.City{}
	}
	writeJSON(w, http.StatusOK, cities)
}

// NotFound answers unknown routes in the API error format.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{
		Error:     "Not found",
		RequestID: observability.CorrelationID(r.Context()),
	})
}
