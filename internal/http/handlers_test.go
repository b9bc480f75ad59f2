package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/climate-tracker/internal/cache"
	"github.com/kjstillabower/climate-tracker/internal/catalog"
	"github.com/kjstillabower/climate-tracker/internal/client"
	"github.com/kjstillabower/climate-tracker/internal/models"
	"github.com/kjstillabower/climate-tracker/internal/service"
	"github.com/kjstillabower/climate-tracker/internal/traffic"
)

type stubWeather struct {
	resp  models.WeatherResponse
	err   error
	calls int
	lat   float64
	lon   float64
}

func (s *stubWeather) GetWeather(ctx context.Context, lat, lon float64) (models.WeatherResponse, error) {
	s.calls++
	s.lat, s.lon = lat, lon
	return s.resp, s.err
}

type stubAirQuality struct {
	resp models.AirQuality
	err  error
}

func (s *stubAirQuality) GetAirQuality(ctx context.Context, lat, lon float64) (models.AirQuality, error) {
	return s.resp, s.err
}

type stubGeocoder struct {
	results []models.GeocodeResult
	err     error
	query   string
}

func (s *stubGeocoder) Geocode(ctx context.Context, query string) ([]models.GeocodeResult, error) {
	s.query = query
	return s.results, s.err
}

type stubSummary struct {
	resp models.SummaryResponse
	err  error
}

func (s *stubSummary) GetSummary(ctx context.Context, lat, lon float64) (models.SummaryResponse, error) {
	return s.resp, s.err
}

type stubTiles struct {
	tile  service.Tile
	err   error
	calls int
}

func (s *stubTiles) GetTile(ctx context.Context, layer string, z, x, y int) (service.Tile, error) {
	s.calls++
	return s.tile, s.err
}

type testEnv struct {
	weather *stubWeather
	air     *stubAirQuality
	geo     *stubGeocoder
	summary *stubSummary
	tiles   *stubTiles
	store   *fakeStore
	tracker *traffic.Tracker
	handler *Handler
	router  http.Handler
	logs    *observer.ObservedLogs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	env := &testEnv{
		weather: &stubWeather{resp: models.WeatherResponse{Lat: 40.71, Lon: -74.01, Location: "New York, US", Forecast: []models.ForecastDay{}}},
		air:     &stubAirQuality{resp: models.AirQuality{AQI: 2, Label: "Fair"}},
		geo:     &stubGeocoder{results: []models.GeocodeResult{{Lat: 48.85, Lon: 2.35, Name: "Paris", Country: "France", FullName: "Paris, France"}}},
		summary: &stubSummary{},
		tiles:   &stubTiles{tile: service.Tile{Data: []byte("\x89PNG\r\n\x1a\n"), CacheControl: service.TileCacheControl}},
		store:   newFakeStore(),
		tracker: traffic.NewTracker(),
		logs:    logs,
	}
	env.handler = NewHandler(Services{
		Weather:    env.weather,
		AirQuality: env.air,
		Geocode:    env.geo,
		Summary:    env.summary,
		Tiles:      env.tiles,
	}, env.store, HealthConfig{
		Version:              "test",
		DegradedWindow:       time.Minute,
		DegradedErrorPct:     50,
		OverloadWindow:       time.Minute,
		OverloadThresholdPct: 20,
		RateLimitRPS:         1,
	}, env.tracker, logger)
	env.router = NewRouter(RouterConfig{
		Handler:    env.handler,
		Store:      env.store,
		Logger:     logger,
		CORSOrigin: "http://localhost:3000",
	})
	return env
}

func (e *testEnv) get(target string) *httptest.ResponseRecorder {
	return do(e.router, target)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return m
}

func TestHandler_GetWeather_Success(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/api/weather/40.71/-74.01")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	if env.weather.lat != 40.71 || env.weather.lon != -74.01 {
		t.Errorf("service called with (%v, %v), want (40.71, -74.01)", env.weather.lat, env.weather.lon)
	}
	if strings.HasSuffix(w.Body.String(), "\n") {
		t.Error("body ends with a newline; cached and fresh bodies would differ")
	}
	var got models.WeatherResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Location != "New York, US" {
		t.Errorf("Location = %q, want New York, US", got.Location)
	}
}

// TestHandler_ValidationBeforeCache verifies an invalid request is answered
// with 400 before the store or the service is touched.
func TestHandler_ValidationBeforeCache(t *testing.T) {
	tests := []struct {
		name   string
		target string
		field  string
	}{
		{"latitude out of range", "/api/weather/91/0", "lat"},
		{"longitude not a number", "/api/air-quality/10/east", "lon"},
		{"summary latitude", "/api/summary/-90.5/0", "lat"},
		{"geocode missing query", "/api/geocode", "query"},
		{"geocode too short", "/api/geocode?query=a", "query"},
		{"tile zoom too deep", "/api/tiles/temp_new/21/0/0", "z"},
		{"tile unknown layer", "/api/tiles/snow_new/1/0/0", "layer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.get(tt.target)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body %s", w.Code, w.Body.String())
			}
			body := decodeBody(t, w)
			if body["error"] != "Validation failed" {
				t.Errorf("error = %v, want Validation failed", body["error"])
			}
			details, _ := body["details"].([]any)
			if len(details) == 0 {
				t.Fatalf("details missing: %v", body)
			}
			first, _ := details[0].(map[string]any)
			if first["field"] != tt.field {
				t.Errorf("details[0].field = %v, want %s", first["field"], tt.field)
			}
			if gets, sets := env.store.counts(); gets != 0 || sets != 0 {
				t.Errorf("store touched: gets=%d sets=%d", gets, sets)
			}
			if env.weather.calls != 0 || env.tiles.calls != 0 {
				t.Error("service invoked for invalid request")
			}
			if got := w.Header().Get(CacheHeader); got != "" {
				t.Errorf("X-Cache = %q, want none", got)
			}
		})
	}
}

func TestHandler_Geocode(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/api/geocode?query=Paris")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if env.geo.query != "Paris" {
		t.Errorf("query = %q, want Paris", env.geo.query)
	}
	var got []models.GeocodeResult
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].FullName != "Paris, France" {
		t.Errorf("results = %+v", got)
	}
}

func TestHandler_GetSummary_OmitsAirQuality(t *testing.T) {
	env := newTestEnv(t)
	env.summary.resp = models.SummaryResponse{Weather: env.weather.resp}

	w := env.get("/api/summary/40.71/-74.01")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if _, ok := decodeBody(t, w)["air_quality"]; ok {
		t.Error("air_quality present, want omitted")
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if _, sets := env.store.counts(); sets != 0 {
		t.Errorf("sets = %d, want 0", sets)
	}
}

func TestHandler_GetSummary_CompleteIsCacheable(t *testing.T) {
	env := newTestEnv(t)
	env.summary.resp = models.SummaryResponse{Weather: env.weather.resp, AirQuality: &models.AirQuality{AQI: 2, Label: "Fair"}}

	w := env.get("/api/summary/40.71/-74.01")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Cache-Control"); got != "" {
		t.Errorf("Cache-Control = %q, want unset", got)
	}
	waitFor(t, func() bool {
		_, sets := env.store.counts()
		return sets == 1
	})
}

func TestHandler_GetTile(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/api/tiles/temp_new/3/2/1")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "public, max-age=600" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := w.Header().Get(CacheHeader); got != "" {
		t.Errorf("tile X-Cache = %q, want none", got)
	}
	if gets, _ := env.store.counts(); gets != 0 {
		t.Errorf("tile route looked up the store %d times", gets)
	}
	if w.Body.String() != "\x89PNG\r\n\x1a\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}

// TestHandler_GetTile_UpstreamFailure verifies a failed tile fetch is logged
// as a tile proxy error and normalized to 502.
func TestHandler_GetTile_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.tiles.err = &client.UpstreamError{Provider: client.ProviderTiles, URL: "https://tile.example/map/temp_new/3/2/1.png", StatusCode: http.StatusInternalServerError}

	w := env.get("/api/tiles/temp_new/3/2/1")

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
	if env.logs.FilterMessage("tile proxy error").Len() != 1 {
		t.Errorf("expected one tile proxy error log, got %v", env.logs.All())
	}
}

func TestHandler_GetIndex(t *testing.T) {
	env := newTestEnv(t)

	body := decodeBody(t, env.get("/api"))

	if body["message"] != "Climate Tracker API" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestHandler_GetLayers(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/api/layers")

	var got []catalog.Layer
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(catalog.Layers()) {
		t.Errorf("layers = %d, want %d", len(got), len(catalog.Layers()))
	}
}

func TestHandler_GetCities(t *testing.T) {
	env := newTestEnv(t)

	var all []catalog.City
	if err := json.Unmarshal(env.get("/api/cities").Body.Bytes(), &all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(all) != len(catalog.Cities()) {
		t.Errorf("cities = %d, want %d", len(all), len(catalog.Cities()))
	}

	w := env.get("/api/cities?region=Atlantis")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("unknown region body = %q, want []", w.Body.String())
	}
}

func TestHandler_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/api/unknown")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if decodeBody(t, w)["error"] != "Not found" {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestHandler_GetHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/health")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"].(string)); err != nil {
		t.Errorf("timestamp %v not RFC3339: %v", body["timestamp"], err)
	}
	checks := body["checks"].(map[string]any)
	if checks["cache"] != "healthy" || checks["upstream"] != "healthy" {
		t.Errorf("checks = %v", checks)
	}
}

// TestHandler_GetHealth_CacheDownIsNotUnhealthy verifies the service stays
// healthy while the store is unavailable.
func TestHandler_GetHealth_CacheDownIsNotUnhealthy(t *testing.T) {
	env := newTestEnv(t)
	env.store.setReady(false)

	w := env.get("/health")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if checks := decodeBody(t, w)["checks"].(map[string]any); checks["cache"] != "unhealthy" {
		t.Errorf("checks.cache = %v, want unhealthy", checks["cache"])
	}
}

func TestHandler_GetHealth_CacheDisabled(t *testing.T) {
	h := NewHandler(Services{}, cache.NopStore{}, HealthConfig{}, nil, nil)
	w := httptest.NewRecorder()

	h.GetHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if checks := decodeBody(t, w)["checks"].(map[string]any); checks["cache"] != "disabled" {
		t.Errorf("checks.cache = %v, want disabled", checks["cache"])
	}
}

// TestHandler_GetHealth_Degraded verifies upstream failures past the
// threshold turn health to degraded with 503, and a transition is logged.
func TestHandler_GetHealth_Degraded(t *testing.T) {
	env := newTestEnv(t)
	env.get("/health")

	env.weather.err = &client.UpstreamError{Provider: client.ProviderOpenWeather, URL: "https://api.example/weather", StatusCode: http.StatusServiceUnavailable}
	env.get("/api/weather/1/1")
	env.get("/api/weather/2/2")

	w := env.get("/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", body["status"])
	}
	if checks := body["checks"].(map[string]any); checks["upstream"] != "unhealthy" {
		t.Errorf("checks.upstream = %v, want unhealthy", checks["upstream"])
	}
	if env.logs.FilterMessage("health status transition").Len() != 1 {
		t.Errorf("expected one transition log, got %d", env.logs.FilterMessage("health status transition").Len())
	}
}

func TestHandler_GetHealth_ShuttingDown(t *testing.T) {
	env := newTestEnv(t)
	env.handler.SetShuttingDown(true)

	w := env.get("/health")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "shutting-down" {
		t.Errorf("status = %v, want shutting-down", body["status"])
	}
}

// TestHandler_GetHealth_Overloaded verifies rate-limit denials beyond the
// configured share of admitted capacity report overloaded, ahead of degraded.
func TestHandler_GetHealth_Overloaded(t *testing.T) {
	env := newTestEnv(t)

	// 1 rps over 1m at 20% allows 12 denials.
	for i := 0; i < 12; i++ {
		env.tracker.RecordDenied()
	}
	if w := env.get("/health"); w.Code != http.StatusOK {
		t.Fatalf("status at threshold = %d, want 200", w.Code)
	}

	env.tracker.RecordDenied()
	env.tracker.RecordError()

	w := env.get("/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "overloaded" {
		t.Errorf("status = %v, want overloaded", body["status"])
	}
}

// TestHandler_OutcomesFeedTracker verifies only upstream failures count as
// errors; validation failures and missing keys do not.
func TestHandler_OutcomesFeedTracker(t *testing.T) {
	env := newTestEnv(t)
	env.get("/api/weather/1/1")
	env.get("/api/weather/999/1")

	env.weather.err = errors.Join(client.ErrMissingAPIKey)
	env.get("/api/weather/2/2")

	env.weather.err = &client.UpstreamError{Provider: client.ProviderOpenWeather, StatusCode: http.StatusBadGateway}
	env.get("/api/weather/3/3")

	errs, total := env.tracker.ErrorRate(time.Minute)
	if errs != 1 || total != 2 {
		t.Errorf("ErrorRate() = (%d, %d), want (1, 2)", errs, total)
	}
}
