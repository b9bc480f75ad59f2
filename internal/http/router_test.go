package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/climate-tracker/internal/cache"
	"github.com/kjstillabower/climate-tracker/internal/client"
	"github.com/kjstillabower/climate-tracker/internal/models"
	"github.com/kjstillabower/climate-tracker/internal/service"
)

const newYorkCurrentJSON = `{
	"coord":{"lat":40.71,"lon":-74.01},
	"name":"New York","sys":{"country":"US"},
	"main":{"temp":22.46,"feels_like":22.81,"humidity":64},
	"wind":{"speed":3.6,"deg":200},"clouds":{"all":20},
	"weather":[{"description":"few clouds","icon":"02d"}]
}`

// forecastJSON returns six days of samples at 09:00, 12:00 and 15:00.
func forecastJSON() string {
	var items []string
	for d := 1; d <= 6; d++ {
		date := fmt.Sprintf("2024-06-%02d", d)
		items = append(items,
			fmt.Sprintf(`{"dt_txt":"%s 09:00:00","main":{"temp":%.1f},"pop":0.1,"weather":[{"description":"mist","icon":"50d"}]}`, date, 18.4+float64(d)),
			fmt.Sprintf(`{"dt_txt":"%s 12:00:00","main":{"temp":%.1f},"pop":0.35,"weather":[{"description":"clear sky","icon":"01d"}]}`, date, 24.6+float64(d)),
			fmt.Sprintf(`{"dt_txt":"%s 15:00:00","main":{"temp":%.1f},"pop":0.2,"weather":[{"description":"few clouds","icon":"02d"}]}`, date, 22.1+float64(d)),
		)
	}
	return `{"list":[` + strings.Join(items, ",") + `]}`
}

type e2eEnv struct {
	router   http.Handler
	redis    *miniredis.Miniredis
	store    *cache.RedisStore
	upstream atomic.Int32
}

// newE2EEnv wires real clients, services and a Redis store against a fake
// OpenWeatherMap server.
func newE2EEnv(t *testing.T, limiter *rate.Limiter, owm http.HandlerFunc) *e2eEnv {
	t.Helper()
	env := &e2eEnv{redis: miniredis.RunT(t)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.upstream.Add(1)
		owm(w, r)
	}))
	t.Cleanup(srv.Close)

	env.store = cache.NewRedisStore(cache.RedisConfig{URL: "redis://" + env.redis.Addr()}, zap.NewNop())
	t.Cleanup(func() { _ = env.store.Close() })
	env.store.Connect(context.Background())

	up := client.NewUpstream(client.Options{Timeout: 2 * time.Second})
	owmClient := client.NewOpenWeatherClient(up, "owm-key", srv.URL+"/data/2.5", srv.URL+"/map", time.Second)
	geoClient := client.NewMapTilerClient(up, "mt-key", srv.URL+"/geocoding")

	weather := service.NewWeatherService(owmClient)
	air := service.NewAirQualityService(owmClient)
	h := NewHandler(Services{
		Weather:    weather,
		AirQuality: air,
		Geocode:    service.NewGeocodeService(geoClient),
		Summary:    service.NewSummaryService(weather, air, zap.NewNop()),
		Tiles:      service.NewTileService(owmClient),
	}, env.store, HealthConfig{Version: "test"}, nil, zap.NewNop())

	env.router = NewRouter(RouterConfig{
		Handler:        h,
		Store:          env.store,
		Logger:         zap.NewNop(),
		InFlight:       &InFlightTracker{},
		Limiter:        limiter,
		RequestTimeout: 5 * time.Second,
		WeatherTTL:     30 * time.Minute,
	})
	return env
}

func openWeatherFixture(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/data/2.5/weather":
		_, _ = w.Write([]byte(newYorkCurrentJSON))
	case "/data/2.5/forecast":
		_, _ = w.Write([]byte(forecastJSON()))
	case "/map/temp_new/3/2/1.png":
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"cod":"404","message":"Internal error"}`))
	}
}

// TestRouter_WeatherEndToEnd requests /api/weather/40.71/-74.01 with an empty
// store, checks the composed response, and checks it is cached for 1800s.
func TestRouter_WeatherEndToEnd(t *testing.T) {
	env := newE2EEnv(t, nil, openWeatherFixture)

	w := do(env.router, "/api/weather/40.71/-74.01")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get(CacheHeader); got != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", got)
	}
	var resp models.WeatherResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Location != "New York, US" {
		t.Errorf("Location = %q, want New York, US", resp.Location)
	}
	if resp.Current.Temp != 22.5 {
		t.Errorf("Current.Temp = %v, want 22.5", resp.Current.Temp)
	}
	if len(resp.Forecast) != 5 {
		t.Fatalf("forecast days = %d, want 5", len(resp.Forecast))
	}
	first := resp.Forecast[0]
	want := models.ForecastDay{Date: "2024-06-01", TempHigh: 26, TempLow: 19, RainChance: 35, Description: "clear sky", Icon: "01d"}
	if first != want {
		t.Errorf("Forecast[0] = %+v, want %+v", first, want)
	}
	if last := resp.Forecast[4]; last.Date != "2024-06-05" {
		t.Errorf("Forecast[4].Date = %q, want 2024-06-05", last.Date)
	}

	key := "cache:/api/weather/40.71/-74.01"
	waitFor(t, func() bool { return env.redis.Exists(key) })
	stored, err := env.redis.Get(key)
	if err != nil {
		t.Fatalf("miniredis Get: %v", err)
	}
	if stored != w.Body.String() {
		t.Errorf("stored entry differs from response:\n got %s\nwant %s", stored, w.Body.String())
	}
	if ttl := env.redis.TTL(key); ttl != 1800*time.Second {
		t.Errorf("TTL = %v, want 1800s", ttl)
	}

	calls := env.upstream.Load()
	hit := do(env.router, "/api/weather/40.71/-74.01")
	if got := hit.Header().Get(CacheHeader); got != "HIT" {
		t.Errorf("second X-Cache = %q, want HIT", got)
	}
	if hit.Body.String() != w.Body.String() {
		t.Error("HIT body differs from MISS body")
	}
	if env.upstream.Load() != calls {
		t.Errorf("upstream called on HIT: %d -> %d", calls, env.upstream.Load())
	}
}

// TestRouter_StoreDownServesFromUpstream verifies requests succeed without a
// cache when Redis goes away.
func TestRouter_StoreDownServesFromUpstream(t *testing.T) {
	env := newE2EEnv(t, nil, openWeatherFixture)
	env.redis.Close()

	for i := 0; i < 3; i++ {
		w := do(env.router, "/api/weather/40.71/-74.01")
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, w.Code)
		}
		if w.Header().Get(CacheHeader) == "HIT" {
			t.Errorf("request %d served from cache", i)
		}
	}
	if env.upstream.Load() != 6 {
		t.Errorf("upstream calls = %d, want 6", env.upstream.Load())
	}
}

// TestRouter_UpstreamNotFoundIs502 verifies a provider 404 reaches the client as 502.
func TestRouter_UpstreamNotFoundIs502(t *testing.T) {
	env := newE2EEnv(t, nil, openWeatherFixture)

	w := do(env.router, "/api/air-quality/40.71/-74.01")

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "Upstream API error" || body["message"] != "Internal error" {
		t.Errorf("body = %v", body)
	}
	if env.redis.Exists("cache:/api/air-quality/40.71/-74.01") {
		t.Error("502 response was cached")
	}
}

const airPollutionJSON = `{"list":[{"main":{"aqi":2},"components":{"co":201.9,"no2":0.77,"o3":68.66,"pm2_5":0.5,"pm10":0.54}}]}`

// TestRouter_PartialSummaryNotCached verifies a summary without air quality
// is served but never stored, so the next request after air quality recovers
// gets the complete body.
func TestRouter_PartialSummaryNotCached(t *testing.T) {
	var airUp atomic.Bool
	env := newE2EEnv(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/data/2.5/air_pollution" && airUp.Load() {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(airPollutionJSON))
			return
		}
		openWeatherFixture(w, r)
	})
	key := "cache:/api/summary/40.71/-74.01"

	w := do(env.router, "/api/summary/40.71/-74.01")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	if _, ok := decodeBody(t, w)["air_quality"]; ok {
		t.Fatal("air_quality present, want omitted")
	}
	if env.redis.Exists(key) {
		t.Fatal("partial summary was cached")
	}

	airUp.Store(true)
	w = do(env.router, "/api/summary/40.71/-74.01")
	if got := w.Header().Get(CacheHeader); got != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", got)
	}
	if _, ok := decodeBody(t, w)["air_quality"]; !ok {
		t.Fatal("air_quality missing after recovery")
	}
	waitFor(t, func() bool { return env.redis.Exists(key) })
	if ttl := env.redis.TTL(key); ttl != 1800*time.Second {
		t.Errorf("TTL = %v, want 1800s", ttl)
	}
}

// TestRouter_TilePlaceholder verifies a missing tile is served as the
// transparent placeholder with the short cache lifetime.
func TestRouter_TilePlaceholder(t *testing.T) {
	env := newE2EEnv(t, nil, openWeatherFixture)

	w := do(env.router, "/api/tiles/temp_new/3/2/1")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Cache-Control"); got != service.EmptyTileCacheControl {
		t.Errorf("Cache-Control = %q, want %q", got, service.EmptyTileCacheControl)
	}
	if !strings.HasPrefix(w.Body.String(), "\x89PNG") {
		t.Error("body is not a PNG")
	}
}

// TestRouter_WarmerBypassesRateLimit verifies the cache warmer populates
// entries through the router even when clients are being limited.
func TestRouter_WarmerBypassesRateLimit(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	limiter.Allow()
	env := newE2EEnv(t, limiter, openWeatherFixture)

	if w := do(env.router, "/api/weather/40.71/-74.01"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("client request status = %d, want 429", w.Code)
	}

	warmer := cache.NewCacheWarmer(env.router, zap.NewNop())
	if err := warmer.Warm(context.Background(), []string{"/api/weather/40.71/-74.01"}); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	waitFor(t, func() bool { return env.redis.Exists("cache:/api/weather/40.71/-74.01") })
}

func TestRouter_Metrics(t *testing.T) {
	env := newE2EEnv(t, nil, openWeatherFixture)
	do(env.router, "/api/layers")

	w := do(env.router, "/metrics")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `httpRequestsTotal{method="GET",route="/api/layers",statusCode="2xx"}`) {
		t.Error("metrics missing /api/layers request count")
	}
}
