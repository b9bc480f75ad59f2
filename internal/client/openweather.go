package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Provider labels for metrics and circuit breakers.
const (
	ProviderOpenWeather = "openweathermap"
	ProviderTiles       = "openweathermap_tiles"
)

// CurrentResponse is the subset of /weather the service uses.
type CurrentResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Rain *struct {
		OneHour *float64 `json:"1h"`
	} `json:"rain"`
	Weather []Condition `json:"weather"`
}

// Condition is one entry of a "weather" array.
type Condition struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// ForecastItem is one 3-hour sample from /forecast.
type ForecastItem struct {
	DtTxt string `json:"dt_txt"`
	Main  struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Pop     *float64    `json:"pop"`
	Weather []Condition `json:"weather"`
}

// ForecastResponse is the subset of /forecast the service uses.
type ForecastResponse struct {
	List []ForecastItem `json:"list"`
}

// AirPollutionEntry is one entry of /air_pollution.
type AirPollutionEntry struct {
	Main struct {
		AQI int `json:"aqi"`
	} `json:"main"`
	Components struct {
		CO   float64 `json:"co"`
		NO   float64 `json:"no"`
		NO2  float64 `json:"no2"`
		O3   float64 `json:"o3"`
		SO2  float64 `json:"so2"`
		PM25 float64 `json:"pm2_5"`
		PM10 float64 `json:"pm10"`
		NH3  float64 `json:"nh3"`
	} `json:"components"`
}

// AirPollutionResponse is the /air_pollution body.
type AirPollutionResponse struct {
	List []AirPollutionEntry `json:"list"`
}

// OpenWeatherClient calls the OpenWeatherMap data and tile APIs.
type OpenWeatherClient struct {
	up          *Upstream
	apiKey      string
	baseURL     string
	tileURL     string
	tileTimeout time.Duration
}

// NewOpenWeatherClient creates a client. An empty apiKey is accepted here;
// each call then fails with ErrMissingAPIKey.
func NewOpenWeatherClient(up *Upstream, apiKey, baseURL, tileURL string, tileTimeout time.Duration) *OpenWeatherClient {
	up.RegisterProvider(ProviderOpenWeather)
	up.RegisterProvider(ProviderTiles)
	return &OpenWeatherClient{
		up:          up,
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		tileURL:     strings.TrimRight(tileURL, "/"),
		tileTimeout: tileTimeout,
	}
}

func (c *OpenWeatherClient) coordParams(lat, lon float64, metric bool) (url.Values, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openweathermap: %w", ErrMissingAPIKey)
	}
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("appid", c.apiKey)
	if metric {
		params.Set("units", "metric")
	}
	return params, nil
}

// CurrentWeather fetches current conditions in metric units.
func (c *OpenWeatherClient) CurrentWeather(ctx context.Context, lat, lon float64) (CurrentResponse, error) {
	var out CurrentResponse
	params, err := c.coordParams(lat, lon, true)
	if err != nil {
		return out, err
	}
	err = c.up.GetJSON(ctx, ProviderOpenWeather, c.baseURL+"/weather", params, &out)
	return out, err
}

// Forecast fetches the 5-day / 3-hour forecast in metric units.
func (c *OpenWeatherClient) Forecast(ctx context.Context, lat, lon float64) (ForecastResponse, error) {
	var out ForecastResponse
	params, err := c.coordParams(lat, lon, true)
	if err != nil {
		return out, err
	}
	err = c.up.GetJSON(ctx, ProviderOpenWeather, c.baseURL+"/forecast", params, &out)
	return out, err
}

// AirPollution fetches current air pollution.
func (c *OpenWeatherClient) AirPollution(ctx context.Context, lat, lon float64) (AirPollutionResponse, error) {
	var out AirPollutionResponse
	params, err := c.coordParams(lat, lon, false)
	if err != nil {
		return out, err
	}
	err = c.up.GetJSON(ctx, ProviderOpenWeather, c.baseURL+"/air_pollution", params, &out)
	return out, err
}

// Tile fetches one PNG map tile with the tile timeout.
func (c *OpenWeatherClient) Tile(ctx context.Context, layer string, z, x, y int) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openweathermap tiles: %w", ErrMissingAPIKey)
	}
	tileURL := fmt.Sprintf("%s/%s/%d/%d/%d.png", c.tileURL, url.PathEscape(layer), z, x, y)
	params := url.Values{}
	params.Set("appid", c.apiKey)
	return c.up.GetBytes(ctx, ProviderTiles, tileURL, params, c.tileTimeout)
}
