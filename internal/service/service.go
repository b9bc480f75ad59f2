// Package service turns provider responses into the API's response models.
// Services hold no cache state; response caching happens in the HTTP layer.
package service

import (
	"context"
	"math"

	"github.com/kjstillabower/climate-tracker/internal/client"
)

// WeatherClient is the subset of the OpenWeatherMap client used for weather.
type WeatherClient interface {
	CurrentWeather(ctx context.Context, lat, lon float64) (client.CurrentResponse, error)
	Forecast(ctx context.Context, lat, lon float64) (client.ForecastResponse, error)
}

// AirPollutionClient is the subset of the OpenWeatherMap client used for air quality.
type AirPollutionClient interface {
	AirPollution(ctx context.Context, lat, lon float64) (client.AirPollutionResponse, error)
}

// GeocodeClient performs forward geocoding.
type GeocodeClient interface {
	Geocode(ctx context.Context, query string) (client.GeocodeResponse, error)
}

// TileClient fetches map tile images.
type TileClient interface {
	Tile(ctx context.Context, layer string, z, x, y int) ([]byte, error)
}

// roundHalfUp rounds to the nearest integer with halves going towards +Inf,
// so -2.5 becomes -2.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

// round1 rounds to one decimal place with roundHalfUp semantics.
func round1(v float64) float64 {
	return roundHalfUp(v*10) / 10
}
