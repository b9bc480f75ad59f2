package service

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/climate-tracker/internal/client"
	"github.com/kjstillabower/climate-tracker/internal/models"
)

// forecastDays is the number of days kept from the 5-day / 3-hour forecast.
const forecastDays = 5

// WeatherService combines current conditions with a daily forecast.
type WeatherService struct {
	client WeatherClient
}

// NewWeatherService creates a WeatherService.
func NewWeatherService(c WeatherClient) *WeatherService {
	return &WeatherService{client: c}
}

// GetWeather fetches current conditions and the forecast concurrently. If
// either call fails the whole request fails with that error.
func (s *WeatherService) GetWeather(ctx context.Context, lat, lon float64) (models.WeatherResponse, error) {
	var (
		current  client.CurrentResponse
		forecast client.ForecastResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.client.CurrentWeather(gctx, lat, lon)
		return err
	})
	g.Go(func() error {
		var err error
		forecast, err = s.client.Forecast(gctx, lat, lon)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.WeatherResponse{}, err
	}
	return buildWeather(current, forecast), nil
}

func buildWeather(c client.CurrentResponse, f client.ForecastResponse) models.WeatherResponse {
	var precipitation float64
	if c.Rain != nil && c.Rain.OneHour != nil {
		precipitation = *c.Rain.OneHour
	}
	cond := firstCondition(c.Weather)

	return models.WeatherResponse{
		Lat:      c.Coord.Lat,
		Lon:      c.Coord.Lon,
		Location: locationName(c),
		Current: models.CurrentWeather{
			Temp:          round1(c.Main.Temp),
			FeelsLike:     round1(c.Main.FeelsLike),
			Humidity:      c.Main.Humidity,
			WindSpeed:     c.Wind.Speed,
			WindDirection: c.Wind.Deg,
			CloudCover:    c.Clouds.All,
			Precipitation: precipitation,
			Description:   cond.Description,
			Icon:          cond.Icon,
		},
		Forecast: aggregateForecast(f.List),
	}
}

// locationName joins the non-empty city name and country code, falling back
// to the coordinates to two decimals.
func locationName(c client.CurrentResponse) string {
	parts := make([]string, 0, 2)
	if c.Name != "" {
		parts = append(parts, c.Name)
	}
	if c.Sys.Country != "" {
		parts = append(parts, c.Sys.Country)
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("%.2f, %.2f", c.Coord.Lat, c.Coord.Lon)
}

func firstCondition(conds []client.Condition) client.Condition {
	if len(conds) == 0 {
		return client.Condition{}
	}
	return conds[0]
}

// aggregateForecast groups 3-hour samples by calendar date in first-seen
// order and summarises at most forecastDays days. The 12:00 sample, or the
// day's first sample, supplies the description, icon and rain chance.
func aggregateForecast(items []client.ForecastItem) []models.ForecastDay {
	var order []string
	byDate := make(map[string][]client.ForecastItem)
	for _, item := range items {
		date, _, _ := strings.Cut(item.DtTxt, " ")
		if _, seen := byDate[date]; !seen {
			order = append(order, date)
		}
		byDate[date] = append(byDate[date], item)
	}
	if len(order) > forecastDays {
		order = order[:forecastDays]
	}

	days := make([]models.ForecastDay, 0, len(order))
	for _, date := range order {
		samples := byDate[date]
		high, low := samples[0].Main.Temp, samples[0].Main.Temp
		midday := samples[0]
		foundMidday := false
		for _, s := range samples {
			if s.Main.Temp > high {
				high = s.Main.Temp
			}
			if s.Main.Temp < low {
				low = s.Main.Temp
			}
			if !foundMidday && strings.Contains(s.DtTxt, "12:00") {
				midday = s
				foundMidday = true
			}
		}
		var pop float64
		if midday.Pop != nil {
			pop = *midday.Pop
		}
		cond := firstCondition(midday.Weather)
		days = append(days, models.ForecastDay{
			Date:        date,
			TempHigh:    int(roundHalfUp(high)),
			TempLow:     int(roundHalfUp(low)),
			RainChance:  int(roundHalfUp(pop * 100)),
			Description: cond.Description,
			Icon:        cond.Icon,
		})
	}
	return days
}
