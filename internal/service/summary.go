package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/climate-tracker/internal/models"
	"github.com/kjstillabower/climate-tracker/internal/observability"
)

// SummaryService serves weather and air quality for one location together.
type SummaryService struct {
	weather    *WeatherService
	airQuality *AirQualityService
	logger     *zap.Logger
}

// NewSummaryService creates a SummaryService.
func NewSummaryService(weather *WeatherService, airQuality *AirQualityService, logger *zap.Logger) *SummaryService {
	return &SummaryService{weather: weather, airQuality: airQuality, logger: logger}
}

// GetSummary fetches both concurrently. A weather failure fails the request;
// an air-quality failure is logged and leaves AirQuality nil.
func (s *SummaryService) GetSummary(ctx context.Context, lat, lon float64) (models.SummaryResponse, error) {
	var (
		g       errgroup.Group
		weather models.WeatherResponse
		aq      models.AirQuality
		aqErr   error
	)
	g.Go(func() error {
		var err error
		weather, err = s.weather.GetWeather(ctx, lat, lon)
		return err
	})
	g.Go(func() error {
		aq, aqErr = s.airQuality.GetAirQuality(ctx, lat, lon)
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.SummaryResponse{}, err
	}

	out := models.SummaryResponse{Weather: weather}
	if aqErr != nil {
		observability.LoggerFromContext(ctx, s.logger).Warn("air quality unavailable for summary",
			zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Error(aqErr))
	} else {
		out.AirQuality = &aq
	}
	return out, nil
}
