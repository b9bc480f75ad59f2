package service

import (
	"context"
	"errors"

	"github.com/kjstillabower/climate-tracker/internal/models"
)

// ErrNoAirQualityData is returned when the provider answers with an empty list.
var ErrNoAirQualityData = errors.New("air quality: provider returned no data")

var aqiLabels = []string{"Good", "Fair", "Moderate", "Poor", "Very Poor"}

// AQILabel returns the label for an AQI on the 1..5 scale, or "Unknown".
func AQILabel(aqi int) string {
	if aqi < 1 || aqi > len(aqiLabels) {
		return "Unknown"
	}
	return aqiLabels[aqi-1]
}

// AirQualityService reports the current air quality index and pollutants.
type AirQualityService struct {
	client AirPollutionClient
}

// NewAirQualityService creates an AirQualityService.
func NewAirQualityService(c AirPollutionClient) *AirQualityService {
	return &AirQualityService{client: c}
}

// GetAirQuality returns the first entry of the provider's list.
func (s *AirQualityService) GetAirQuality(ctx context.Context, lat, lon float64) (models.AirQuality, error) {
	resp, err := s.client.AirPollution(ctx, lat, lon)
	if err != nil {
		return models.AirQuality{}, err
	}
	if len(resp.List) == 0 {
		return models.AirQuality{}, ErrNoAirQualityData
	}
	entry := resp.List[0]
	c := entry.Components
	return models.AirQuality{
		AQI:   entry.Main.AQI,
		Label: AQILabel(entry.Main.AQI),
		Components: models.PollutantComponents{
			CO:   c.CO,
			NO:   c.NO,
			NO2:  c.NO2,
			O3:   c.O3,
			SO2:  c.SO2,
			PM25: c.PM25,
			PM10: c.PM10,
			NH3:  c.NH3,
		},
	}, nil
}
