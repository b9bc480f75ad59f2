package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSummaryService_GetSummary(t *testing.T) {
	m := &mockOpenWeather{
		current:      newYorkCurrent,
		forecast:     newYorkForecast,
		airPollution: `{"list":[{"main":{"aqi":2},"components":{}}]}`,
	}
	svc := NewSummaryService(NewWeatherService(m), NewAirQualityService(m), zap.NewNop())

	got, err := svc.GetSummary(context.Background(), 40.71, -74.01)
	if err != nil {
		t.Fatalf("GetSummary() error = %v", err)
	}
	if got.Weather.Location != "New York, US" {
		t.Errorf("Weather.Location = %q", got.Weather.Location)
	}
	if got.AirQuality == nil || got.AirQuality.Label != "Fair" {
		t.Errorf("AirQuality = %+v, want Fair", got.AirQuality)
	}
}

// TestSummaryService_AirQualityFailureOmitted verifies that air quality is
// best-effort: the summary succeeds without it and the failure is logged.
func TestSummaryService_AirQualityFailureOmitted(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := &mockOpenWeather{current: newYorkCurrent, forecast: newYorkForecast, airErr: errors.New("aq down")}
	svc := NewSummaryService(NewWeatherService(m), NewAirQualityService(m), zap.New(core))

	got, err := svc.GetSummary(context.Background(), 40.71, -74.01)
	if err != nil {
		t.Fatalf("GetSummary() error = %v", err)
	}
	if got.AirQuality != nil {
		t.Errorf("AirQuality = %+v, want nil", got.AirQuality)
	}
	if logs.FilterMessage("air quality unavailable for summary").Len() != 1 {
		t.Errorf("expected one warning, got %d logs", logs.Len())
	}
}

func TestSummaryService_WeatherFailureFails(t *testing.T) {
	want := errors.New("weather down")
	m := &mockOpenWeather{currentErr: want, forecast: newYorkForecast, airPollution: `{"list":[{"main":{"aqi":1}}]}`}
	svc := NewSummaryService(NewWeatherService(m), NewAirQualityService(m), nil)

	if _, err := svc.GetSummary(context.Background(), 1, 2); !errors.Is(err, want) {
		t.Errorf("GetSummary() error = %v, want %v", err, want)
	}
}
