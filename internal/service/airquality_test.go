package service

import (
	"context"
	"errors"
	"testing"
)

func TestAQILabel(t *testing.T) {
	tests := []struct {
		aqi  int
		want string
	}{
		{1, "Good"},
		{2, "Fair"},
		{3, "Moderate"},
		{4, "Poor"},
		{5, "Very Poor"},
		{0, "Unknown"},
		{6, "Unknown"},
	}
	for _, tt := range tests {
		if got := AQILabel(tt.aqi); got != tt.want {
			t.Errorf("AQILabel(%d) = %q, want %q", tt.aqi, got, tt.want)
		}
	}
}

func TestAirQualityService_GetAirQuality(t *testing.T) {
	m := &mockOpenWeather{airPollution: `{"list":[
		{"main":{"aqi":3},"components":{"co":201.94,"no":0.02,"no2":0.77,"o3":68.66,"so2":0.64,"pm2_5":0.5,"pm10":0.54,"nh3":0.12}},
		{"main":{"aqi":1},"components":{}}
	]}`}

	got, err := NewAirQualityService(m).GetAirQuality(context.Background(), 50, 50)
	if err != nil {
		t.Fatalf("GetAirQuality() error = %v", err)
	}
	if got.AQI != 3 || got.Label != "Moderate" {
		t.Errorf("AQI/Label = %d/%q, want 3/Moderate", got.AQI, got.Label)
	}
	if got.Components.CO != 201.94 || got.Components.PM25 != 0.5 || got.Components.NH3 != 0.12 {
		t.Errorf("Components = %+v", got.Components)
	}
}

func TestAirQualityService_EmptyList(t *testing.T) {
	m := &mockOpenWeather{airPollution: `{"list":[]}`}
	_, err := NewAirQualityService(m).GetAirQuality(context.Background(), 0, 0)
	if !errors.Is(err, ErrNoAirQualityData) {
		t.Errorf("GetAirQuality() error = %v, want ErrNoAirQualityData", err)
	}
}
