package models

// PollutantComponents holds concentrations in μg/m³.
type PollutantComponents struct {
	CO   float64 `json:"co"`
	NO   float64 `json:"no"`
	NO2  float64 `json:"no2"`
	O3   float64 `json:"o3"`
	SO2  float64 `json:"so2"`
	PM25 float64 `json:"pm2_5"`
	PM10 float64 `json:"pm10"`
	NH3  float64 `json:"nh3"`
}

// AirQuality is served by GET /api/air-quality/{lat}/{lon}.
// AQI is on the 1 (good) to 5 (very poor) scale.
type AirQuality struct {
	AQI        int                 `json:"aqi"`
	Label      string              `json:"label"`
	Components PollutantComponents `json:"components"`
}
