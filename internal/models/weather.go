package models

// CurrentWeather is the present conditions block of a WeatherResponse.
type CurrentWeather struct {
	Temp          float64 `json:"temp"`
	FeelsLike     float64 `json:"feels_like"`
	Humidity      int     `json:"humidity"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection int     `json:"wind_direction"`
	CloudCover    int     `json:"cloud_cover"`
	Precipitation float64 `json:"precipitation"`
	Description   string  `json:"description"`
	Icon          string  `json:"icon"`
}

// ForecastDay is one day of the aggregated forecast.
type ForecastDay struct {
	Date        string `json:"date"`
	TempHigh    int    `json:"temp_high"`
	TempLow     int    `json:"temp_low"`
	RainChance  int    `json:"rain_chance"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// WeatherResponse is served by GET /api/weather/{lat}/{lon}.
type WeatherResponse struct {
	Lat      float64        `json:"lat"`
	Lon      float64        `json:"lon"`
	Location string         `json:"location"`
	Current  CurrentWeather `json:"current"`
	Forecast []ForecastDay  `json:"forecast"`
}

// SummaryResponse combines weather with best-effort air quality.
// AirQuality is omitted when the air-quality lookup failed.
type SummaryResponse struct {
	Weather    WeatherResponse `json:"weather"`
	AirQuality *AirQuality     `json:"air_quality,omitempty"`
}
