package service

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/kjstillabower/climate-tracker/internal/client"
)

type mockOpenWeather struct {
	current      string
	forecast     string
	airPollution string

	currentErr  error
	forecastErr error
	airErr      error

	currentCalls atomic.Int32
}

func (m *mockOpenWeather) CurrentWeather(ctx context.Context, lat, lon float64) (client.CurrentResponse, error) {
	m.currentCalls.Add(1)
	var out client.CurrentResponse
	if m.currentErr != nil {
		return out, m.currentErr
	}
	err := json.Unmarshal([]byte(m.current), &out)
	return out, err
}

func (m *mockOpenWeather) Forecast(ctx context.Context, lat, lon float64) (client.ForecastResponse, error) {
	var out client.ForecastResponse
	if m.forecastErr != nil {
		return out, m.forecastErr
	}
	err := json.Unmarshal([]byte(m.forecast), &out)
	return out, err
}

func (m *mockOpenWeather) AirPollution(ctx context.Context, lat, lon float64) (client.AirPollutionResponse, error) {
	var out client.AirPollutionResponse
	if m.airErr != nil {
		return out, m.airErr
	}
	err := json.Unmarshal([]byte(m.airPollution), &out)
	return out, err
}

const newYorkCurrent = `{
	"coord":{"lat":40.71,"lon":-74.01},
	"name":"New York","sys":{"country":"US"},
	"main":{"temp":21.349,"feels_like":20.96,"humidity":60},
	"wind":{"speed":3.6,"deg":200},"clouds":{"all":20},
	"weather":[{"description":"few clouds","icon":"02d"}]
}`

// Six calendar days of samples; the first day has no 12:00 sample.
const newYorkForecast = `{"list":[
	{"dt_txt":"2024-06-01 18:00:00","main":{"temp":22.4},"pop":0.1,"weather":[{"description":"clear sky","icon":"01n"}]},
	{"dt_txt":"2024-06-01 21:00:00","main":{"temp":19.6},"pop":0.3,"weather":[{"description":"few clouds","icon":"02n"}]},
	{"dt_txt":"2024-06-02 09:00:00","main":{"temp":18.2},"pop":0.0,"weather":[{"description":"mist","icon":"50d"}]},
	{"dt_txt":"2024-06-02 12:00:00","main":{"temp":24.5},"pop":0.456,"weather":[{"description":"light rain","icon":"10d"}]},
	{"dt_txt":"2024-06-02 15:00:00","main":{"temp":26.7},"pop":0.2,"weather":[{"description":"broken clouds","icon":"04d"}]},
	{"dt_txt":"2024-06-03 12:00:00","main":{"temp":-2.5},"weather":[{"description":"snow","icon":"13d"}]},
	{"dt_txt":"2024-06-04 12:00:00","main":{"temp":15},"pop":1,"weather":[{"description":"rain","icon":"10d"}]},
	{"dt_txt":"2024-06-05 12:00:00","main":{"temp":16},"pop":0,"weather":[{"description":"clear sky","icon":"01d"}]},
	{"dt_txt":"2024-06-06 12:00:00","main":{"temp":17},"pop":0,"weather":[{"description":"clear sky","icon":"01d"}]}
]}`
