package models

// GeocodeResult is one match returned by GET /api/geocode.
type GeocodeResult struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Name     string  `json:"name"`
	Country  string  `json:"country"`
	FullName string  `json:"full_name"`
}
