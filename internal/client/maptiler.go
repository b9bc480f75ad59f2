package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// ProviderMapTiler is the metrics and circuit breaker label for MapTiler geocoding.
const ProviderMapTiler = "maptiler"

// GeocodeContext is one entry of a feature's context hierarchy.
type GeocodeContext struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// GeocodeFeature is one forward geocoding match. Center is [lon, lat].
type GeocodeFeature struct {
	Text      string           `json:"text"`
	PlaceName string           `json:"place_name"`
	Center    []float64        `json:"center"`
	Context   []GeocodeContext `json:"context"`
}

// GeocodeResponse is the MapTiler geocoding body.
type GeocodeResponse struct {
	Features []GeocodeFeature `json:"features"`
}

// MapTilerClient calls the MapTiler geocoding API.
type MapTilerClient struct {
	up      *Upstream
	apiKey  string
	baseURL string
}

// NewMapTilerClient creates a client. An empty apiKey is accepted here;
// each call then fails with ErrMissingAPIKey.
func NewMapTilerClient(up *Upstream, apiKey, baseURL string) *MapTilerClient {
	up.RegisterProvider(ProviderMapTiler)
	return &MapTilerClient{up: up, apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/")}
}

// Geocode runs a forward search limited to 5 place, district, region or
// country matches.
func (c *MapTilerClient) Geocode(ctx context.Context, query string) (GeocodeResponse, error) {
	var out GeocodeResponse
	if c.apiKey == "" {
		return out, fmt.Errorf("maptiler: %w", ErrMissingAPIKey)
	}
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("limit", "5")
	params.Set("types", "place,district,region,country")

	endpoint := c.baseURL + "/" + url.PathEscape(query) + ".json"
	err := c.up.GetJSON(ctx, ProviderMapTiler, endpoint, params, &out)
	return out, err
}
