package service

import (
	"context"
	"strings"

	"github.com/kjstillabower/climate-tracker/internal/client"
	"github.com/kjstillabower/climate-tracker/internal/models"
)

// GeocodeService resolves place names to coordinates.
type GeocodeService struct {
	client GeocodeClient
}

// NewGeocodeService creates a GeocodeService.
func NewGeocodeService(c GeocodeClient) *GeocodeService {
	return &GeocodeService{client: c}
}

// Geocode returns the provider's matches in order. The result is never nil.
func (s *GeocodeService) Geocode(ctx context.Context, query string) ([]models.GeocodeResult, error) {
	resp, err := s.client.Geocode(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]models.GeocodeResult, 0, len(resp.Features))
	for _, f := range resp.Features {
		// center is [lon, lat]
		if len(f.Center) < 2 {
			continue
		}
		out = append(out, models.GeocodeResult{
			Lat:      f.Center[1],
			Lon:      f.Center[0],
			Name:     f.Text,
			Country:  countryOf(f.Context),
			FullName: f.PlaceName,
		})
	}
	return out, nil
}

func countryOf(ctx []client.GeocodeContext) string {
	for _, c := range ctx {
		if strings.HasPrefix(c.ID, "country") {
			return c.Text
		}
	}
	return ""
}
