package service

import (
	"context"
	"encoding/base64"

	"github.com/kjstillabower/climate-tracker/internal/client"
)

// Cache-Control values for proxied tiles.
const (
	TileCacheControl      = "public, max-age=600"
	EmptyTileCacheControl = "public, max-age=60"
)

// transparentPNG is a 1x1 fully transparent PNG served for tiles the
// provider does not have.
var transparentPNG = mustDecode("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAAC0lEQVQI12NgAAIABQABNl7BcQAAAABJRU5ErkJggg==")

func mustDecode(s string) []byte {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Tile is a PNG image with the browser cache policy it should be served with.
type Tile struct {
	Data         []byte
	CacheControl string
	// Placeholder is true when Data is the transparent stand-in for a missing tile.
	Placeholder bool
}

// TileService proxies weather map tiles so the provider key stays server-side.
type TileService struct {
	client TileClient
}

// NewTileService creates a TileService.
func NewTileService(c TileClient) *TileService {
	return &TileService{client: c}
}

// GetTile fetches one tile. A provider 404 yields the transparent placeholder
// with a short cache lifetime; any other failure is returned.
func (s *TileService) GetTile(ctx context.Context, layer string, z, x, y int) (Tile, error) {
	data, err := s.client.Tile(ctx, layer, z, x, y)
	if err != nil {
		if ue, ok := client.IsUpstreamError(err); ok && ue.NotFound() {
			return Tile{Data: transparentPNG, CacheControl: EmptyTileCacheControl, Placeholder: true}, nil
		}
		return Tile{}, err
	}
	return Tile{Data: data, CacheControl: TileCacheControl}, nil
}
