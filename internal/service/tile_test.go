package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/kjstillabower/climate-tracker/internal/client"
)

type mockTiles struct {
	data []byte
	err  error
}

func (m *mockTiles) Tile(ctx context.Context, layer string, z, x, y int) ([]byte, error) {
	return m.data, m.err
}

func TestTileService_Success(t *testing.T) {
	got, err := NewTileService(&mockTiles{data: []byte("png")}).GetTile(context.Background(), "temp_new", 1, 0, 0)
	if err != nil {
		t.Fatalf("GetTile() error = %v", err)
	}
	if string(got.Data) != "png" || got.CacheControl != "public, max-age=600" || got.Placeholder {
		t.Errorf("GetTile() = %+v", got)
	}
}

// TestTileService_NotFoundPlaceholder verifies a provider 404 becomes the
// 1x1 RGBA placeholder PNG with the short cache lifetime.
func TestTileService_NotFoundPlaceholder(t *testing.T) {
	m := &mockTiles{err: &client.UpstreamError{Provider: client.ProviderTiles, StatusCode: 404}}
	got, err := NewTileService(m).GetTile(context.Background(), "temp_new", 1, 0, 0)
	if err != nil {
		t.Fatalf("GetTile() error = %v", err)
	}
	if !got.Placeholder || got.CacheControl != "public, max-age=60" {
		t.Errorf("GetTile() = %+v, want placeholder", got)
	}
	data := got.Data
	if !bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatalf("placeholder missing PNG signature: %x", data[:8])
	}
	// IHDR starts at offset 8: length, type, width, height, bit depth, colour type.
	if string(data[12:16]) != "IHDR" {
		t.Fatalf("first chunk = %q, want IHDR", data[12:16])
	}
	w, h := binary.BigEndian.Uint32(data[16:20]), binary.BigEndian.Uint32(data[20:24])
	if w != 1 || h != 1 {
		t.Errorf("placeholder size = %dx%d, want 1x1", w, h)
	}
	if colourType := data[25]; colourType != 6 {
		t.Errorf("colour type = %d, want 6 (RGBA)", colourType)
	}
	if len(data) != 67 {
		t.Errorf("len = %d, want 67", len(data))
	}
}

func TestTileService_OtherErrorsPropagate(t *testing.T) {
	upErr := &client.UpstreamError{Provider: client.ProviderTiles, StatusCode: 500}
	_, err := NewTileService(&mockTiles{err: upErr}).GetTile(context.Background(), "temp_new", 1, 0, 0)
	if !errors.Is(err, upErr) {
		t.Errorf("GetTile() error = %v, want %v", err, upErr)
	}
}
