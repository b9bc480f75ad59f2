// Package catalog holds the static data the map frontend renders: the
// weather tile layers with their legend scales and the world city points
// plotted on the globe.
package catalog

// LegendStop is one colour band of a layer legend.
type LegendStop struct {
	Color string `json:"color"`
	Label string `json:"label"`
}

// Legend describes the colour scale of a tile layer.
type Legend struct {
	Title string       `json:"title"`
	Unit  string       `json:"unit"`
	Stops []LegendStop `json:"stops"`
}

// Layer is a weather overlay served through /api/tiles/{TileLayer}/...
type Layer struct {
	ID             string  `json:"id"`
	Label          string  `json:"label"`
	TileLayer      string  `json:"tile_layer"`
	DefaultOpacity float64 `json:"default_opacity"`
	Legend         Legend  `json:"legend"`
}

var layers = []Layer{
	{
		ID:             "temp",
		Label:          "Temperature",
		TileLayer:      "temp_new",
		DefaultOpacity: 0.6,
		Legend: Legend{
			Title: "Temperature",
			Unit:  "°C",
			Stops: []LegendStop{
				{"#821692", "-40"}, {"#0000ff", "-20"}, {"#00b4ff", "-10"}, {"#00ffff", "0"},
				{"#00ff00", "10"}, {"#ffff00", "20"}, {"#ff8c00", "30"}, {"#ff0000", "40"},
			},
		},
	},
	{
		ID:             "precipitation",
		Label:          "Precipitation",
		TileLayer:      "precipitation_new",
		DefaultOpacity: 0.6,
		Legend: Legend{
			Title: "Precipitation",
			Unit:  "mm",
			Stops: []LegendStop{
				{"transparent", "0"}, {"#00b4ff80", "0.5"}, {"#0064ff", "1"}, {"#3200ff", "2"},
				{"#9600c8", "5"}, {"#ff00ff", "10"}, {"#ff6400", "140"},
			},
		},
	},
	{
		ID:             "clouds",
		Label:          "Clouds",
		TileLayer:      "clouds_new",
		DefaultOpacity: 0.5,
		Legend: Legend{
			Title: "Cloud Cover",
			Unit:  "%",
			Stops: []LegendStop{
				{"#ffffff10", "0"}, {"#ffffff40", "25"}, {"#ffffff80", "50"},
				{"#ffffffb3", "75"}, {"#ffffffdd", "100"},
			},
		},
	},
	{
		ID:             "wind",
		Label:          "Wind Speed",
		TileLayer:      "wind_new",
		DefaultOpacity: 0.6,
		Legend: Legend{
			Title: "Wind Speed",
			Unit:  "m/s",
			Stops: []LegendStop{
				{"#ffffff40", "0"}, {"#aef1f9", "5"}, {"#96d4ea", "15"},
				{"#38a3d0", "25"}, {"#0c6cb1", "50"}, {"#c63d2f", "100"},
			},
		},
	},
	{
		ID:             "pressure",
		Label:          "Pressure",
		TileLayer:      "pressure_new",
		DefaultOpacity: 0.6,
		Legend: Legend{
			Title: "Sea-Level Pressure",
			Unit:  "hPa",
			Stops: []LegendStop{
				{"#0000cc", "940"}, {"#0066ff", "980"}, {"#00ff00", "1010"},
				{"#ffff00", "1030"}, {"#ff0000", "1070"},
			},
		},
	},
}

// Layers returns a copy of the layer catalogue in display order.
func Layers() []Layer {
	out := make([]Layer, len(layers))
	copy(out, layers)
	return out
}

// TileLayers returns the upstream tile layer names accepted by the tile proxy.
func TileLayers() []string {
	out := make([]string, 0, len(layers))
	for _, l := range layers {
		out = append(out, l.TileLayer)
	}
	return out
}

// IsTileLayer reports whether name is on the tile allow-list.
func IsTileLayer(name string) bool {
	for _, l := range layers {
		if l.TileLayer == name {
			return true
		}
	}
	return false
}
