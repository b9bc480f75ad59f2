package catalog

// City is a globe data point. Temp is a representative temperature in °C used
// for colour mapping before live data is loaded.
type City struct {
	Name   string  `json:"name"`
	Region string  `json:"region"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Temp   float64 `json:"temp"`
}

var cities = []City{
	{Name: "New York", Region: "Americas", Lat: 40.71, Lon: -74.01, Temp: 12},
	{Name: "Los Angeles", Region: "Americas", Lat: 34.05, Lon: -118.24, Temp: 22},
	{Name: "Chicago", Region: "Americas", Lat: 41.88, Lon: -87.63, Temp: 8},
	{Name: "Houston", Region: "Americas", Lat: 29.76, Lon: -95.37, Temp: 28},
	{Name: "Miami", Region: "Americas", Lat: 25.76, Lon: -80.19, Temp: 30},
	{Name: "Toronto", Region: "Americas", Lat: 43.65, Lon: -79.38, Temp: 5},
	{Name: "Mexico City", Region: "Americas", Lat: 19.43, Lon: -99.13, Temp: 18},
	{Name: "São Paulo", Region: "Americas", Lat: -23.55, Lon: -46.63, Temp: 24},
	{Name: "Buenos Aires", Region: "Americas", Lat: -34.6, Lon: -58.38, Temp: 16},
	{Name: "Lima", Region: "Americas", Lat: -12.05, Lon: -77.04, Temp: 20},
	{Name: "Bogotá", Region: "Americas", Lat: 4.71, Lon: -74.07, Temp: 14},
	{Name: "Santiago", Region: "Americas", Lat: -33.45, Lon: -70.67, Temp: 15},
	{Name: "Vancouver", Region: "Americas", Lat: 49.28, Lon: -123.12, Temp: 7},
	{Name: "Anchorage", Region: "Americas", Lat: 61.22, Lon: -149.9, Temp: -5},
	{Name: "London", Region: "Europe", Lat: 51.51, Lon: -0.13, Temp: 10},
	{Name: "Paris", Region: "Europe", Lat: 48.86, Lon: 2.35, Temp: 11},
	{Name: "Berlin", Region: "Europe", Lat: 52.52, Lon: 13.41, Temp: 8},
	{Name: "Madrid", Region: "Europe", Lat: 40.42, Lon: -3.7, Temp: 18},
	{Name: "Rome", Region: "Europe", Lat: 41.9, Lon: 12.5, Temp: 17},
	{Name: "Moscow", Region: "Europe", Lat: 55.76, Lon: 37.62, Temp: -2},
	{Name: "Istanbul", Region: "Europe", Lat: 41.01, Lon: 28.98, Temp: 13},
	{Name: "Athens", Region: "Europe", Lat: 37.98, Lon: 23.73, Temp: 19},
	{Name: "Oslo", Region: "Europe", Lat: 59.91, Lon: 10.75, Temp: 2},
	{Name: "Stockholm", Region: "Europe", Lat: 59.33, Lon: 18.07, Temp: 3},
	{Name: "Reykjavik", Region: "Europe", Lat: 64.15, Lon: -21.94, Temp: -1},
	{Name: "Lisbon", Region: "Europe", Lat: 38.72, Lon: -9.14, Temp: 17},
	{Name: "Warsaw", Region: "Europe", Lat: 52.23, Lon: 21.01, Temp: 6},
	{Name: "Budapest", Region: "Europe", Lat: 47.5, Lon: 19.04, Temp: 9},
	{Name: "Tokyo", Region: "Asia", Lat: 35.68, Lon: 139.69, Temp: 14},
	{Name: "Beijing", Region: "Asia", Lat: 39.9, Lon: 116.41, Temp: 10},
	{Name: "Shanghai", Region: "Asia", Lat: 31.23, Lon: 121.47, Temp: 16},
	{Name: "Mumbai", Region: "Asia", Lat: 19.08, Lon: 72.88, Temp: 32},
	{Name: "Delhi", Region: "Asia", Lat: 28.61, Lon: 77.21, Temp: 34},
	{Name: "Bangkok", Region: "Asia", Lat: 13.76, Lon: 100.5, Temp: 33},
	{Name: "Singapore", Region: "Asia", Lat: 1.35, Lon: 103.82, Temp: 31},
	{Name: "Seoul", Region: "Asia", Lat: 37.57, Lon: 126.98, Temp: 11},
	{Name: "Dubai", Region: "Asia", Lat: 25.2, Lon: 55.27, Temp: 38},
	{Name: "Tehran", Region: "Asia", Lat: 35.69, Lon: 51.39, Temp: 20},
	{Name: "Karachi", Region: "Asia", Lat: 24.86, Lon: 67.01, Temp: 30},
	{Name: "Jakarta", Region: "Asia", Lat: -6.21, Lon: 106.85, Temp: 30},
	{Name: "Hong Kong", Region: "Asia", Lat: 22.32, Lon: 114.17, Temp: 25},
	{Name: "Taipei", Region: "Asia", Lat: 25.03, Lon: 121.57, Temp: 23},
	{Name: "Osaka", Region: "Asia", Lat: 34.69, Lon: 135.5, Temp: 15},
	{Name: "Hanoi", Region: "Asia", Lat: 21.03, Lon: 105.85, Temp: 26},
	{Name: "Riyadh", Region: "Asia", Lat: 24.69, Lon: 46.72, Temp: 40},
	{Name: "Cairo", Region: "Africa", Lat: 30.04, Lon: 31.24, Temp: 26},
	{Name: "Lagos", Region: "Africa", Lat: 6.52, Lon: 3.38, Temp: 29},
	{Name: "Nairobi", Region: "Africa", Lat: -1.29, Lon: 36.82, Temp: 19},
	{Name: "Cape Town", Region: "Africa", Lat: -33.93, Lon: 18.42, Temp: 17},
	{Name: "Johannesburg", Region: "Africa", Lat: -26.2, Lon: 28.05, Temp: 18},
	{Name: "Casablanca", Region: "Africa", Lat: 33.57, Lon: -7.59, Temp: 19},
	{Name: "Addis Ababa", Region: "Africa", Lat: 9.02, Lon: 38.75, Temp: 16},
	{Name: "Accra", Region: "Africa", Lat: 5.56, Lon: -0.2, Temp: 28},
	{Name: "Dakar", Region: "Africa", Lat: 14.72, Lon: -17.47, Temp: 27},
	{Name: "Sydney", Region: "Oceania", Lat: -33.87, Lon: 151.21, Temp: 20},
	{Name: "Melbourne", Region: "Oceania", Lat: -37.81, Lon: 144.96, Temp: 15},
	{Name: "Auckland", Region: "Oceania", Lat: -36.85, Lon: 174.76, Temp: 14},
	{Name: "Perth", Region: "Oceania", Lat: -31.95, Lon: 115.86, Temp: 22},
	{Name: "Brisbane", Region: "Oceania", Lat: -27.47, Lon: 153.03, Temp: 24},
	{Name: "Brasília", Region: "Latin America", Lat: -15.79, Lon: -47.88, Temp: 22},
	{Name: "Rio de Janeiro", Region: "Latin America", Lat: -22.91, Lon: -43.17, Temp: 26},
	{Name: "Caracas", Region: "Latin America", Lat: 10.48, Lon: -66.88, Temp: 28},
	{Name: "Quito", Region: "Latin America", Lat: -0.23, Lon: -78.52, Temp: 14},
	{Name: "La Paz", Region: "Latin America", Lat: -16.5, Lon: -68.15, Temp: 9},
	{Name: "Sucre", Region: "Latin America", Lat: -19.04, Lon: -65.26, Temp: 14},
	{Name: "Asunción", Region: "Latin America", Lat: -25.29, Lon: -57.63, Temp: 27},
	{Name: "Montevideo", Region: "Latin America", Lat: -34.9, Lon: -56.19, Temp: 18},
	{Name: "Havana", Region: "Latin America", Lat: 23.13, Lon: -82.38, Temp: 28},
	{Name: "Panama City", Region: "Latin America", Lat: 8.99, Lon: -79.52, Temp: 30},
	{Name: "Guatemala City", Region: "Latin America", Lat: 14.64, Lon: -90.51, Temp: 18},
	{Name: "San José", Region: "Latin America", Lat: 9.93, Lon: -84.08, Temp: 22},
	{Name: "Tegucigalpa", Region: "Latin America", Lat: 14.1, Lon: -87.21, Temp: 26},
	{Name: "Managua", Region: "Latin America", Lat: 12.13, Lon: -86.28, Temp: 31},
	{Name: "San Salvador", Region: "Latin America", Lat: 13.69, Lon: -89.19, Temp: 28},
	{Name: "Santo Domingo", Region: "Latin America", Lat: 18.47, Lon: -69.9, Temp: 29},
	{Name: "Port-au-Prince", Region: "Latin America", Lat: 18.55, Lon: -72.34, Temp: 31},
	{Name: "Paramaribo", Region: "Latin America", Lat: 5.87, Lon: -55.17, Temp: 27},
	{Name: "Georgetown", Region: "Latin America", Lat: 6.8, Lon: -58.16, Temp: 28},
	{Name: "Medellín", Region: "Latin America", Lat: 6.24, Lon: -75.59, Temp: 22},
	{Name: "Cali", Region: "Latin America", Lat: 3.5, Lon: -76.52, Temp: 24},
	{Name: "Barranquilla", Region: "Latin America", Lat: 10.96, Lon: -74.8, Temp: 30},
	{Name: "Guayaquil", Region: "Latin America", Lat: -2.17, Lon: -79.92, Temp: 26},
	{Name: "Arequipa", Region: "Latin America", Lat: -16.41, Lon: -71.54, Temp: 15},
	{Name: "Rosario", Region: "Latin America", Lat: -32.94, Lon: -60.65, Temp: 20},
	{Name: "Córdoba", Region: "Latin America", Lat: -31.42, Lon: -64.18, Temp: 19},
	{Name: "Belo Horizonte", Region: "Latin America", Lat: -19.92, Lon: -43.94, Temp: 22},
	{Name: "Manaus", Region: "Latin America", Lat: -3.1, Lon: -60.03, Temp: 30},
	{Name: "Fortaleza", Region: "Latin America", Lat: -3.72, Lon: -38.54, Temp: 29},
	{Name: "Recife", Region: "Latin America", Lat: -8.05, Lon: -34.88, Temp: 28},
	{Name: "Curitiba", Region: "Latin America", Lat: -25.43, Lon: -49.27, Temp: 17},
	{Name: "Porto Alegre", Region: "Latin America", Lat: -30.01, Lon: -51.17, Temp: 19},
	{Name: "Belém", Region: "Latin America", Lat: -1.45, Lon: -48.48, Temp: 30},
	{Name: "San Juan", Region: "Latin America", Lat: 18.47, Lon: -66.11, Temp: 28},
}

// Cities returns a copy of the city catalogue.
func Cities() []City {
	out := make([]City, len(cities))
	copy(out, cities)
	return out
}

// CitiesInRegion returns the cities whose region matches exactly.
// An empty region returns every city.
func CitiesInRegion(region string) []City {
	if region == "" {
		return Cities()
	}
	var out []City
	for _, c := range cities {
		if c.Region == region {
			out = append(out, c)
		}
	}
	return out
}
