package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kjstillabower/climate-tracker/internal/validation"
)

type paramsKey int

const (
	coordinatesKey paramsKey = iota
	geocodeQueryKey
	tileParamsKey
)

// validateWith runs parse against the request and answers 400 on failure.
// On success the parsed value is stored in the context under key, so the
// cache middleware and handler behind it only ever see valid requests.
func (h *Handler) validateWith(key paramsKey, parse func(r *http.Request) (any, error)) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v, err := parse(r)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), key, v)))
		})
	}
}

// ValidateCoordinates checks the {lat} and {lon} path variables.
func (h *Handler) ValidateCoordinates() mux.MiddlewareFunc {
	return h.validateWith(coordinatesKey, func(r *http.Request) (any, error) {
		return parseCoordinates(r)
	})
}

// ValidateGeocodeQuery checks the query parameter.
func (h *Handler) ValidateGeocodeQuery() mux.MiddlewareFunc {
	return h.validateWith(geocodeQueryKey, func(r *http.Request) (any, error) {
		return validation.ParseGeocodeQuery(r.URL.Query().Get("query"))
	})
}

// ValidateTileParams checks the tile path variables.
func (h *Handler) ValidateTileParams() mux.MiddlewareFunc {
	return h.validateWith(tileParamsKey, func(r *http.Request) (any, error) {
		return parseTileParams(r)
	})
}

func parseCoordinates(r *http.Request) (validation.Coordinates, error) {
	vars := mux.Vars(r)
	return validation.ParseCoordinates(vars["lat"], vars["lon"])
}

func parseTileParams(r *http.Request) (validation.TileParams, error) {
	vars := mux.Vars(r)
	return validation.ParseTileParams(vars["layer"], vars["z"], vars["x"], vars["y"])
}

// coordinatesFrom returns the validated coordinates, parsing them when the
// handler is mounted without the validation stage.
func coordinatesFrom(r *http.Request) (validation.Coordinates, error) {
	if c, ok := r.Context().Value(coordinatesKey).(validation.Coordinates); ok {
		return c, nil
	}
	return parseCoordinates(r)
}

func geocodeQueryFrom(r *http.Request) (validation.GeocodeQuery, error) {
	if q, ok := r.Context().Value(geocodeQueryKey).(validation.GeocodeQuery); ok {
		return q, nil
	}
	return validation.ParseGeocodeQuery(r.URL.Query().Get("query"))
}

func tileParamsFrom(r *http.Request) (validation.TileParams, error) {
	if p, ok := r.Context().Value(tileParamsKey).(validation.TileParams); ok {
		return p, nil
	}
	return parseTileParams(r)
}
