// Package validation checks request parameters before they reach the cache or
// the upstream providers, using a shared go-playground/validator instance.
package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/climate-tracker/internal/catalog"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Coordinates is a latitude/longitude pair from the path.
type Coordinates struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// GeocodeQuery is the free-text place search.
type GeocodeQuery struct {
	Query string `json:"query" validate:"required,min=2,max=100"`
}

// TileParams addresses one map tile of a weather layer.
type TileParams struct {
	Layer string `json:"layer" validate:"required,tilelayer"`
	Z     int    `json:"z" validate:"gte=0,lte=20"`
	X     int    `json:"x" validate:"gte=0"`
	Y     int    `json:"y" validate:"gte=0"`
}

// FieldError is one failed field, as reported to clients.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RequestValidationError collects every failed field of a request.
type RequestValidationError struct {
	errors []FieldError
}

// Details returns the failed fields in declaration order.
func (ve *RequestValidationError) Details() []FieldError {
	return ve.errors
}

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve.errors))
	for i, e := range ve.errors {
		messages[i] = e.Message
	}
	return strings.Join(messages, "; ")
}

// AsRequestValidationError reports whether err is a *RequestValidationError.
func AsRequestValidationError(err error) (*RequestValidationError, bool) {
	var ve *RequestValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// GetValidator returns the singleton validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("tilelayer", func(fl validator.FieldLevel) bool {
			return catalog.IsTileLayer(fl.Field().String())
		})
	})
	return validate
}

// ValidateStruct validates s and returns nil or a *RequestValidationError.
// The return type is error so a nil result compares equal to nil.
func ValidateStruct(s any) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{errors: []FieldError{{Field: "unknown", Message: err.Error()}}}
	}
	out := make([]FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		out[i] = FieldError{Field: fe.Field(), Message: translateError(fe)}
	}
	return &RequestValidationError{errors: out}
}

// ParseCoordinates converts path strings and validates the range.
func ParseCoordinates(lat, lon string) (Coordinates, error) {
	var (
		c    Coordinates
		errs []FieldError
		ok   bool
	)
	if c.Lat, ok = parseNumber(lat); !ok {
		errs = append(errs, FieldError{Field: "lat", Message: "lat must be a number"})
	}
	if c.Lon, ok = parseNumber(lon); !ok {
		errs = append(errs, FieldError{Field: "lon", Message: "lon must be a number"})
	}
	if len(errs) > 0 {
		return Coordinates{}, &RequestValidationError{errors: errs}
	}
	if err := ValidateStruct(&c); err != nil {
		return Coordinates{}, err
	}
	return c, nil
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ParseGeocodeQuery validates the raw query string value.
func ParseGeocodeQuery(query string) (GeocodeQuery, error) {
	q := GeocodeQuery{Query: query}
	if err := ValidateStruct(&q); err != nil {
		return GeocodeQuery{}, err
	}
	return q, nil
}

// ParseTileParams converts path strings and validates the layer and coordinates.
func ParseTileParams(layer, z, x, y string) (TileParams, error) {
	p := TileParams{Layer: layer}
	var errs []FieldError
	for _, f := range []struct {
		name string
		raw  string
		dst  *int
	}{{"z", z, &p.Z}, {"x", x, &p.X}, {"y", y, &p.Y}} {
		v, err := strconv.Atoi(f.raw)
		if err != nil {
			errs = append(errs, FieldError{Field: f.name, Message: f.name + " must be an integer"})
			continue
		}
		*f.dst = v
	}
	if len(errs) > 0 {
		if !catalog.IsTileLayer(layer) {
			errs = append([]FieldError{{Field: "layer", Message: "Invalid layer: " + layer}}, errs...)
		}
		return TileParams{}, &RequestValidationError{errors: errs}
	}
	if err := ValidateStruct(&p); err != nil {
		return TileParams{}, err
	}
	return p, nil
}

var errorMessageTemplates = map[string]string{
	"required": "%s is required",
}

var errorMessageWithParam = map[string]string{
	"gte": "%s must be >= %s",
	"lte": "%s must be <= %s",
}

// translateError converts a validator.FieldError to a client-facing message.
func translateError(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()

	if tag == "tilelayer" {
		return fmt.Sprintf("Invalid layer: %v", fe.Value())
	}
	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
