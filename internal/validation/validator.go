// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package validation provides struct validation using go-playground/validator
// v10. It exposes a thread-safe singleton instance with custom validators for
// geospatial inputs.
//
// Custom tags:
//   - bbox: a "west,south,east,north" string in WGS84 degrees
//   - stac_datetime: an RFC3339 instant or a "start/end" interval where
//     either side may be open ("..")
//
// Example:
//
//	type ItemsRequest struct {
//	    Limit    int    `validate:"min=1,max=1000"`
//	    BBox     string `validate:"omitempty,bbox"`
//	    Datetime string `validate:"omitempty,stac_datetime"`
//	}
package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	field   string
	tag     string
	param   string
	message string
}

// Field returns the struct field name that failed validation.
func (e *ValidationError) Field() string { return e.field }

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string { return e.tag }

// Error returns a human-readable error message.
func (e *ValidationError) Error() string { return e.message }

// RequestValidationError is a collection of field validation failures.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the slice of validation errors.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// Error implements the error interface with a combined message.
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}

	messages := make([]string, 0, len(ve.errors))
	for _, err := range ve.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// GetValidator returns the singleton validator instance. Thread-safe; the
// instance caches struct metadata across calls.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Registration only fails for an empty tag or nil func.
		_ = validate.RegisterValidation("bbox", validateBBoxTag)
		_ = validate.RegisterValidation("stac_datetime", validateDatetimeTag)
	})

	return validate
}

// ValidateStruct validates a struct using the singleton validator.
// Returns nil when validation passes.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{
			errors: []ValidationError{{field: "unknown", tag: "unknown", message: err.Error()}},
		}
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			message: translateError(fieldErr),
		}
	}

	return &RequestValidationError{errors: fieldErrors}
}

func validateBBoxTag(fl validator.FieldLevel) bool {
	_, err := ParseBBox(fl.Field().String())
	return err == nil
}

func validateDatetimeTag(fl validator.FieldLevel) bool {
	return ValidDatetime(fl.Field().String())
}

// ParseBBox parses a "west,south,east,north" string into four coordinates,
// checking WGS84 bounds and axis ordering.
func ParseBBox(s string) ([4]float64, error) {
	var bbox [4]float64

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return bbox, fmt.Errorf("bbox must have 4 comma-separated values, got %d", len(parts))
	}

	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return bbox, fmt.Errorf("bbox value %q is not a number", p)
		}
		bbox[i] = v
	}

	west, south, east, north := bbox[0], bbox[1], bbox[2], bbox[3]
	if west < -180 || west > 180 || east < -180 || east > 180 {
		return bbox, fmt.Errorf("bbox longitudes out of range [-180,180]")
	}
	if south < -90 || south > 90 || north < -90 || north > 90 {
		return bbox, fmt.Errorf("bbox latitudes out of range [-90,90]")
	}
	if south > north {
		return bbox, fmt.Errorf("bbox south (%v) greater than north (%v)", south, north)
	}

	return bbox, nil
}

// ValidDatetime reports whether s is an RFC3339 instant or a "start/end"
// interval. Either interval side may be open ("..") but not both.
func ValidDatetime(s string) bool {
	if s == "" {
		return false
	}

	if !strings.Contains(s, "/") {
		_, err := time.Parse(time.RFC3339, s)
		return err == nil
	}

	parts := strings.SplitN(s, "/", 2)
	start, end := parts[0], parts[1]
	if start == ".." && end == ".." {
		return false
	}
	for _, p := range []string{start, end} {
		if p == ".." {
			continue
		}
		if _, err := time.Parse(time.RFC3339, p); err != nil {
			return false
		}
	}
	return true
}

var errorMessageTemplates = map[string]string{
	"required":      "%s is required",
	"url":           "%s must be a valid URL",
	"bbox":          "%s must be west,south,east,north in WGS84 degrees",
	"stac_datetime": "%s must be an RFC3339 instant or interval",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
}

// translateError converts a validator.FieldError to a human-readable message.
func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}
