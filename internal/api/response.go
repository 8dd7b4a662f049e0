// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package api

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/geodepot/geodepot/internal/logging"
	"github.com/geodepot/geodepot/internal/middleware"
)

// ErrorResponse is the envelope for every non-2xx API response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes used across the API.
const (
	CodeNotFound         = "not_found"
	CodeBadRequest       = "bad_request"
	CodeUpstreamError    = "upstream_error"
	CodeUpstreamTimeout  = "upstream_timeout"
	CodeRangeInvalid     = "range_not_satisfiable"
	CodeInternal         = "internal_error"
	CodeUnavailable      = "service_unavailable"
)

// RespondJSON writes a JSON body with the given status.
func RespondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("encoding response body")
	}
}

// RespondError writes the standard error envelope. The request ID comes from
// the request's middleware context so clients can quote it in bug reports.
func RespondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	RespondJSON(w, status, ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: middleware.GetRequestID(r.Context()),
	})
}
