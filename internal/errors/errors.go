// Package errors defines the application error taxonomy shared by the CLI
// and the local status server.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/patternlab/graphscout/pkg/api"
)

// Code is a stable, machine-readable error code.
type Code string

const (
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeMethodNotAllowed    Code = "METHOD_NOT_ALLOWED"
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeInternal            Code = "INTERNAL_ERROR"
)

// HTTPErrorResponse is the JSON envelope the local status server returns for
// every error.
type HTTPErrorResponse struct {
	Error HTTPErrorBody `json:"error"`
}

// HTTPErrorBody carries the code and human-readable message.
type HTTPErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a standard error envelope with the given status.
func WriteJSON(w http.ResponseWriter, status int, code Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPErrorBody{Code: string(code), Message: message},
	})
}

// FromAPIError maps a backend call failure onto a local error code and HTTP
// status for the status server.
func FromAPIError(err error) (int, Code) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound, CodeNotFound
		}
		return http.StatusBadGateway, CodeUpstreamUnavailable
	}
	return http.StatusBadGateway, CodeUpstreamUnavailable
}
