package transport

import (
	"encoding/json"
	"net/http"

	"github.com/neuroforge-dev/kernel/pkg/apierr"
)

// WriteErrorResponse writes a JSON error response using the {"detail": ...}
// envelope from pkg/apierr. It sets the Content-Type header and writes the
// HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *apierr.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apierr.ErrorResponse{Detail: apiErr.Error()})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *apierr.APIError) {
	WriteErrorResponse(w, apiErr, apiErr.Type.StatusCode())
}
