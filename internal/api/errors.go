package api

import (
	"errors"
	"net/http"

	"queryguard/internal/domain"
)

// errorEnvelope is the JSON body for every non-200 response.
type errorEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// httpStatusFromDomainError maps domain errors to HTTP status codes. The
// query endpoint rarely uses this: pipeline failures come back as 200
// responses with Metadata.Blocked set, so the caller always gets the
// refusal contract. This mapping covers the operational endpoints.
func httpStatusFromDomainError(err error) int {
	var accessDenied *domain.AccessDeniedError
	var injection *domain.InjectionDetectedError

	switch {
	case errors.As(err, &accessDenied), errors.As(err, &injection):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Code: status, Message: message})
}
