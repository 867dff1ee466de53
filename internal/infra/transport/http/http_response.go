package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mkrupp/homecase-accounts/internal/domain"
)

const internalErrorMessage = "Internal server error"

// WriteJSON writes body as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(body) //nolint:wrapcheck
}

// StatusForError maps an error to the status code it is reported with.
// User-facing errors map by kind, everything else is a 500.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON {"error": message} response.
// Only user-facing messages are exposed; other errors are reported generically.
func WriteError(w http.ResponseWriter, err error) int {
	status := StatusForError(err)

	message := internalErrorMessage
	if domainErr, ok := domain.AsError(err); ok && status != http.StatusInternalServerError {
		message = domainErr.Message
	}

	_ = WriteJSON(w, status, domain.ErrorResponse{Error: message})

	return status
}

// WriteInternalError writes a generic 500 JSON response.
func WriteInternalError(w http.ResponseWriter) {
	_ = WriteJSON(w, http.StatusInternalServerError, domain.ErrorResponse{Error: internalErrorMessage})
}
