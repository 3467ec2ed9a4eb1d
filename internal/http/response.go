package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/evanmaskanazi/socialworkboard/internal/repo"
	"github.com/evanmaskanazi/socialworkboard/internal/service"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: message}})
}

// writeServiceError maps service and repo errors onto the error envelope.
// Unknown errors are logged and hidden behind a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Message)
	case errors.Is(err, service.ErrClientNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Client not found")
	case errors.Is(err, service.ErrNotFound), errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
	case errors.Is(err, service.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Profile not found")
	case errors.Is(err, repo.ErrEmailTaken):
		writeError(w, http.StatusConflict, "EMAIL_TAKEN", "Email already registered")
	case errors.Is(err, repo.ErrLicenseTaken):
		writeError(w, http.StatusConflict, "LICENSE_TAKEN", "License number already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
	case errors.Is(err, service.ErrAccountInactive):
		writeError(w, http.StatusForbidden, "ACCOUNT_INACTIVE", "Account is deactivated")
	case errors.Is(err, service.ErrMailDisabled):
		writeError(w, http.StatusServiceUnavailable, "MAIL_DISABLED", "Email delivery is not configured")
	default:
		log.Printf("%s %s failed: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
