package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/hushlabs/consent-secretary/internal/backend"
	"github.com/hushlabs/consent-secretary/internal/lifecycle"
	"github.com/hushlabs/consent-secretary/internal/session"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondLifecycleError maps the lifecycle refusals and backend failures to
// scoped, dismissible error payloads. Nothing here is fatal: every failure
// returns control to the caller with the one-line message to show.
func respondLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrConsentRequired), errors.Is(err, session.ErrConsentRequired):
		respondError(w, http.StatusForbidden, "Consent token is missing. Please log in again to provide consent.")
	case errors.Is(err, lifecycle.ErrAlreadyResolved):
		respondError(w, http.StatusConflict, "This response has already been approved or rejected.")
	case errors.Is(err, lifecycle.ErrActionInFlight):
		respondError(w, http.StatusConflict, "Another action for this response is still in progress.")
	case errors.Is(err, lifecycle.ErrUnknownResponse):
		respondError(w, http.StatusNotFound, "Response not found. Refresh the list and try again.")
	default:
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Detail != "" {
			respondError(w, http.StatusBadGateway, apiErr.Detail)
			return
		}
		respondError(w, http.StatusBadGateway, "The backend request failed. Please try again.")
	}
}

// requireAuthAPI is middleware that returns 401 JSON instead of redirecting.
func (s *Server) requireAuthAPI(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.sessions.Current(r); err != nil {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next(w, r)
	}
}
