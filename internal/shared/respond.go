package shared

import (
	"encoding/json"
	"errors"
	"net/http"
)

// RespondJSON writes payload as a JSON response.
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// RespondError writes a JSON error body with a status derived from the
// domain error taxonomy.
func RespondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, ErrValidationFailed):
		status = http.StatusBadRequest
	}
	body := map[string]any{"error": err.Error()}
	var vErr *ValidationError
	if errors.As(err, &vErr) && len(vErr.Fields) > 0 {
		body["fields"] = vErr.Fields
	}
	RespondJSON(w, status, body)
}

// RespondErrorStatus writes a JSON error body with an explicit status.
func RespondErrorStatus(w http.ResponseWriter, status int, msg string) {
	RespondJSON(w, status, map[string]any{"error": msg})
}
