package shared

import (
	"encoding/json"
	"net/http"
)

type ctxKey string

// UserIDKey holds the authenticated user id (string form) in a request context.
const UserIDKey ctxKey = "user_id"

type errorResponse struct {
	Error string `json:"error"`
}

func SendError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}

func SendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
