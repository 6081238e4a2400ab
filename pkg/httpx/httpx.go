// Package httpx holds the JSON helpers shared by the validation service
// handlers.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"signeddoc/pkg/problems"
)

func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, map[string]any{
		"request_id": NewRequestID(),
		"error":      map[string]any{"code": code, "message": message},
	})
}

// WriteRejection renders an aggregated validation outcome.
func WriteRejection(w http.ResponseWriter, status int, entries []problems.Entry) {
	WriteJSON(w, status, map[string]any{
		"request_id": NewRequestID(),
		"accepted":   false,
		"problems":   entries,
	})
}
