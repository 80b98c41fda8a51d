package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// MaxBodyBytes bounds request bodies decoded by DecodeJSON.
const MaxBodyBytes = 64 << 10

// RespondJSON writes payload as JSON with the given status.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}

// RespondError writes {"error": message}.
func RespondError(w http.ResponseWriter, status int, message string) error {
	return RespondJSON(w, status, map[string]string{"error": message})
}

// DecodeJSON reads a single JSON document from the request body into dst.
// An empty body leaves dst untouched.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
