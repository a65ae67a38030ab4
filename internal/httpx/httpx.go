// Package httpx has the JSON request and response helpers shared by the handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"furnicolor/internal/i18n"
)

// MaxJSONBytes bounds JSON request bodies; data URLs of a 10 MB photo fit.
const MaxJSONBytes = 16 << 20

// DecodeJSON reads a JSON request body into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return err
	}
	return nil
}

// JSON writes payload with the given status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes {"error": message} using the request locale.
func Error(w http.ResponseWriter, r *http.Request, status int, key string, args ...any) {
	JSON(w, status, map[string]string{"error": i18n.T(r.Context(), key, args...)})
}
