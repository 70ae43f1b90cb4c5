package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/staybay/backend/internal/services"
)

const maxBodyBytes = 1_048_576

var errTrailingData = errors.New("Request body must only contain a single JSON object")

// decodeJSON reads exactly one JSON object into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errTrailingData
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func badBody(w http.ResponseWriter, err error) {
	if errors.Is(err, errTrailingData) {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
}
