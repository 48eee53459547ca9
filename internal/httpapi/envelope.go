package httpapi

import (
	"encoding/json"
	"net/http"
)

// Meta is the free-form metadata block of a response.
type Meta map[string]any

// Envelope wraps every response body.
type Envelope struct {
	OK   bool `json:"ok"`
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

const (
	msgNotFound         = "Resource not found"
	msgMethodNotAllowed = "Method not allowed"
	msgInternal         = "Internal server error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any, meta Meta) {
	if meta == nil {
		meta = Meta{}
	}
	writeJSON(w, http.StatusOK, Envelope{OK: true, Meta: meta, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{OK: false, Meta: Meta{"error": msg}})
}
