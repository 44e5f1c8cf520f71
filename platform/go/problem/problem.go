package problem

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Details is an RFC 7807 problem document. Extensions carries optional
// members such as per-field validation errors.
type Details struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Extensions map[string]any `json:"-"`
}

// Problem type URIs shared by all handlers.
const (
	TypeValidation   = "https://motorline.dev/problems/validation-error"
	TypeUnauthorized = "https://motorline.dev/problems/unauthorized"
	TypeForbidden    = "https://motorline.dev/problems/forbidden"
	TypeNotFound     = "https://motorline.dev/problems/not-found"
	TypeConflict     = "https://motorline.dev/problems/conflict"
	TypeInternal     = "https://motorline.dev/problems/internal-error"
)

// MarshalJSON flattens Extensions into the top-level document.
func (d Details) MarshalJSON() ([]byte, error) {
	doc := map[string]any{
		"type":   d.Type,
		"title":  d.Title,
		"status": d.Status,
	}
	if d.Detail != "" {
		doc["detail"] = d.Detail
	}
	for k, v := range d.Extensions {
		doc[k] = v
	}
	return json.Marshal(doc)
}

// Write emits the problem document with the application/problem+json media type.
func Write(w http.ResponseWriter, logger *zap.Logger, d Details) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(d.Status)
	if err := json.NewEncoder(w).Encode(d); err != nil && logger != nil {
		logger.Error("encode problem response", zap.Error(err))
	}
}
