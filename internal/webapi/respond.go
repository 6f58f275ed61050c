// Package webapi exposes the service's HTTP surface: the call placement and
// webhook endpoints on /call, and the self-testing endpoints on /testing.
package webapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ShivankK26/ai-voice-agent/internal/domain"
	"github.com/ShivankK26/ai-voice-agent/internal/server"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		apiErr = domain.ErrServer(err.Error())
	}
	writeJSON(w, apiErr.HTTPStatusCode(), map[string]any{
		"error": apiErr.Message,
		"type":  apiErr.Type,
	})
}

func writeTwiML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(doc))
}
