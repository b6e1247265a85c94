package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/archon-iirc/archon/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

// writeAppError maps a *apperr.Error (or any error) to its HTTP status and
// a vendor-neutral error body.
func writeAppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeError(w, kind.HTTPStatus(), string(kind), err.Error())
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
