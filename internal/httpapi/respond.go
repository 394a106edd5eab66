package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/obyte-wallet/walletd/internal/walleterr"
	"github.com/obyte-wallet/walletd/internal/walletlog"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		walletlog.L().WithError(err).Warn("httpapi: failed to encode response")
	}
}

// errorBody is the JSON shape of a failed request, carrying the stable
// machine-readable code alongside the human message (spec.md §6).
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	if e, ok := walleterr.AsError(err); ok {
		writeJSON(w, walleterr.HTTPStatus(e.Code), errorBody{Code: string(e.Code), Message: e.Message})
		return
	}
	walletlog.L().WithError(err).Warn("httpapi: unhandled error")
	writeJSON(w, http.StatusInternalServerError, errorBody{Code: "INTERNAL_ERROR", Message: err.Error()})
}

func readJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return walleterr.New(walleterr.InvalidAddress, "malformed request body")
	}
	return nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
