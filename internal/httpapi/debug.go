package httpapi

import (
	"net/http"

	gorillamux "github.com/gorilla/mux"
)

// debugRouter is a small gorilla/mux sub-router for operational
// introspection, kept separate from the primary chi tree so both of the
// teacher's HTTP-router dependencies are exercised (DESIGN.md).
func (s *Server) debugRouter() http.Handler {
	m := gorillamux.NewRouter()
	m.HandleFunc("/vars", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"minClientVersion": s.cfg.MinClientVersion,
		})
	}).Methods(http.MethodGet)
	return m
}
