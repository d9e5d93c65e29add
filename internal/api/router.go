package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"docsync/internal/middleware"
	"docsync/internal/session"
)

// SetupRoutes wires the health check and the websocket session endpoint
// behind the shared tracing/recovery/CORS middleware stack.
func SetupRoutes(sessions *session.Handler) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.ErrorRecoveryMiddleware)
	r.Use(middleware.CORSMiddleware)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.HandleFunc("/ws", sessions.Connect)

	return r
}
