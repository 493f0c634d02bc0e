package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/trogers1052/signal-desk/internal/metrics"
)

// SetupRoutes configures all API routes. Static assets are served from
// staticDir when it is set.
func SetupRoutes(handler *Handler, staticDir string) *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/webhook", handler.Webhook).Methods("POST")

	// Signal lifecycle
	api.HandleFunc("/signals", handler.ListSignals).Methods("GET")
	api.HandleFunc("/signals/{id}/analyze", handler.AnalyzeSignal).Methods("POST")

	// Trade journal
	api.HandleFunc("/trades", handler.CreateTrade).Methods("POST")
	api.HandleFunc("/trades", handler.ListTrades).Methods("GET")

	api.HandleFunc("/leaderboard", handler.Leaderboard).Methods("GET")

	// Preflight for any path
	r.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir))).Methods("GET")
	}

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Webhook-Token")
		next.ServeHTTP(w, r)
	})
}
