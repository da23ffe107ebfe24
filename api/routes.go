package api

import (
	"encoding/json"
	"net/http"

	"medialib/handlers"

	"github.com/gorilla/mux"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// NewRouter returns a router with the API mounted under /api.
func NewRouter(nmjHandler *handlers.NMJHandler, providersHandler *handlers.ProvidersHandler) *mux.Router {
	r := mux.NewRouter()
	Register(r, nmjHandler, providersHandler)
	return r
}

// Register mounts API endpoints onto the provided router.
func Register(r *mux.Router, nmjHandler *handlers.NMJHandler, providersHandler *handlers.ProvidersHandler) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	api.HandleFunc("/health", health).Methods(http.MethodGet)

	// Popcorn Hour / NMJ notifier
	api.HandleFunc("/notifiers/nmj/settings", nmjHandler.Settings).Methods(http.MethodPost)
	api.HandleFunc("/notifiers/nmj/settings", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/notifiers/nmj/test", nmjHandler.Test).Methods(http.MethodPost)
	api.HandleFunc("/notifiers/nmj/test", handleOptions).Methods(http.MethodOptions)

	// Torrent providers
	api.HandleFunc("/providers", providersHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/providers/{name}/search", providersHandler.Search).Methods(http.MethodGet)
	api.HandleFunc("/providers/{name}/cache", providersHandler.Cached).Methods(http.MethodGet)
	api.HandleFunc("/providers/{name}/cache", providersHandler.RefreshCache).Methods(http.MethodPost)
	api.HandleFunc("/providers/{name}/cache", handleOptions).Methods(http.MethodOptions)
}
