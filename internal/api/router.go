package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// NewRouter wires all routes and middleware.
func NewRouter(h *Handler, logger zerolog.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/signals", h.ListSignals).Methods(http.MethodGet)
	api.HandleFunc("/signals/{id:[0-9]+}", h.GetSignal).Methods(http.MethodGet)
	api.HandleFunc("/companies", h.SearchCompanies).Methods(http.MethodGet)
	api.HandleFunc("/companies/{ticker}", h.GetCompany).Methods(http.MethodGet)
	api.HandleFunc("/pipeline/run", h.TriggerRun).Methods(http.MethodPost)
	api.HandleFunc("/pipeline/status", h.PipelineStatus).Methods(http.MethodGet)

	r.Use(loggingMiddleware(logger))
	r.Use(recoveryMiddleware(logger))

	return r
}

func loggingMiddleware(logger zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}

func recoveryMiddleware(logger zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error().
						Interface("error", err).
						Str("path", r.URL.Path).
						Msg("panic recovered")
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
