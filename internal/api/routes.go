// Package api exposes the engine's observability surface: liveness,
// current state-machine position, and Prometheus metrics. It carries no control-plane endpoints — the engine
// is driven entirely by its own main loop and configuration, not by HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fairsengine/internal/api/middleware"
	"fairsengine/internal/engine"
)

// Dependencies holds the running Engine the HTTP surface reports on.
type Dependencies struct {
	Engine *engine.Engine
}

// SetupRoutes builds the router: GET /healthz, GET /state, GET /metrics.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	router.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/state", stateHandler(deps)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type stateResponse struct {
	State string `json:"state"`
}

func stateHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if deps == nil || deps.Engine == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "engine not ready"})
			return
		}
		writeJSON(w, http.StatusOK, stateResponse{State: deps.Engine.State().String()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
