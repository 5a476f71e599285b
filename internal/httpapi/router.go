// Package httpapi implements the Command API: the public
// HTTP surface external callers use to submit UI commands and poll
// their status, plus the ambient health/metrics/config-reload routes
// every service in this stack exposes.
//
// Grounded on the MAPE-Execute service's
// services/mape/execute/internal/api/router.go (gorilla/mux route
// table, handlers split into a companion file) wrapped the same way
// its main.go wraps it, with github.com/gorilla/handlers' LoggingHandler.
package httpapi

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the Command API's route table over api's
// collaborators.
func NewRouter(api *API) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/equipment/{id}/command", api.postCommand).Methods("POST")
	r.HandleFunc("/api/equipment/{id}/state", api.getState).Methods("GET")
	r.HandleFunc("/api/equipment/{id}/status/{jobId}", api.getJobStatus).Methods("GET")

	r.HandleFunc("/health", api.health).Methods("GET")
	r.HandleFunc("/config/reload", api.reloadConfig).Methods("POST")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}
