package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// SetupRoutes registers the operator API and the live run feed
func SetupRoutes(router *mux.Router, runs RunService, feed http.HandlerFunc, logger *utils.ETLLogger) {
	router.Use(CORSMiddleware)

	router.HandleFunc("/ws/runs", feed)

	router.HandleFunc("/api/runs", GetRunsHandler(runs, logger)).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/runs", TriggerRunHandler(runs, logger)).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/runs/state", GetRunStateHandler(runs, logger)).Methods("GET", "OPTIONS")
}

// CORSMiddleware lets browser dashboards on other origins call the API
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
