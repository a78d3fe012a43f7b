package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docgen-workers/internal/common/camunda"
)

var errServerClosed = http.ErrServerClosed

// readinessCheck reports whether one dependency is usable.
type readinessCheck func(ctx context.Context) error

func readinessChecks(zeebe *camunda.Client, deps *dependencies) map[string]readinessCheck {
	checks := map[string]readinessCheck{
		"zeebe": zeebe.HealthCheck,
	}
	if deps.cache != nil {
		checks["redis"] = deps.cache.Ping
	}
	if deps.postgres != nil {
		checks["postgres"] = deps.postgres.Ping
	}
	if deps.elastic != nil {
		checks["elasticsearch"] = deps.elastic.Ping
	}
	return checks
}

func newHTTPServer(port int, checks map[string]readinessCheck) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", readyHandler(checks))
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// readyHandler runs every check and answers 503 when any of them fails.
func readyHandler(checks map[string]readinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
		}
		sort.Strings(names)

		status := http.StatusOK
		results := map[string]string{}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		body := map[string]interface{}{
			"status": "ready",
			"checks": results,
			"time":   time.Now().Format(time.RFC3339),
		}
		if status != http.StatusOK {
			body["status"] = "not ready"
		}
		writeJSON(w, status, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
