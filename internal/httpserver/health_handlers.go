package httpserver

import (
	"net/http"
	"time"

	"chatcore/internal/domain"
	"chatcore/internal/profiledirectory"
)

const serviceVersion = "1.0.0"

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().Format(timeLayout),
			"service":   "chatcore",
			"version":   serviceVersion,
		})
	}
}

func handleHealthDetailed(store domain.Store, profiles *profiledirectory.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeStatus := "ok"
		start := time.Now()
		if err := store.Ping(r.Context()); err != nil {
			storeStatus = "unavailable: " + err.Error()
		}
		latency := time.Since(start)

		profileStatus := "ok"
		if !profiles.Reachable(r.Context()) {
			profileStatus = "unreachable"
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().Format(timeLayout),
			"service":   "chatcore",
			"version":   serviceVersion,
			"dependencies": map[string]any{
				"store": map[string]any{
					"status":     storeStatus,
					"latency_ms": latency.Milliseconds(),
				},
				"profile_directory": map[string]any{
					"status": profileStatus,
				},
			},
		})
	}
}
