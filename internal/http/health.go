package http

import (
	"context"
	"log/slog"
	"net/http"
)

// health reports liveness, and readiness of the storage backend when a check
// is configured.
func health(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				slog.Error("health check failed", "error", err)
				http.Error(w, "unavailable", http.StatusServiceUnavailable)

				return
			}
		}

		w.WriteHeader(http.StatusOK)

		if _, err := w.Write([]byte("ok")); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	}
}
