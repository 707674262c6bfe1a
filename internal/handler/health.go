package handler

import (
	"net/http"

	"github.com/empirewand/wandcore/internal/infra"
	"github.com/empirewand/wandcore/internal/migration"
)

// MigrationReporter exposes the migration gate to the health check.
type MigrationReporter interface {
	MigrationStatus() migration.Status
}

// HealthHandler reports storage reachability and the migration gate. A failed
// migration or an unreachable store is unhealthy; a run still in progress is
// reported as starting.
func HealthHandler(svc MigrationReporter, ping infra.PingFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := svc.MigrationStatus()
		body := map[string]string{"migration": status.String()}

		if err := infra.HealthCheck(r.Context(), ping); err != nil {
			body["status"] = "unhealthy"
			body["error"] = err.Error()
			RespondJSON(w, http.StatusServiceUnavailable, body)
			return
		}

		switch status {
		case migration.StatusFailed:
			body["status"] = "unhealthy"
			RespondJSON(w, http.StatusServiceUnavailable, body)
		case migration.StatusCompleted:
			body["status"] = "healthy"
			RespondJSON(w, http.StatusOK, body)
		default:
			body["status"] = "starting"
			RespondJSON(w, http.StatusServiceUnavailable, body)
		}
	}
}
