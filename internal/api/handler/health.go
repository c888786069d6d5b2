package handler

import (
	"context"
	"net/http"

	"github.com/plancheckhq/plancheck/internal/api/response"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns the handler for GET /api/v1/health. Degraded
// dependencies are reported but never fail the endpoint; status pages must
// render even when the job store is down.
func NewHealthHandler(version string, db, jobs Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps := map[string]string{}

		deps["database"] = pingStatus(r.Context(), db)
		deps["jobstore"] = pingStatus(r.Context(), jobs)

		status := "ok"
		for _, s := range deps {
			if s != "ok" {
				status = "degraded"
				break
			}
		}

		response.JSON(w, map[string]any{
			"status":       status,
			"version":      version,
			"dependencies": deps,
		})
	}
}

func pingStatus(ctx context.Context, p Pinger) string {
	if p == nil {
		return "not_configured"
	}
	if err := p.Ping(ctx); err != nil {
		return "unreachable"
	}
	return "ok"
}
