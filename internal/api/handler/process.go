package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/plancheckhq/plancheck/internal/api/response"
	"github.com/plancheckhq/plancheck/internal/pipeline"
)

// QueueProcessor executes queued jobs when poked.
type QueueProcessor interface {
	ProcessBatch(ctx context.Context, n int) ([]*pipeline.TickResult, error)
}

const maxJobsPerTrigger = 10

// NewProcessQueueHandler returns the handler for POST /api/v1/queue/process.
// There is no resident worker; this trigger is the only thing that drains
// the queue. Clients (typically the progress poller) call it opportunistically.
func NewProcessQueueHandler(svc QueueProcessor, defaultCount int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count := defaultCount
		if count < 1 {
			count = 1
		}

		var req struct {
			Count int `json:"count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Count > 0 {
			count = req.Count
		}
		if count > maxJobsPerTrigger {
			count = maxJobsPerTrigger
		}

		results, err := svc.ProcessBatch(r.Context(), count)
		if err != nil {
			// Results already produced before the failure still count.
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Queue processing failed", map[string]any{"processed": len(results)})
			return
		}

		if results == nil {
			results = []*pipeline.TickResult{}
		}
		response.JSON(w, map[string]any{
			"processed": len(results),
			"results":   results,
		})
	}
}
