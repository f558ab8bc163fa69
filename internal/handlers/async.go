package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/firewatch/burn-severity-pipeline/internal/assessment"
	"github.com/firewatch/burn-severity-pipeline/internal/ledger"
	"github.com/firewatch/burn-severity-pipeline/internal/mosaic"
	"github.com/firewatch/burn-severity-pipeline/internal/workflows"
	"github.com/firewatch/burn-severity-pipeline/pkg/assess"
)

// AsyncHandler handles asynchronous assessment requests
type AsyncHandler struct {
	workflowRunner *workflows.WorkflowRunner
	strategies     *mosaic.Registry
	tracker        *ledger.Tracker
}

// NewAsyncHandler creates a new async handler. The tracker may be nil when
// the run ledger is disabled; dedupe_seen_count is then always zero.
func NewAsyncHandler(runner *workflows.WorkflowRunner, strategies *mosaic.Registry, tracker *ledger.Tracker) *AsyncHandler {
	return &AsyncHandler{
		workflowRunner: runner,
		strategies:     strategies,
		tracker:        tracker,
	}
}

// HandleAssessAsync handles POST /v1/assess - enqueues an assessment and returns immediately
func (h *AsyncHandler) HandleAssessAsync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req assess.AssessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	// Reject malformed requests before anything durable happens
	if err := assessment.ValidateRequest(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Strategy != "" {
		if _, err := h.strategies.Lookup(req.Strategy); err != nil {
			http.Error(w, fmt.Sprintf("unknown strategy %q", req.Strategy), http.StatusBadRequest)
			return
		}
	}

	log.Printf("Enqueueing assessment: window=%s..%s, deliverables=%v", req.StartDate, req.EndDate, req.Deliverables)

	// Record the submission up front so the caller learns in the 202
	// whether this AOI and window were assessed before
	seenCount := 0
	if h.tracker != nil {
		digest := ledger.Digest(req.AOI)
		if len(req.AOI) == 0 {
			digest = ledger.Digest([]byte(req.AOIPath))
		}
		count, err := h.tracker.Record(r.Context(), digest, req.StartDate, req.EndDate, req.Strategy)
		if err != nil {
			log.Printf("Failed to record submission in run ledger: %v", err)
		} else {
			seenCount = count
		}
	}

	runID, err := h.workflowRunner.RunAsync(r.Context(), assess.JobBurnSeverity, req)
	if err != nil {
		log.Printf("Failed to enqueue assessment: %v", err)
		http.Error(w, fmt.Sprintf("Failed to enqueue assessment: %v", err), http.StatusInternalServerError)
		return
	}

	log.Printf("Assessment enqueued successfully: run_id=%s", runID)

	resp := assess.AssessResponse{
		RunID:           runID,
		DedupeSeenCount: seenCount,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}

// HandleStatus handles GET /v1/runs/{runID} - returns workflow status
func (h *AsyncHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := r.URL.Path[len("/v1/runs/"):]
	if runID == "" {
		http.Error(w, "run_id is required", http.StatusBadRequest)
		return
	}

	status, err := h.workflowRunner.GetStatus(r.Context(), runID)
	if err != nil {
		log.Printf("Failed to get workflow status: %v", err)
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}
