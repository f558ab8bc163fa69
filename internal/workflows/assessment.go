package workflows

import (
	"fmt"
	"log"

	"github.com/firewatch/burn-severity-pipeline/internal/assessment"
)

// AssessmentWorkflow runs one burn-severity assessment end to end
type AssessmentWorkflow struct {
	pipeline *assessment.Pipeline
}

// NewAssessmentWorkflow creates a new assessment workflow
func NewAssessmentWorkflow(pipeline *assessment.Pipeline) *AssessmentWorkflow {
	return &AssessmentWorkflow{pipeline: pipeline}
}

// Name returns the workflow name
func (w *AssessmentWorkflow) Name() string {
	return "AssessmentWorkflow"
}

// Execute runs the assessment workflow
func (w *AssessmentWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	log.Printf("[%s] Starting assessment workflow for %s → %s", wctx.RunID, wctx.Request.StartDate, wctx.Request.EndDate)

	// Step 1: Validate and resolve the request
	runReq, err := w.pipeline.BuildRequest(wctx.Request)
	if err != nil {
		log.Printf("[%s] Validation failed: %v", wctx.RunID, err)
		return &WorkflowResult{
			Success: false,
			Error:   fmt.Errorf("validation failed: %w", err),
		}, err
	}

	// Step 2: Run the assessment pipeline
	result, err := w.pipeline.Run(wctx.Ctx, wctx.RunID, runReq)
	if err != nil {
		if result != nil {
			// Partial result under continue-on-error
			log.Printf("[%s] Assessment completed with failed deliverables: %v", wctx.RunID, err)
			return &WorkflowResult{
				Success: false,
				Error:   err,
				Result:  result,
			}, err
		}
		log.Printf("[%s] Assessment failed: %v", wctx.RunID, err)
		return &WorkflowResult{
			Success: false,
			Error:   fmt.Errorf("assessment failed: %w", err),
		}, err
	}

	log.Printf("[%s] Assessment workflow completed: %d artifacts", wctx.RunID, len(result.Images))

	return &WorkflowResult{
		Success: true,
		Result:  result,
	}, nil
}
