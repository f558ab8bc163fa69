package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/firewatch/burn-severity-pipeline/internal/assessment"
	"github.com/firewatch/burn-severity-pipeline/internal/compute"
	"github.com/firewatch/burn-severity-pipeline/internal/dbosruntime"
	"github.com/firewatch/burn-severity-pipeline/internal/export"
	"github.com/firewatch/burn-severity-pipeline/internal/mosaic"
	"github.com/firewatch/burn-severity-pipeline/internal/severity"
	"github.com/firewatch/burn-severity-pipeline/internal/workflows"
	"github.com/firewatch/burn-severity-pipeline/pkg/assess"
)

// Config holds the configuration for initializing the assessment runner
type Config struct {
	DatabaseURL        string        // DBOS PostgreSQL connection string
	AppName            string        // Application name for DBOS
	QueueName          string        // DBOS queue name
	Concurrency        int           // Number of concurrent assessments
	ComputeAPIURL      string        // URL of the imagery compute service
	ComputeTimeout     time.Duration // Per-call timeout against the compute service
	ApplicationVersion string        // Optional: Override binary hash for version matching
}

// Runner provides a high-level API for running assessments via DBOS.
// Use it to embed the pipeline in another service instead of deploying
// the worker binary.
type Runner struct {
	runtime *dbosruntime.Runtime
	runner  *workflows.WorkflowRunner
}

// New creates and initializes a new assessment runner with DBOS integration
func New(cfg Config) (*Runner, error) {
	dbosRuntime, err := dbosruntime.NewRuntime(context.Background(), dbosruntime.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		QueueName:          cfg.QueueName,
		Concurrency:        cfg.Concurrency,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DBOS: %w", err)
	}

	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime)

	// Build the assessment pipeline against the remote compute service
	svc := compute.NewHTTPClient(cfg.ComputeAPIURL, cfg.ComputeTimeout)
	exporter := export.New(svc, export.Config{}, nil)
	engine := severity.NewEngine(svc, severity.Config{})
	strategies := mosaic.NewRegistry()

	pipeline, err := assessment.New(svc, exporter, engine, strategies, assessment.Config{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build assessment pipeline: %w", err)
	}

	workflowRunner.Register(assess.JobBurnSeverity, workflows.NewAssessmentWorkflow(pipeline))

	// Launch DBOS (must be after workflow registration)
	if err := dbosRuntime.Launch(); err != nil {
		return nil, fmt.Errorf("failed to launch DBOS: %w", err)
	}

	return &Runner{
		runtime: dbosRuntime,
		runner:  workflowRunner,
	}, nil
}

// RunAssessment enqueues a burn-severity assessment and returns its run ID
func (r *Runner) RunAssessment(ctx context.Context, req assess.AssessRequest) (string, error) {
	if err := assessment.ValidateRequest(req); err != nil {
		return "", err
	}
	return r.runner.RunAsync(ctx, assess.JobBurnSeverity, req)
}

// Status retrieves the status of a previously enqueued run
func (r *Runner) Status(ctx context.Context, runID string) (*workflows.WorkflowStatus, error) {
	return r.runner.GetStatus(ctx, runID)
}

// Shutdown gracefully shuts down the assessment runner
func (r *Runner) Shutdown(timeoutSeconds int) {
	if r.runtime != nil {
		r.runtime.Shutdown(time.Duration(timeoutSeconds) * time.Second)
	}
}
