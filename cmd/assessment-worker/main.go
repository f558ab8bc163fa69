package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/firewatch/burn-severity-pipeline/internal/assessment"
	"github.com/firewatch/burn-severity-pipeline/internal/compute"
	"github.com/firewatch/burn-severity-pipeline/internal/dbosruntime"
	"github.com/firewatch/burn-severity-pipeline/internal/export"
	"github.com/firewatch/burn-severity-pipeline/internal/handlers"
	"github.com/firewatch/burn-severity-pipeline/internal/ledger"
	"github.com/firewatch/burn-severity-pipeline/internal/metrics"
	"github.com/firewatch/burn-severity-pipeline/internal/mosaic"
	"github.com/firewatch/burn-severity-pipeline/internal/severity"
	"github.com/firewatch/burn-severity-pipeline/internal/workflows"
	"github.com/firewatch/burn-severity-pipeline/pkg/assess"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	// Configuration from environment
	httpAddr := os.Getenv("WORKER_HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8081"
	}

	computeURL := os.Getenv("COMPUTE_API_URL")
	if computeURL == "" {
		log.Fatalf("COMPUTE_API_URL is required")
	}

	computeTimeout := 5 * time.Minute
	if v := os.Getenv("COMPUTE_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("Invalid COMPUTE_TIMEOUT_SECONDS: %v", err)
		}
		computeTimeout = time.Duration(secs) * time.Second
	}

	dbURL := os.Getenv("DBOS_SYSTEM_DATABASE_URL")
	if dbURL == "" {
		log.Fatalf("DBOS_SYSTEM_DATABASE_URL is required")
	}

	queueName := os.Getenv("DBOS_QUEUE_NAME")

	// Metrics registry shared by the pipeline and the /metrics endpoint
	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)

	// Build the assessment pipeline against the remote compute service
	svc := compute.NewHTTPClient(computeURL, computeTimeout)
	exporter := export.New(svc, export.Config{}, m)
	engine := severity.NewEngine(svc, severity.Config{})
	strategies := mosaic.NewRegistry()

	pipeline, err := assessment.New(svc, exporter, engine, strategies, assessment.Config{
		Strategy:        os.Getenv("DEFAULT_MOSAIC_STRATEGY"),
		ContinueOnError: os.Getenv("CONTINUE_ON_ERROR") == "true",
	}, m)
	if err != nil {
		log.Fatalf("Failed to build assessment pipeline: %v", err)
	}
	log.Printf("✓ Assessment pipeline ready (compute: %s, strategies: %v)", computeURL, strategies.Names())

	// Run ledger shares the DBOS database
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open run ledger database: %v", err)
	}
	defer db.Close()

	tracker, err := ledger.NewTracker(db)
	if err != nil {
		log.Fatalf("Failed to initialize run ledger: %v", err)
	}

	// Initialize DBOS runtime (required)
	dbosRuntime, err := dbosruntime.NewRuntime(context.Background(), dbosruntime.Config{
		DatabaseURL: dbURL,
		AppName:     "assessment-worker",
		QueueName:   queueName,
	})
	if err != nil {
		log.Fatalf("Failed to initialize DBOS: %v", err)
	}

	// Initialize workflow runner with DBOS support (registers workflows with DBOS)
	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime)

	assessmentWorkflow := workflows.NewAssessmentWorkflow(pipeline)
	workflowRunner.Register(assess.JobBurnSeverity, assessmentWorkflow)
	log.Printf("✓ Registered workflow: %s for job: %s", assessmentWorkflow.Name(), assess.JobBurnSeverity)

	// Launch DBOS (must be done after workflow registration)
	if err := dbosRuntime.Launch(); err != nil {
		log.Fatalf("Failed to launch DBOS: %v", err)
	}
	defer dbosRuntime.Shutdown(10 * time.Second)

	log.Printf("✓ DBOS runtime initialized")
	log.Printf("  Queue: %s", dbosRuntime.QueueName())
	log.Printf("  Concurrency: %d", dbosRuntime.Concurrency())

	// Create HTTP server
	mux := http.NewServeMux()

	asyncHandler := handlers.NewAsyncHandler(workflowRunner, strategies, tracker)

	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/v1/assess", asyncHandler.HandleAssessAsync)
	mux.HandleFunc("/v1/runs/", asyncHandler.HandleStatus)

	log.Printf("✓ Registered async endpoints")

	server := &http.Server{
		Addr:    httpAddr,
		Handler: mux,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Assessment worker starting on %s", httpAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// handleHealth returns health status
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}
