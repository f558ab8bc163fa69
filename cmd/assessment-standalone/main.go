package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/firewatch/burn-severity-pipeline/internal/assessment"
	"github.com/firewatch/burn-severity-pipeline/internal/compute"
	"github.com/firewatch/burn-severity-pipeline/internal/export"
	"github.com/firewatch/burn-severity-pipeline/internal/mosaic"
	"github.com/firewatch/burn-severity-pipeline/internal/severity"
	"github.com/firewatch/burn-severity-pipeline/pkg/assess"
)

// Standalone assessment worker for quick testing.
// Runs the pipeline inline on POST /v1/assess and writes artifacts to disk.
// No DBOS, no Postgres, no run ledger needed.
func main() {
	_ = godotenv.Load()

	// Configuration from environment
	httpAddr := os.Getenv("PIPELINE_HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	computeURL := os.Getenv("COMPUTE_API_URL")
	if computeURL == "" {
		log.Fatalf("COMPUTE_API_URL is required")
	}

	outputDir := os.Getenv("OUTPUT_DIR")
	if outputDir == "" {
		outputDir = "./assessment-output"
	}

	log.Printf("Assessment Standalone Worker")
	log.Printf("  Mode: Synchronous (inline pipeline, no DBOS)")
	log.Printf("  Compute service: %s", computeURL)
	log.Printf("  Output directory: %s", outputDir)
	log.Printf("  HTTP address: %s", httpAddr)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	// Build the assessment pipeline against the remote compute service
	svc := compute.NewHTTPClient(computeURL, 5*time.Minute)
	exporter := export.New(svc, export.Config{}, nil)
	engine := severity.NewEngine(svc, severity.Config{})
	strategies := mosaic.NewRegistry()

	pipeline, err := assessment.New(svc, exporter, engine, strategies, assessment.Config{}, nil)
	if err != nil {
		log.Fatalf("Failed to build assessment pipeline: %v", err)
	}
	log.Printf("✓ Assessment pipeline ready (strategies: %v)", strategies.Names())

	// Create HTTP server
	mux := http.NewServeMux()

	handler := &Handler{
		pipeline:  pipeline,
		outputDir: outputDir,
	}

	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/v1/assess", handler.handleAssess)

	server := &http.Server{
		Addr:    httpAddr,
		Handler: mux,
	}

	// Start server in goroutine
	go func() {
		log.Printf("✓ Assessment worker ready on %s", httpAddr)
		log.Printf("")
		log.Printf("Quick test:")
		log.Printf(`  curl -X POST http://localhost:8080/v1/assess -d '{"aoi_path":"fire.geojson","start_date":"2024-01-01","end_date":"2024-01-31","deliverables":["rbr"]}'`)
		log.Printf("")

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
		"mode":   "standalone",
	})
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	pipeline  *assessment.Pipeline
	outputDir string
}

// assessReport is the synchronous response: run metadata plus where each
// artifact landed on disk
type assessReport struct {
	RunID          string             `json:"run_id"`
	Artifacts      []string           `json:"artifacts"`
	Timings        map[string]float64 `json:"timings"`
	AreaBySeverity map[int]float64    `json:"area_by_severity"`
}

// handleAssess handles the /v1/assess endpoint synchronously
func (h *Handler) handleAssess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req assess.AssessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	runReq, err := h.pipeline.BuildRequest(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runID := uuid.New().String()
	log.Printf("[%s] Running assessment: window=%s..%s, deliverables=%v", runID, req.StartDate, req.EndDate, req.Deliverables)

	result, err := h.pipeline.Run(r.Context(), runID, runReq)
	if err != nil && result == nil {
		log.Printf("[%s] Assessment failed: %v", runID, err)
		http.Error(w, fmt.Sprintf("Assessment failed: %v", err), http.StatusInternalServerError)
		return
	}
	if err != nil {
		// Partial result under continue-on-error; keep what we got
		log.Printf("[%s] Assessment completed with failed deliverables: %v", runID, err)
	}

	report := assessReport{
		RunID:          runID,
		Timings:        result.Timings,
		AreaBySeverity: result.AreaBySeverity,
	}

	runDir := filepath.Join(h.outputDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create run directory: %v", err), http.StatusInternalServerError)
		return
	}
	for name, artifact := range result.Images {
		path := filepath.Join(runDir, name)
		if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write artifact %s: %v", name, err), http.StatusInternalServerError)
			return
		}
		report.Artifacts = append(report.Artifacts, path)
	}

	log.Printf("[%s] Assessment complete: %d artifacts in %s", runID, len(report.Artifacts), runDir)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(report)
}
