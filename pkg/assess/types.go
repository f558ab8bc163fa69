package assess

import "encoding/json"

// AssessRequest represents a request to run a burn-severity assessment
type AssessRequest struct {
	// AOI is an inline GeoJSON geometry (or feature) bounding the analysis
	AOI json.RawMessage `json:"aoi,omitempty"`
	// AOIPath points to a GeoJSON file; used when AOI is not inlined
	AOIPath      string   `json:"aoi_path,omitempty"`
	StartDate    string   `json:"start_date"`         // YYYY-MM-DD
	EndDate      string   `json:"end_date"`           // YYYY-MM-DD
	Strategy     string   `json:"strategy,omitempty"` // mosaic strategy name, pipeline default when empty
	Deliverables []string `json:"deliverables"`
}

// AssessResponse represents the response from triggering an assessment
type AssessResponse struct {
	RunID           string `json:"run_id"`
	DedupeSeenCount int    `json:"dedupe_seen_count"`
}

// Artifact is one produced output file (raw encoded bytes)
type Artifact struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Result is the terminal output of one assessment run
type Result struct {
	// Images maps the artifact filename to the artifact itself
	Images map[string]Artifact `json:"images"`
	// Timings maps pipeline stage names to elapsed seconds
	Timings map[string]float64 `json:"timings"`
	// AreaBySeverity maps severity class (0-4) to hectares
	AreaBySeverity map[int]float64 `json:"area_by_severity"`
}

// JobBurnSeverity is the workflow job name for a full assessment run
const JobBurnSeverity = "burn_severity"

// Deliverable constants
const (
	DeliverableRGBPreFire   = "rgb_pre_fire"
	DeliverableRGBPostFire  = "rgb_post_fire"
	DeliverableNDVIPreFire  = "ndvi_pre_fire"
	DeliverableNDVIPostFire = "ndvi_post_fire"
	DeliverableRBR          = "rbr"
)

// Mosaic strategy constants (must match the mosaic registry)
const (
	StrategyBestAvailableSceneRaw  = "best_available_scene_raw"
	StrategyBestAvailableScene     = "best_available_scene"
	StrategyCloudMaskedLightMosaic = "cloud_masked_light_mosaic"
)

// Deliverables returns the closed set of deliverable names
func Deliverables() []string {
	return []string{
		DeliverableRGBPreFire,
		DeliverableRGBPostFire,
		DeliverableNDVIPreFire,
		DeliverableNDVIPostFire,
		DeliverableRBR,
	}
}

// IsDeliverable reports whether name is a member of the deliverable set
func IsDeliverable(name string) bool {
	for _, d := range Deliverables() {
		if d == name {
			return true
		}
	}
	return false
}
