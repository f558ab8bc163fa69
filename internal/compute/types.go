package compute

import (
	"encoding/json"
	"time"

	"github.com/firewatch/burn-severity-pipeline/internal/imagery"
)

// Scene is one catalogued acquisition intersecting a queried geometry.
type Scene struct {
	ID              string    `json:"id"`
	AcquisitionTime time.Time `json:"acquisition_time"`
	CloudPercent    float64   `json:"cloud_percent"`
}

// SceneQuery filters the remote catalog by geometry, date range and cloud cover.
type SceneQuery struct {
	CollectionID    string          `json:"collection_id"`
	Geometry        json.RawMessage `json:"geometry"`
	StartDate       string          `json:"start_date,omitempty"`
	EndDate         string          `json:"end_date,omitempty"`
	MaxCloudPercent float64         `json:"max_cloud_percent"`
}

// Raster export formats accepted by the compute service.
const (
	FormatGeoTIFF = "GEO_TIFF"
	FormatJPEG    = "JPEG"
)

// DownloadRequest asks the service for a download URL of an evaluated image.
type DownloadRequest struct {
	Expression *imagery.Node   `json:"expression"`
	Region     json.RawMessage `json:"region"`
	ScaleM     int             `json:"scale"`
	Format     string          `json:"format"`
	Bands      []string        `json:"bands,omitempty"`
}

// ReduceRequest asks the service for a scalar reduction of an evaluated image
// over a region, one result per band.
type ReduceRequest struct {
	Expression *imagery.Node   `json:"expression"`
	Reducer    string          `json:"reducer"`
	Region     json.RawMessage `json:"region"`
	ScaleM     int             `json:"scale"`
	MaxPixels  float64         `json:"max_pixels,omitempty"`
}
