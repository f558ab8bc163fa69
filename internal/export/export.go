// Package export downloads evaluated rasters from the compute service. The
// service's response size limit is not known in advance, so exports follow a
// bounded retry-by-resolution protocol: on a size-limit rejection the scale
// is coarsened by a fixed step and the request reissued. Resolution, not
// time, is the parameter being relaxed; any other failure propagates
// immediately.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/firewatch/burn-severity-pipeline/internal/compute"
	"github.com/firewatch/burn-severity-pipeline/internal/imagery"
	"github.com/firewatch/burn-severity-pipeline/internal/metrics"
)

var (
	// ErrRegionTooLarge is returned when no scale up to the configured bound
	// satisfied the service's request size limit
	ErrRegionTooLarge = errors.New("region too large to export at maximum scale")

	// ErrExportFailed wraps any non-retryable export failure
	ErrExportFailed = errors.New("export failed")
)

// Downloader is the slice of the compute service the exporter needs
type Downloader interface {
	DownloadURL(ctx context.Context, req compute.DownloadRequest) (string, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Config holds the retry-by-resolution parameters
type Config struct {
	// BaseScaleM is the resolution of the first attempt. Defaults to 10.
	BaseScaleM int
	// ScaleStepM is added to the scale after each size rejection. Defaults to 15.
	ScaleStepM int
	// MaxScaleM bounds the escalation. Defaults to 150.
	MaxScaleM int
}

// WithDefaults fills in default values for unset fields
func (c *Config) WithDefaults() {
	if c.BaseScaleM == 0 {
		c.BaseScaleM = 10
	}
	if c.ScaleStepM == 0 {
		c.ScaleStepM = 15
	}
	if c.MaxScaleM == 0 {
		c.MaxScaleM = 150
	}
}

// AdaptiveExporter exports rasters, escalating resolution on size rejections
type AdaptiveExporter struct {
	svc     Downloader
	cfg     Config
	metrics *metrics.Metrics
}

// New creates an exporter. metrics may be nil.
func New(svc Downloader, cfg Config, m *metrics.Metrics) *AdaptiveExporter {
	cfg.WithDefaults()
	return &AdaptiveExporter{svc: svc, cfg: cfg, metrics: m}
}

// Export evaluates the image over the region and returns the encoded raster
// bytes. bands restricts the export; nil exports every band.
func (e *AdaptiveExporter) Export(ctx context.Context, img imagery.Image, region json.RawMessage, format string, bands []string) ([]byte, error) {
	for scale := e.cfg.BaseScaleM; scale <= e.cfg.MaxScaleM; scale += e.cfg.ScaleStepM {
		url, err := e.svc.DownloadURL(ctx, compute.DownloadRequest{
			Expression: img.Graph(),
			Region:     region,
			ScaleM:     scale,
			Format:     format,
			Bands:      bands,
		})
		if err != nil {
			if errors.Is(err, compute.ErrRequestTooLarge) {
				e.metrics.ObserveExportAttempt("too_large")
				log.Printf("export rejected for size at %dm, retrying at %dm", scale, scale+e.cfg.ScaleStepM)
				continue
			}
			e.metrics.ObserveExportAttempt("error")
			return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
		}

		data, err := e.svc.Fetch(ctx, url)
		if err != nil {
			e.metrics.ObserveExportAttempt("error")
			return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
		}

		e.metrics.ObserveExportAttempt("ok")
		e.metrics.ObserveExportScale(scale)
		log.Printf("export succeeded at %dm scale (%d bytes)", scale, len(data))
		return data, nil
	}

	return nil, fmt.Errorf("no scale up to %dm satisfied the request size limit: %w", e.cfg.MaxScaleM, ErrRegionTooLarge)
}

// ExportBand exports a single named band as GeoTIFF
func (e *AdaptiveExporter) ExportBand(ctx context.Context, img imagery.Image, region json.RawMessage, band string) ([]byte, error) {
	data, err := e.Export(ctx, img.Select(band), region, compute.FormatGeoTIFF, []string{band})
	if err != nil {
		return nil, fmt.Errorf("band %q: %w", band, err)
	}
	return data, nil
}

// ExportVisual exports a multi-band visual in the caller's format, with no
// band restriction
func (e *AdaptiveExporter) ExportVisual(ctx context.Context, img imagery.Image, region json.RawMessage, format string) ([]byte, error) {
	return e.Export(ctx, img, region, format, nil)
}
