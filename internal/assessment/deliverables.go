package assessment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/firewatch/burn-severity-pipeline/internal/compute"
	"github.com/firewatch/burn-severity-pipeline/internal/imagery"
	"github.com/firewatch/burn-severity-pipeline/internal/raster"
	"github.com/firewatch/burn-severity-pipeline/pkg/assess"
)

const (
	contentTypeTIFF = "image/tiff"
	contentTypeJPEG = "image/jpeg"
)

// runState carries the read-only composites of one run to the generators
type runState struct {
	runID    string
	region   json.RawMessage
	before   imagery.Image
	after    imagery.Image
	rbr      imagery.Image
	severity imagery.Image
}

// generator produces the artifacts of one deliverable
type generator func(ctx context.Context, run *runState) ([]assess.Artifact, error)

func (p *Pipeline) generateRGBPreFire(ctx context.Context, run *runState) ([]assess.Artifact, error) {
	return p.generateRGB(ctx, run, run.before, assess.DeliverableRGBPreFire)
}

func (p *Pipeline) generateRGBPostFire(ctx context.Context, run *runState) ([]assess.Artifact, error) {
	return p.generateRGB(ctx, run, run.after, assess.DeliverableRGBPostFire)
}

// generateRGB exports the true-color bands separately and reassembles them
// into one multi-band GeoTIFF
func (p *Pipeline) generateRGB(ctx context.Context, run *runState, composite imagery.Image, prefix string) ([]assess.Artifact, error) {
	rgbBands := []string{"B4_refl", "B3_refl", "B2_refl"} // red, green, blue
	rgb := composite.Select(rgbBands...)

	bands := make([]raster.Band, 0, len(rgbBands))
	for _, band := range rgbBands {
		data, err := p.exporter.ExportBand(ctx, rgb, run.region, band)
		if err != nil {
			return nil, err
		}
		bands = append(bands, raster.Band{Name: band, Data: data})
	}

	merged, err := raster.Merge(bands)
	if err != nil {
		return nil, fmt.Errorf("failed to merge RGB bands: %w", err)
	}

	return []assess.Artifact{{
		Filename:    prefix + ".tif",
		ContentType: contentTypeTIFF,
		Data:        merged,
	}}, nil
}

func (p *Pipeline) generateNDVIPreFire(ctx context.Context, run *runState) ([]assess.Artifact, error) {
	return p.generateNDVI(ctx, run, run.before, assess.DeliverableNDVIPreFire)
}

func (p *Pipeline) generateNDVIPostFire(ctx context.Context, run *runState) ([]assess.Artifact, error) {
	return p.generateNDVI(ctx, run, run.after, assess.DeliverableNDVIPostFire)
}

func (p *Pipeline) generateNDVI(ctx context.Context, run *runState, composite imagery.Image, name string) ([]assess.Artifact, error) {
	data, err := p.exporter.ExportBand(ctx, composite, run.region, "ndvi")
	if err != nil {
		return nil, err
	}

	return []assess.Artifact{{
		Filename:    name + ".tif",
		ContentType: contentTypeTIFF,
		Data:        data,
	}}, nil
}

// generateRBR exports the raw burn ratio plus its colorized severity
// companion and a locally rendered quicklook of that visual
func (p *Pipeline) generateRBR(ctx context.Context, run *runState) ([]assess.Artifact, error) {
	rbrData, err := p.exporter.ExportBand(ctx, run.rbr, run.region, "rbr")
	if err != nil {
		return nil, err
	}

	visual := run.severity.Visualize(imagery.VisParams{
		Min:     0,
		Max:     float64(len(p.cfg.Palette) - 1),
		Palette: p.cfg.Palette,
	})
	visualData, err := p.exporter.ExportVisual(ctx, visual, run.region, compute.FormatJPEG)
	if err != nil {
		return nil, fmt.Errorf("severity visual: %w", err)
	}

	quicklookData, err := quicklook(visualData, p.cfg.QuicklookMaxPx)
	if err != nil {
		return nil, fmt.Errorf("severity quicklook: %w", err)
	}

	return []assess.Artifact{
		{Filename: "rbr.tif", ContentType: contentTypeTIFF, Data: rbrData},
		{Filename: "severity.jpg", ContentType: contentTypeJPEG, Data: visualData},
		{Filename: "severity_quicklook.jpg", ContentType: contentTypeJPEG, Data: quicklookData},
	}, nil
}
