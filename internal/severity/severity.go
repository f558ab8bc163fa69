// Package severity derives the burn-severity signal from before/after
// composites: NDVI/NBR enrichment, the dNBR/RBR burn ratio, threshold
// classification, and per-class area aggregation. All image math is
// declarative; only the area reduction crosses the network.
package severity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/firewatch/burn-severity-pipeline/internal/compute"
	"github.com/firewatch/burn-severity-pipeline/internal/imagery"
)

// ErrMissingBand is returned when a composite lacks a band the engine needs
var ErrMissingBand = errors.New("composite is missing a required band")

// NumClasses is the number of severity classes (0 = Unburned .. 4 = Very High)
const NumClasses = 5

// Config holds the numeric constants of the severity chain
type Config struct {
	// Thresholds are the lower-inclusive class boundaries for classes 1..4.
	// Defaults to 0.10, 0.27, 0.44, 0.66.
	Thresholds [4]float64
	// DNBROffset is added to nbr_before in the RBR denominator to avoid
	// division by near-zero NBR. Fixed at 1.001 by the method definition.
	DNBROffset float64
	// AreaScaleM is the reduction scale for area aggregation. It is
	// deliberately independent of any export coarsening; area statistics
	// always use this resolution. Defaults to 10.
	AreaScaleM int
	// MaxPixels bounds the remote reduction. Defaults to 1e12.
	MaxPixels float64
}

// WithDefaults fills in default values for unset fields
func (c *Config) WithDefaults() {
	if c.Thresholds == [4]float64{} {
		c.Thresholds = [4]float64{0.10, 0.27, 0.44, 0.66}
	}
	if c.DNBROffset == 0 {
		c.DNBROffset = 1.001
	}
	if c.AreaScaleM == 0 {
		c.AreaScaleM = 10
	}
	if c.MaxPixels == 0 {
		c.MaxPixels = 1e12
	}
}

// Reducer is the slice of the compute service the engine needs
type Reducer interface {
	ReduceRegion(ctx context.Context, req compute.ReduceRequest) (map[string]float64, error)
}

// Engine computes and aggregates the burn-severity signal
type Engine struct {
	svc Reducer
	cfg Config
}

// NewEngine creates a severity engine
func NewEngine(svc Reducer, cfg Config) *Engine {
	cfg.WithDefaults()
	return &Engine{svc: svc, cfg: cfg}
}

// EnrichComposite attaches the derived ndvi and nbr bands to a raw composite
func EnrichComposite(img imagery.Image) imagery.Image {
	ndvi := img.NormalizedDifference("B8_refl", "B4_refl").Rename("ndvi")
	nbr := img.NormalizedDifference("B8_refl", "B12_refl").Rename("nbr")
	return img.AddBands(ndvi, nbr)
}

// BurnRatio computes dnbr = nbr_before - nbr_after and
// rbr = dnbr / (nbr_before + offset) from two enriched composites
func (e *Engine) BurnRatio(before, after imagery.Image) (imagery.Image, error) {
	for name, img := range map[string]imagery.Image{"before": before, "after": after} {
		if !img.HasBand("nbr") {
			return imagery.Image{}, fmt.Errorf("%s composite has no nbr band: %w", name, ErrMissingBand)
		}
	}

	dnbr := before.Select("nbr").Subtract(after.Select("nbr")).Rename("dnbr")
	rbr := dnbr.Divide(before.Select("nbr").Add(imagery.Constant(e.cfg.DNBROffset))).Rename("rbr")
	return rbr, nil
}

// Classify maps the rbr band onto discrete severity classes 0..4
func (e *Engine) Classify(rbr imagery.Image) (imagery.Image, error) {
	if !rbr.HasBand("rbr") {
		return imagery.Image{}, fmt.Errorf("no rbr band: %w", ErrMissingBand)
	}

	t := e.cfg.Thresholds
	expr := fmt.Sprintf(
		"(b('rbr') < %g) ? 0 : (b('rbr') < %g) ? 1 : (b('rbr') < %g) ? 2 : (b('rbr') < %g) ? 3 : 4",
		t[0], t[1], t[2], t[3],
	)
	return rbr.Expression(expr).Rename("severity"), nil
}

// ClassOf is the pure classification step function the remote expression
// mirrors: boundaries are lower-inclusive, the last class is open-ended
func (c Config) ClassOf(rbr float64) int {
	for i, t := range c.Thresholds {
		if rbr < t {
			return i
		}
	}
	return NumClasses - 1
}

// AreaBySeverity sums the per-pixel area of each severity class over the
// region, in hectares. Every class 0..4 is present in the result, zero when
// no pixel carries it.
func (e *Engine) AreaBySeverity(ctx context.Context, severity imagery.Image, region json.RawMessage) (map[int]float64, error) {
	// 1 pixel area in m² / 10000 = hectares
	areaHa := imagery.PixelArea().Divide(imagery.Constant(10000))

	stacked := areaHa.UpdateMask(severity.Eq(0)).Rename(areaBandName(0))
	for class := 1; class < NumClasses; class++ {
		masked := areaHa.UpdateMask(severity.Eq(float64(class))).Rename(areaBandName(class))
		stacked = stacked.AddBands(masked)
	}

	results, err := e.svc.ReduceRegion(ctx, compute.ReduceRequest{
		Expression: stacked.Graph(),
		Reducer:    "sum",
		Region:     region,
		ScaleM:     e.cfg.AreaScaleM,
		MaxPixels:  e.cfg.MaxPixels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate area by severity: %w", err)
	}

	areas := make(map[int]float64, NumClasses)
	for class := 0; class < NumClasses; class++ {
		areas[class] = results[areaBandName(class)]
	}
	return areas, nil
}

func areaBandName(class int) string {
	return fmt.Sprintf("area_%d", class)
}
