package mosaic

import (
	"fmt"

	"github.com/firewatch/burn-severity-pipeline/internal/catalog"
	"github.com/firewatch/burn-severity-pipeline/internal/imagery"
)

// Scene-classification band values treated as physically invalid observations:
// saturated/defective, cloud shadow, high-probability cloud, cirrus.
var invalidSCLClasses = []float64{1, 3, 9, 10}

const (
	sclBand       = "SCL"
	cloudProbBand = "MSK_CLDPRB"
	qualityBand   = "quality"
)

// bestAvailableSceneRaw selects the least cloudy acquisition and mosaics only
// its tiles. Single acquisition, no temporal mixing; the mosaic merely merges
// spatial tiles sharing the acquisition identity.
type bestAvailableSceneRaw struct{}

func (bestAvailableSceneRaw) Name() string { return "best_available_scene_raw" }

func (bestAvailableSceneRaw) Compose(set *catalog.Set, mc Context) (imagery.Image, error) {
	best, ok := set.Least(mc.CloudThreshold)
	if !ok {
		return imagery.Image{}, fmt.Errorf("%w: no scene at or below %.1f%% cloud cover", ErrNoAcquisitions, mc.CloudThreshold)
	}

	// Rebuild the collection from tiles sharing the acquisition identity
	same := set.Collection.FilterEq("system:index", best.ID)
	return same.Mosaic(), nil
}

// bestAvailableScene is the scene-based strategy with physical cloud masking:
// single acquisition, SCL-based mask, data gaps accepted.
type bestAvailableScene struct{}

func (bestAvailableScene) Name() string { return "best_available_scene" }

func (bestAvailableScene) Compose(set *catalog.Set, mc Context) (imagery.Image, error) {
	unified, err := bestAvailableSceneRaw{}.Compose(set, mc)
	if err != nil {
		return imagery.Image{}, err
	}
	return maskInvalidSCL(unified), nil
}

// cloudMaskedLightMosaic is a pixel-based mosaic using cloud probability as a
// quality weight: a light SCL mask on every acquisition, then per-pixel
// arg-max compositing on 100-cloud_probability, with a 5-point penalty for
// cloud-adjacent pixels (SCL class 8). The auxiliary quality band is dropped
// from the output.
type cloudMaskedLightMosaic struct{}

func (cloudMaskedLightMosaic) Name() string { return "cloud_masked_light_mosaic" }

func (cloudMaskedLightMosaic) Compose(set *catalog.Set, _ Context) (imagery.Image, error) {
	masked := set.Collection.Map(maskInvalidSCL)
	withQuality := masked.Map(addQuality)
	composite := withQuality.QualityMosaic(qualityBand)
	return composite.WithoutBands(qualityBand), nil
}

// maskInvalidSCL removes physically invalid pixels using the SCL band,
// leaving data gaps rather than filling them.
func maskInvalidSCL(img imagery.Image) imagery.Image {
	scl := img.Select(sclBand)
	invalid := scl.Eq(invalidSCLClasses[0])
	for _, class := range invalidSCLClasses[1:] {
		invalid = invalid.Or(scl.Eq(class))
	}
	return img.UpdateMask(invalid.Not())
}

// addQuality attaches the per-pixel quality score used for arg-max
// compositing. Higher quality means lower cloud probability; cloud edges are
// penalized without being fully masked.
func addQuality(img imagery.Image) imagery.Image {
	prob := img.Select(cloudProbBand)
	scl := img.Select(sclBand)

	quality := imagery.Constant(100).Subtract(prob)
	quality = quality.Where(scl.Eq(8), quality.Subtract(imagery.Constant(5)))

	return img.AddBands(quality.Rename(qualityBand))
}
