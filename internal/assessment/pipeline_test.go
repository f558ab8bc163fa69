package assessment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firewatch/burn-severity-pipeline/internal/compute"
	"github.com/firewatch/burn-severity-pipeline/internal/imagery"
	"github.com/firewatch/burn-severity-pipeline/internal/mosaic"
	"github.com/firewatch/burn-severity-pipeline/internal/raster"
	"github.com/firewatch/burn-severity-pipeline/internal/severity"
	"github.com/firewatch/burn-severity-pipeline/pkg/assess"
)

var testAOI = json.RawMessage(`{"type":"Polygon","coordinates":[[[-8.1,40.3],[-7.9,40.3],[-7.9,40.5],[-8.1,40.5],[-8.1,40.3]]]}`)

type fakeCatalog struct {
	scenes []compute.Scene
	err    error
	calls  int
}

func (f *fakeCatalog) ListScenes(context.Context, compute.SceneQuery) ([]compute.Scene, error) {
	f.calls++
	return f.scenes, f.err
}

type fakeExporter struct {
	failBand string // ExportBand on this band fails
	calls    int
}

func (f *fakeExporter) ExportBand(_ context.Context, _ imagery.Image, _ json.RawMessage, band string) ([]byte, error) {
	f.calls++
	if band == f.failBand {
		return nil, errors.New("export rejected")
	}
	return singleBandTIFF(band), nil
}

func (f *fakeExporter) ExportVisual(context.Context, imagery.Image, json.RawMessage, string) ([]byte, error) {
	f.calls++
	return smallJPEG(), nil
}

type fakeReducer struct{}

func (fakeReducer) ReduceRegion(context.Context, compute.ReduceRequest) (map[string]float64, error) {
	return map[string]float64{"area_0": 900, "area_3": 25.5}, nil
}

// singleBandTIFF fabricates the kind of payload the compute service serves
// for one exported band
func singleBandTIFF(band string) []byte {
	grid := raster.Grid{
		Width: 2, Height: 2, BitsPerSample: 16, SampleFormat: 1,
		PixelScale: []float64{10, 10, 0},
		Tiepoint:   []float64{0, 0, 0, 500000, 4500000, 0},
	}
	data, err := raster.Encode(grid, []raster.Band{{Name: band, Data: make([]byte, 8)}})
	if err != nil {
		panic(err)
	}
	return data
}

func smallJPEG() []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func scene(id, day string, cloud float64) compute.Scene {
	at, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return compute.Scene{ID: id, AcquisitionTime: at, CloudPercent: cloud}
}

// scenesBothWindows covers the before and after windows of a
// 2024-01-01..2024-01-31 fire with the default 30-day margin
func scenesBothWindows() []compute.Scene {
	return []compute.Scene{
		scene("before-1", "2023-12-10", 15),
		scene("before-2", "2023-12-28", 5),
		scene("after-1", "2024-02-10", 8),
	}
}

func newTestPipeline(t *testing.T, cat Catalog, exp Exporter, cfg Config) *Pipeline {
	t.Helper()
	engine := severity.NewEngine(fakeReducer{}, severity.Config{})
	p, err := New(cat, exp, engine, mosaic.NewRegistry(), cfg, nil)
	require.NoError(t, err)
	return p
}

func testRequest(deliverables ...string) Request {
	start, _ := time.Parse("2006-01-02", "2024-01-01")
	end, _ := time.Parse("2006-01-02", "2024-01-31")
	return Request{
		AOI:          testAOI,
		Start:        start,
		End:          end,
		Deliverables: deliverables,
	}
}

func TestRun(t *testing.T) {
	t.Run("full run produces every requested artifact", func(t *testing.T) {
		cat := &fakeCatalog{scenes: scenesBothWindows()}
		exp := &fakeExporter{}
		p := newTestPipeline(t, cat, exp, Config{})

		result, err := p.Run(context.Background(), "run-1", testRequest(
			assess.DeliverableRGBPreFire,
			assess.DeliverableNDVIPostFire,
			assess.DeliverableRBR,
		))
		require.NoError(t, err)

		assert.Contains(t, result.Images, "rgb_pre_fire.tif")
		assert.Contains(t, result.Images, "ndvi_post_fire.tif")
		assert.Contains(t, result.Images, "rbr.tif")
		assert.Contains(t, result.Images, "severity.jpg")
		assert.Contains(t, result.Images, "severity_quicklook.jpg")
		assert.Len(t, result.Images, 5)

		assert.Equal(t, "image/tiff", result.Images["rbr.tif"].ContentType)
		assert.Equal(t, "image/jpeg", result.Images["severity.jpg"].ContentType)
	})

	t.Run("RGB artifact is a three-band merge", func(t *testing.T) {
		cat := &fakeCatalog{scenes: scenesBothWindows()}
		p := newTestPipeline(t, cat, &fakeExporter{}, Config{})

		result, err := p.Run(context.Background(), "run-2", testRequest(assess.DeliverableRGBPostFire))
		require.NoError(t, err)

		_, bands, err := raster.Decode(result.Images["rgb_post_fire.tif"].Data)
		require.NoError(t, err)
		require.Len(t, bands, 3)
		assert.Equal(t, "B4_refl", bands[0].Name)
		assert.Equal(t, "B3_refl", bands[1].Name)
		assert.Equal(t, "B2_refl", bands[2].Name)
	})

	t.Run("timings cover every stage", func(t *testing.T) {
		cat := &fakeCatalog{scenes: scenesBothWindows()}
		p := newTestPipeline(t, cat, &fakeExporter{}, Config{})

		result, err := p.Run(context.Background(), "run-3", testRequest(assess.DeliverableRBR))
		require.NoError(t, err)

		assert.Contains(t, result.Timings, StageCollectionLoaded)
		assert.Contains(t, result.Timings, StageIndexes)
		assert.Contains(t, result.Timings, StageDownloads)
	})

	t.Run("area summary covers all severity classes", func(t *testing.T) {
		cat := &fakeCatalog{scenes: scenesBothWindows()}
		p := newTestPipeline(t, cat, &fakeExporter{}, Config{})

		result, err := p.Run(context.Background(), "run-4", testRequest(assess.DeliverableRBR))
		require.NoError(t, err)

		require.Len(t, result.AreaBySeverity, severity.NumClasses)
		assert.Equal(t, 900.0, result.AreaBySeverity[0])
		assert.Equal(t, 0.0, result.AreaBySeverity[1])
		assert.Equal(t, 25.5, result.AreaBySeverity[3])
	})

	t.Run("collection is loaded once per run", func(t *testing.T) {
		cat := &fakeCatalog{scenes: scenesBothWindows()}
		p := newTestPipeline(t, cat, &fakeExporter{}, Config{})

		_, err := p.Run(context.Background(), "run-5", testRequest(
			assess.DeliverableRGBPreFire,
			assess.DeliverableRGBPostFire,
			assess.DeliverableRBR,
		))
		require.NoError(t, err)
		assert.Equal(t, 1, cat.calls)
	})

	t.Run("empty before window fails before any export", func(t *testing.T) {
		cat := &fakeCatalog{scenes: []compute.Scene{scene("after-only", "2024-02-10", 8)}}
		exp := &fakeExporter{}
		p := newTestPipeline(t, cat, exp, Config{})

		_, err := p.Run(context.Background(), "run-6", testRequest(assess.DeliverableRBR))
		assert.ErrorIs(t, err, ErrEmptyCollection)
		assert.Zero(t, exp.calls)
	})

	t.Run("empty after window fails before any export", func(t *testing.T) {
		cat := &fakeCatalog{scenes: []compute.Scene{scene("before-only", "2023-12-10", 8)}}
		exp := &fakeExporter{}
		p := newTestPipeline(t, cat, exp, Config{})

		_, err := p.Run(context.Background(), "run-7", testRequest(assess.DeliverableRBR))
		assert.ErrorIs(t, err, ErrEmptyCollection)
		assert.Zero(t, exp.calls)
	})

	t.Run("first deliverable failure aborts by default", func(t *testing.T) {
		cat := &fakeCatalog{scenes: scenesBothWindows()}
		exp := &fakeExporter{failBand: "ndvi"}
		p := newTestPipeline(t, cat, exp, Config{})

		result, err := p.Run(context.Background(), "run-8", testRequest(
			assess.DeliverableNDVIPreFire,
			assess.DeliverableRBR,
		))
		require.Error(t, err)
		assert.Nil(t, result)
	})

	t.Run("continue-on-error keeps remaining deliverables", func(t *testing.T) {
		cat := &fakeCatalog{scenes: scenesBothWindows()}
		exp := &fakeExporter{failBand: "ndvi"}
		p := newTestPipeline(t, cat, exp, Config{ContinueOnError: true})

		result, err := p.Run(context.Background(), "run-9", testRequest(
			assess.DeliverableNDVIPreFire,
			assess.DeliverableRBR,
		))
		require.Error(t, err)
		require.NotNil(t, result)
		assert.NotContains(t, result.Images, "ndvi_pre_fire.tif")
		assert.Contains(t, result.Images, "rbr.tif")
	})

	t.Run("per-run strategy override", func(t *testing.T) {
		cat := &fakeCatalog{scenes: scenesBothWindows()}
		p := newTestPipeline(t, cat, &fakeExporter{}, Config{})

		req := testRequest(assess.DeliverableRBR)
		req.Strategy = assess.StrategyBestAvailableScene
		_, err := p.Run(context.Background(), "run-10", req)
		assert.NoError(t, err)
	})

	t.Run("unknown per-run strategy is rejected", func(t *testing.T) {
		cat := &fakeCatalog{scenes: scenesBothWindows()}
		p := newTestPipeline(t, cat, &fakeExporter{}, Config{})

		req := testRequest(assess.DeliverableRBR)
		req.Strategy = "temporal_median"
		_, err := p.Run(context.Background(), "run-11", req)
		assert.ErrorIs(t, err, mosaic.ErrUnknownStrategy)
	})

	t.Run("cancelled context stops the deliverable loop", func(t *testing.T) {
		cat := &fakeCatalog{scenes: scenesBothWindows()}
		p := newTestPipeline(t, cat, &fakeExporter{}, Config{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := p.Run(ctx, "run-12", testRequest(assess.DeliverableRBR))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("catalog failure propagates", func(t *testing.T) {
		cat := &fakeCatalog{err: errors.New("service unavailable")}
		p := newTestPipeline(t, cat, &fakeExporter{}, Config{})

		_, err := p.Run(context.Background(), "run-13", testRequest(assess.DeliverableRBR))
		assert.Error(t, err)
	})
}

func TestNew(t *testing.T) {
	t.Run("unknown default strategy is rejected at construction", func(t *testing.T) {
		engine := severity.NewEngine(fakeReducer{}, severity.Config{})
		_, err := New(&fakeCatalog{}, &fakeExporter{}, engine, mosaic.NewRegistry(),
			Config{Strategy: "temporal_median"}, nil)
		assert.ErrorIs(t, err, mosaic.ErrUnknownStrategy)
	})
}

func TestBuildRequest(t *testing.T) {
	cat := &fakeCatalog{scenes: scenesBothWindows()}
	p := newTestPipeline(t, cat, &fakeExporter{}, Config{})

	t.Run("resolves a valid wire request", func(t *testing.T) {
		req, err := p.BuildRequest(assess.AssessRequest{
			AOI:          testAOI,
			StartDate:    "2024-01-01",
			EndDate:      "2024-01-31",
			Deliverables: []string{assess.DeliverableRBR},
		})
		require.NoError(t, err)
		assert.Equal(t, 2024, req.Start.Year())
		assert.NotEmpty(t, req.AOI)
	})

	t.Run("feature AOI is normalized to a bare geometry", func(t *testing.T) {
		feature := json.RawMessage(`{"type":"Feature","properties":{"x":1},"geometry":` + string(testAOI) + `}`)
		req, err := p.BuildRequest(assess.AssessRequest{
			AOI:          feature,
			StartDate:    "2024-01-01",
			EndDate:      "2024-01-31",
			Deliverables: []string{assess.DeliverableRBR},
		})
		require.NoError(t, err)
		assert.NotContains(t, string(req.AOI), "properties")
	})

	t.Run("unknown strategy is rejected", func(t *testing.T) {
		_, err := p.BuildRequest(assess.AssessRequest{
			AOI:          testAOI,
			StartDate:    "2024-01-01",
			EndDate:      "2024-01-31",
			Strategy:     "temporal_median",
			Deliverables: []string{assess.DeliverableRBR},
		})
		assert.ErrorIs(t, err, mosaic.ErrUnknownStrategy)
	})

	t.Run("invalid AOI is rejected", func(t *testing.T) {
		_, err := p.BuildRequest(assess.AssessRequest{
			AOI:          json.RawMessage(`{"type":"Nonsense"}`),
			StartDate:    "2024-01-01",
			EndDate:      "2024-01-31",
			Deliverables: []string{assess.DeliverableRBR},
		})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}
