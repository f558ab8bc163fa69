package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/firewatch/burn-severity-pipeline/internal/catalog"
	"github.com/firewatch/burn-severity-pipeline/internal/compute"
	"github.com/firewatch/burn-severity-pipeline/internal/dates"
	"github.com/firewatch/burn-severity-pipeline/internal/geometry"
	"github.com/firewatch/burn-severity-pipeline/internal/imagery"
	"github.com/firewatch/burn-severity-pipeline/internal/metrics"
	"github.com/firewatch/burn-severity-pipeline/internal/mosaic"
	"github.com/firewatch/burn-severity-pipeline/internal/severity"
	"github.com/firewatch/burn-severity-pipeline/pkg/assess"
)

// Timing stage names reported in the result
const (
	StageCollectionLoaded = "sat_collection_loaded"
	StageIndexes          = "indexes_calculated"
	StageDownloads        = "images_downloaded"
)

// Catalog is the slice of the compute service the pipeline itself needs
type Catalog interface {
	ListScenes(ctx context.Context, q compute.SceneQuery) ([]compute.Scene, error)
}

// Exporter downloads evaluated rasters on behalf of deliverable generators
type Exporter interface {
	ExportBand(ctx context.Context, img imagery.Image, region json.RawMessage, band string) ([]byte, error)
	ExportVisual(ctx context.Context, img imagery.Image, region json.RawMessage, format string) ([]byte, error)
}

// Request is one validated, resolved assessment run
type Request struct {
	AOI          json.RawMessage
	Start        time.Time
	End          time.Time
	Strategy     string // empty means the pipeline default
	Deliverables []string
}

// Pipeline orchestrates one burn-severity assessment per Run invocation
type Pipeline struct {
	catalog         Catalog
	exporter        Exporter
	engine          *severity.Engine
	strategies      *mosaic.Registry
	defaultStrategy mosaic.Strategy
	cfg             Config
	metrics         *metrics.Metrics
	registry        map[string]generator
}

// New creates a pipeline. The default strategy name is resolved against the
// registry here, never at run time; metrics may be nil.
func New(cat Catalog, exporter Exporter, engine *severity.Engine, strategies *mosaic.Registry, cfg Config, m *metrics.Metrics) (*Pipeline, error) {
	cfg.WithDefaults()

	def, err := strategies.Lookup(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		catalog:         cat,
		exporter:        exporter,
		engine:          engine,
		strategies:      strategies,
		defaultStrategy: def,
		cfg:             cfg,
		metrics:         m,
	}
	p.registry = map[string]generator{
		assess.DeliverableRGBPreFire:   p.generateRGBPreFire,
		assess.DeliverableRGBPostFire:  p.generateRGBPostFire,
		assess.DeliverableNDVIPreFire:  p.generateNDVIPreFire,
		assess.DeliverableNDVIPostFire: p.generateNDVIPostFire,
		assess.DeliverableRBR:          p.generateRBR,
	}
	return p, nil
}

// BuildRequest validates a wire request and resolves it into a runnable one:
// dates parsed, AOI normalized (loaded from file when given by path), the
// strategy name checked against the registry.
func (p *Pipeline) BuildRequest(req assess.AssessRequest) (Request, error) {
	if err := ValidateRequest(req); err != nil {
		return Request{}, err
	}

	start, _ := time.Parse(dates.ISOFormat, req.StartDate)
	end, _ := time.Parse(dates.ISOFormat, req.EndDate)

	var aoi json.RawMessage
	var err error
	if len(req.AOI) > 0 {
		aoi, err = geometry.Normalize(req.AOI)
	} else {
		aoi, err = geometry.LoadGeoJSON(req.AOIPath)
	}
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if req.Strategy != "" {
		if _, err := p.strategies.Lookup(req.Strategy); err != nil {
			return Request{}, err
		}
	}

	return Request{
		AOI:          aoi,
		Start:        start,
		End:          end,
		Strategy:     req.Strategy,
		Deliverables: req.Deliverables,
	}, nil
}

// Run executes one assessment. On failure no partial result is returned,
// except when ContinueOnError is set: then the partial result is returned
// together with the first deliverable error.
func (p *Pipeline) Run(ctx context.Context, runID string, req Request) (*assess.Result, error) {
	result, err := p.run(ctx, runID, req)
	if err != nil && result == nil {
		p.metrics.ObserveRun("failed")
	} else {
		p.metrics.ObserveRun("ok")
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, runID string, req Request) (*assess.Result, error) {
	strategy := p.defaultStrategy
	if req.Strategy != "" {
		s, err := p.strategies.Lookup(req.Strategy)
		if err != nil {
			return nil, err
		}
		strategy = s
	}

	window, err := dates.Expand(req.Start, req.End, p.cfg.MarginDays)
	if err != nil {
		return nil, err
	}

	timings := make(map[string]float64)

	// Load the full candidate collection once
	t0 := time.Now()
	full, err := p.loadCollection(ctx, req.AOI)
	if err != nil {
		return nil, err
	}
	timings[StageCollectionLoaded] = time.Since(t0).Seconds()
	p.metrics.ObserveStage(StageCollectionLoaded, timings[StageCollectionLoaded])
	log.Printf("[%s] candidate collection loaded: %d acquisitions", runID, full.Len())

	t1 := time.Now()

	beforeSet := full.FilterDate(window.BeforeStart, window.BeforeEnd)
	if beforeSet.Empty() {
		return nil, windowError("before", window.BeforeStart, window.BeforeEnd)
	}
	afterSet := full.FilterDate(window.AfterStart, window.AfterEnd)
	if afterSet.Empty() {
		return nil, windowError("after", window.AfterStart, window.AfterEnd)
	}

	mc := mosaic.Context{CloudThreshold: p.cfg.CloudCeiling}
	beforeComposite, err := strategy.Compose(beforeSet, mc)
	if err != nil {
		return nil, fmt.Errorf("before composite: %w", err)
	}
	afterComposite, err := strategy.Compose(afterSet, mc)
	if err != nil {
		return nil, fmt.Errorf("after composite: %w", err)
	}

	before := severity.EnrichComposite(beforeComposite)
	after := severity.EnrichComposite(afterComposite)

	rbr, err := p.engine.BurnRatio(before, after)
	if err != nil {
		return nil, err
	}
	sev, err := p.engine.Classify(rbr)
	if err != nil {
		return nil, err
	}
	areas, err := p.engine.AreaBySeverity(ctx, sev, req.AOI)
	if err != nil {
		return nil, err
	}
	timings[StageIndexes] = time.Since(t1).Seconds()
	p.metrics.ObserveStage(StageIndexes, timings[StageIndexes])
	log.Printf("[%s] severity computed with strategy %s", runID, strategy.Name())

	t2 := time.Now()
	run := &runState{
		runID:    runID,
		region:   req.AOI,
		before:   before,
		after:    after,
		rbr:      rbr,
		severity: sev,
	}

	images := make(map[string]assess.Artifact)
	var firstErr error
	for _, name := range req.Deliverables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		gen, ok := p.registry[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDeliverable, name)
		}

		artifacts, err := gen(ctx, run)
		if err != nil {
			err = fmt.Errorf("deliverable %s: %w", name, err)
			if !p.cfg.ContinueOnError {
				return nil, err
			}
			if firstErr == nil {
				firstErr = err
			}
			log.Printf("[%s] deliverable %s failed, continuing: %v", runID, name, err)
			continue
		}

		for _, a := range artifacts {
			images[a.Filename] = a
		}
	}
	timings[StageDownloads] = time.Since(t2).Seconds()
	p.metrics.ObserveStage(StageDownloads, timings[StageDownloads])

	return &assess.Result{
		Images:         images,
		Timings:        timings,
		AreaBySeverity: areas,
	}, firstErr
}

// loadCollection builds the full candidate acquisition set: every scene
// intersecting the AOI under the cloud ceiling, with reflectance-scaled bands
// attached.
func (p *Pipeline) loadCollection(ctx context.Context, aoi json.RawMessage) (*catalog.Set, error) {
	scenes, err := p.catalog.ListScenes(ctx, compute.SceneQuery{
		CollectionID:    p.cfg.CollectionID,
		Geometry:        aoi,
		MaxCloudPercent: p.cfg.CloudCeiling,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate collection: %w", err)
	}

	collection := imagery.NewCollection(p.cfg.CollectionID).
		FilterBounds(aoi).
		FilterLT("CLOUDY_PIXEL_PERCENTAGE", p.cfg.CloudCeiling).
		Select(p.cfg.Bands...).
		Map(addReflectance)

	return &catalog.Set{Scenes: scenes, Collection: collection}, nil
}

// addReflectance attaches reflectance-scaled copies of the raw bands,
// renamed with a _refl suffix
func addReflectance(img imagery.Image) imagery.Image {
	raw := []string{"B2", "B3", "B4", "B8", "B12"}
	renamed := make([]string, len(raw))
	for i, b := range raw {
		renamed[i] = b + "_refl"
	}
	refl := img.Select(raw...).Multiply(imagery.Constant(0.0001)).Rename(renamed...)
	return img.AddBands(refl)
}

func windowError(label string, start, end time.Time) error {
	return fmt.Errorf("%s window %s → %s: %w",
		label, start.Format(dates.ISOFormat), end.Format(dates.ISOFormat), ErrEmptyCollection)
}
