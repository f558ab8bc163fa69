// Package mosaic defines the compositing strategies that turn a set of
// satellite acquisitions over a period into one analysis-ready image. Each
// strategy is a distinct compositing decision policy; the pipeline delegates
// all compositing decisions here and stays policy-agnostic.
package mosaic

import (
	"errors"
	"fmt"
	"sort"

	"github.com/firewatch/burn-severity-pipeline/internal/catalog"
	"github.com/firewatch/burn-severity-pipeline/internal/imagery"
)

var (
	// ErrUnknownStrategy is returned when a strategy name is not registered
	ErrUnknownStrategy = errors.New("unknown mosaic strategy")

	// ErrNoAcquisitions is returned when no acquisition satisfies the
	// strategy's cloud constraints
	ErrNoAcquisitions = errors.New("no acquisitions available")
)

// Context is the immutable parameter bag passed to a strategy invocation
type Context struct {
	// CloudThreshold is the maximum acceptable scene cloud percentage
	CloudThreshold float64
}

// Strategy composes a set of acquisitions into one representative image
type Strategy interface {
	Name() string
	Compose(set *catalog.Set, mc Context) (imagery.Image, error)
}

// Registry is the closed set of compositing strategies. Names are resolved
// here once, at pipeline construction, never reflectively at run time.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry returns the registry holding all known strategies
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	for _, s := range []Strategy{
		bestAvailableSceneRaw{},
		bestAvailableScene{},
		cloudMaskedLightMosaic{},
	} {
		r.strategies[s.Name()] = s
	}
	return r
}

// Lookup resolves a strategy by name
func (r *Registry) Lookup(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return s, nil
}

// Names returns the registered strategy names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
