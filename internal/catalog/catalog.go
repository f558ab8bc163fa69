package catalog

import (
	"time"

	"github.com/firewatch/burn-severity-pipeline/internal/compute"
	"github.com/firewatch/burn-severity-pipeline/internal/dates"
	"github.com/firewatch/burn-severity-pipeline/internal/imagery"
)

// Set pairs the acquisition metadata observed over the AOI with the
// declarative collection the acquisitions belong to. Every member intersects
// the AOI; filters narrow both sides in lockstep.
type Set struct {
	Scenes     []compute.Scene
	Collection imagery.Collection
}

// Len returns the number of acquisitions in the set
func (s *Set) Len() int { return len(s.Scenes) }

// Empty reports whether the set has no acquisitions
func (s *Set) Empty() bool { return len(s.Scenes) == 0 }

// FilterDate narrows the set to acquisitions in [start, end). Both the local
// metadata and the remote collection description are narrowed.
func (s *Set) FilterDate(start, end time.Time) *Set {
	var kept []compute.Scene
	for _, sc := range s.Scenes {
		if sc.AcquisitionTime.Before(start) || !sc.AcquisitionTime.Before(end) {
			continue
		}
		kept = append(kept, sc)
	}
	return &Set{
		Scenes:     kept,
		Collection: s.Collection.FilterDate(start.Format(dates.ISOFormat), end.Format(dates.ISOFormat)),
	}
}

// Least returns the acquisition with the lowest cloud percentage at or below
// the threshold. Ties break deterministically: earliest acquisition time,
// then lexicographic scene ID. Returns false when no acquisition qualifies.
func (s *Set) Least(maxCloudPercent float64) (compute.Scene, bool) {
	var best compute.Scene
	found := false
	for _, sc := range s.Scenes {
		if sc.CloudPercent > maxCloudPercent {
			continue
		}
		if !found || less(sc, best) {
			best = sc
			found = true
		}
	}
	return best, found
}

func less(a, b compute.Scene) bool {
	if a.CloudPercent != b.CloudPercent {
		return a.CloudPercent < b.CloudPercent
	}
	if !a.AcquisitionTime.Equal(b.AcquisitionTime) {
		return a.AcquisitionTime.Before(b.AcquisitionTime)
	}
	return a.ID < b.ID
}
