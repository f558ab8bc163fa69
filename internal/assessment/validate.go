package assessment

import (
	"fmt"
	"time"

	"github.com/firewatch/burn-severity-pipeline/internal/dates"
	"github.com/firewatch/burn-severity-pipeline/pkg/assess"
)

// ValidateRequest checks a wire request before the pipeline touches the
// network: ISO dates in chronological order, an AOI by value or by path, and
// a non-empty deliverable list drawn from the closed set.
func ValidateRequest(req assess.AssessRequest) error {
	start, err := time.Parse(dates.ISOFormat, req.StartDate)
	if err != nil {
		return fmt.Errorf("%w: start_date %q is not a YYYY-MM-DD date", ErrInvalidRequest, req.StartDate)
	}
	end, err := time.Parse(dates.ISOFormat, req.EndDate)
	if err != nil {
		return fmt.Errorf("%w: end_date %q is not a YYYY-MM-DD date", ErrInvalidRequest, req.EndDate)
	}
	if start.After(end) {
		return fmt.Errorf("%w: start_date must not be after end_date (%s > %s): %v",
			ErrInvalidRequest, req.StartDate, req.EndDate, dates.ErrInvalidDateOrder)
	}

	if len(req.AOI) == 0 && req.AOIPath == "" {
		return fmt.Errorf("%w: an AOI geometry or aoi_path is required", ErrInvalidRequest)
	}

	if len(req.Deliverables) == 0 {
		return fmt.Errorf("%w: at least one deliverable is required", ErrInvalidRequest)
	}
	for _, d := range req.Deliverables {
		if !assess.IsDeliverable(d) {
			return fmt.Errorf("%w: %q: %v", ErrInvalidRequest, d, ErrUnknownDeliverable)
		}
	}

	return nil
}
