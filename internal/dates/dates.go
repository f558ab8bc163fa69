package dates

import (
	"errors"
	"time"
)

// ErrInvalidDateOrder is returned when the start date falls after the end date
var ErrInvalidDateOrder = errors.New("start date is after end date")

// ISOFormat is the wire format for all dates exchanged with the compute service
const ISOFormat = "2006-01-02"

// Window holds the before/after observation windows derived from a fire period
type Window struct {
	BeforeStart time.Time
	BeforeEnd   time.Time
	AfterStart  time.Time
	AfterEnd    time.Time
}

// Expand widens a [start, end] fire period into before/after observation
// windows of marginDays each: [start-margin, start] and [end, end+margin].
func Expand(start, end time.Time, marginDays int) (Window, error) {
	if start.After(end) {
		return Window{}, ErrInvalidDateOrder
	}

	return Window{
		BeforeStart: start.AddDate(0, 0, -marginDays),
		BeforeEnd:   start,
		AfterStart:  end,
		AfterEnd:    end.AddDate(0, 0, marginDays),
	}, nil
}
