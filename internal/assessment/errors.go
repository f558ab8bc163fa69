package assessment

import "errors"

var (
	// ErrEmptyCollection is returned when a date window contains no
	// acquisitions; it is raised before any export call is made
	ErrEmptyCollection = errors.New("no acquisitions in date window")

	// ErrInvalidRequest is returned when the request fails validation
	ErrInvalidRequest = errors.New("invalid assessment request")

	// ErrUnknownDeliverable is returned for a deliverable name outside the
	// closed set
	ErrUnknownDeliverable = errors.New("unknown deliverable")
)
