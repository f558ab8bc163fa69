package compute

import "errors"

var (
	// ErrRequestTooLarge is returned when the service rejects a download
	// request for exceeding its response size limit. This is the only
	// retryable failure; the exporter reacts by coarsening resolution.
	ErrRequestTooLarge = errors.New("request size limit exceeded")
)

// requestTooLargeMarker is the substring the service embeds in a size-limit
// rejection. The service does not expose a machine-readable code for this
// case, so the marker is matched once here and surfaced as ErrRequestTooLarge;
// callers must never match the raw text themselves.
const requestTooLargeMarker = "Total request size"
