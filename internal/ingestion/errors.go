package ingestion

import (
	"errors"
	"fmt"
)

// Build phases named in PhaseError.
const (
	PhaseDecode        = "decode bundle"
	PhaseIngest        = "ingest content"
	PhaseTaxonomyEdges = "taxonomy edges"
	PhaseFetch         = "fetch content"
)

// ErrMalformedBundle marks a bundle whose overall structure is broken.
// Per-item problems never produce it; they are logged and skipped.
var ErrMalformedBundle = errors.New("malformed content bundle")

// PhaseError reports which build phase aborted.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
