// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"errors"
	"fmt"

	"github.com/ManuGH/vidgrab/internal/extractor"
	"github.com/ManuGH/vidgrab/internal/metrics"
)

var (
	// ErrInvalidRequest reports a missing or malformed URL or quality.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrBusy reports that another job holds the slot.
	ErrBusy = errors.New("another job is active")
	// ErrCookiesMissing reports that required cookies are absent.
	ErrCookiesMissing = errors.New("cookies file missing")
	// ErrNoOutputProduced reports a zero exit that left no artifact.
	ErrNoOutputProduced = fmt.Errorf("%w: no output produced", extractor.ErrExtractionFailed)
	// ErrAmbiguousOutput reports a zero exit that left more than one artifact.
	ErrAmbiguousOutput = fmt.Errorf("%w: ambiguous output", extractor.ErrExtractionFailed)
	// ErrCancelled reports a job whose context ended before completion.
	ErrCancelled = errors.New("job cancelled")
)

// outcomeOf maps a terminal error to a bounded metrics label.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrCancelled):
		return metrics.OutcomeCancelled
	case errors.Is(err, ErrCookiesMissing):
		return metrics.OutcomeCookiesMissing
	case errors.Is(err, ErrNoOutputProduced):
		return metrics.OutcomeNoOutput
	case errors.Is(err, ErrAmbiguousOutput):
		return metrics.OutcomeAmbiguousOutput
	case errors.Is(err, extractor.ErrExtractionFailed):
		return metrics.OutcomeExtraction
	default:
		return metrics.OutcomeError
	}
}
