// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package extractor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExtractionFailed reports a download process that did not succeed.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrProbeFailed reports a metadata probe that produced no usable result.
	ErrProbeFailed = errors.New("probe failed")
)

// ExitError carries the exit status and stderr tail of a failed process.
type ExitError struct {
	Code       int
	StderrTail []string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("extractor exited with code %d", e.Code)
	if len(e.StderrTail) > 0 {
		msg += ": " + e.StderrTail[len(e.StderrTail)-1]
	}
	return msg
}

// Detail returns the full stderr tail joined by newlines.
func (e *ExitError) Detail() string {
	return strings.Join(e.StderrTail, "\n")
}
