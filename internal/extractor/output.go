// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package extractor

import (
	"bytes"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// StderrPrefix marks log events that came from the process's stderr.
const StderrPrefix = "[stderr] "

var progressPattern = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)%`)

// ParseProgress returns the first percentage in line, floored and clamped to
// [0,100]. ok is false when the line carries no percentage.
func ParseProgress(line string) (pct int, ok bool) {
	m := progressPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return clampPercent(int(math.Floor(v))), true
}

func clampPercent(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

var newlineReplacer = strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\r", `\n`)

// EscapeLine replaces embedded line breaks with a literal `\n` so that one
// log event always fits one SSE data line.
func EscapeLine(s string) string {
	return newlineReplacer.Replace(s)
}

// scanLines is a bufio.SplitFunc that splits on '\n' or '\r'. Progress
// output rewrites the current line with '\r', so each redraw becomes a token.
// Empty tokens are returned and skipped by the caller.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
