// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package extractor

import (
	"path/filepath"

	"github.com/ManuGH/vidgrab/internal/media"
)

// Invocation is one fully resolved download command.
type Invocation struct {
	URL         string
	Plan        media.Plan
	Workspace   string // exclusively owned output directory
	OutputName  string // yt-dlp output template, relative to Workspace
	CookiesPath string // optional Netscape cookies file
}

// OutputTemplate names artifacts after the platform and the remote id, never
// the remote title.
func OutputTemplate(p media.Platform) string {
	return string(p) + "_%(id)s.%(ext)s"
}

// BuildArgs assembles argv (without the binary) for a download. prefix is
// the configured argument prefix, for example ["-m", "yt_dlp"] when the
// binary is a Python interpreter.
func BuildArgs(prefix []string, inv Invocation) []string {
	args := make([]string, 0, len(prefix)+16)
	args = append(args, prefix...)
	args = append(args, "--newline", "--restrict-filenames", "--no-playlist")
	if inv.CookiesPath != "" {
		args = append(args, "--cookies", inv.CookiesPath)
	}
	args = append(args, inv.Plan.Args()...)
	args = append(args, "-o", filepath.Join(inv.Workspace, inv.OutputName))
	args = append(args, "--", inv.URL)
	return args
}

// BuildProbeArgs assembles argv for a metadata-only probe.
func BuildProbeArgs(prefix []string, url, selector, cookiesPath string) []string {
	args := make([]string, 0, len(prefix)+12)
	args = append(args, prefix...)
	args = append(args, "-j", "--skip-download", "--no-warnings", "--no-playlist")
	if cookiesPath != "" {
		args = append(args, "--cookies", cookiesPath)
	}
	if selector != "" {
		args = append(args, "-f", selector)
	}
	args = append(args, "--", url)
	return args
}
