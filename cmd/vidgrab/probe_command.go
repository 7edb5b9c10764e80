// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"os"

	"github.com/ManuGH/vidgrab/internal/cache"
	"github.com/ManuGH/vidgrab/internal/config"
	"github.com/ManuGH/vidgrab/internal/extractor"
	"github.com/ManuGH/vidgrab/internal/jobs"
	"github.com/ManuGH/vidgrab/internal/log"
	"github.com/spf13/cobra"
)

func newProbeCommand(configFlag *string) *cobra.Command {
	var quality string
	var allowAV1 bool

	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Print resolution, codec and size for a URL without downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader(*configFlag, version).Load()
			if err != nil {
				return err
			}
			log.Configure(log.Config{Level: "warn", Output: cmd.ErrOrStderr(), Service: cfg.Log.Service, Version: version})

			spec, err := jobs.Request{URL: args[0], Quality: quality, AllowAV1: allowAV1}.Validate()
			if err != nil {
				return err
			}

			prober := extractor.NewProber(extractor.ProberConfig{
				Bin:     cfg.Extractor.Bin,
				Args:    cfg.Extractor.Args,
				Timeout: cfg.Probe.Timeout,
			}, cache.NoOpCache{})
			res, err := prober.Probe(cmd.Context(), extractor.ProbeRequest{
				URL:           spec.URL,
				Platform:      spec.Platform,
				Quality:       spec.Quality,
				AllowAnyCodec: spec.AllowAnyCodec,
				CookiesPath:   existingFile(cfg.Cookies.Path),
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVarP(&quality, "quality", "q", "1080", "Target quality: height (e.g. 720, 1080p) or audio")
	cmd.Flags().BoolVar(&allowAV1, "allow-av1", false, "Allow AV1/VP9 formats")
	return cmd
}

// existingFile returns path when it names a regular file.
func existingFile(path string) string {
	if path == "" {
		return ""
	}
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return path
}
