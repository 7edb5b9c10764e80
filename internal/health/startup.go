// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ManuGH/vidgrab/internal/config"
	"github.com/ManuGH/vidgrab/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment and dependencies before starting the server.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkWorkspaceRoot(logger, cfg.Workspace.Root); err != nil {
		return fmt.Errorf("workspace root check failed: %w", err)
	}

	path, err := exec.LookPath(cfg.Extractor.Bin)
	if err != nil {
		return fmt.Errorf("extractor binary not found (%s): %w", cfg.Extractor.Bin, err)
	}
	logger.Info().Str("extractor", path).Msg("extractor binary available")

	if cfg.Cookies.Required {
		if err := checkFileReadable(cfg.Cookies.Path); err != nil {
			logger.Warn().
				Err(err).
				Str(log.FieldPath, cfg.Cookies.Path).
				Msg("cookies file unavailable; non-Facebook downloads will fail until it exists")
		}
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkWorkspaceRoot(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".vidgrab_write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %w)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str(log.FieldPath, path).Msg("workspace root is writable")
	return nil
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return err
	}
	return f.Close()
}
