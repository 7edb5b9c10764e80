// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ManuGH/vidgrab/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, version+" (commit: "), out)
}

func TestHealthcheckCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/readyz" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out, err := execute(t, "healthcheck", "--mode", "live", "--addr", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Healthcheck successful (live)")

	_, err = execute(t, "healthcheck", "--addr", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestProbeCommand_RejectsInvalidInput(t *testing.T) {
	t.Setenv("VIDGRAB_WORKSPACE_ROOT", t.TempDir())

	_, err := execute(t, "probe", "not-a-url")
	assert.ErrorIs(t, err, jobs.ErrInvalidRequest)

	_, err = execute(t, "probe", "https://youtu.be/abc", "--quality", "999")
	assert.ErrorIs(t, err, jobs.ErrInvalidRequest)

	_, err = execute(t, "probe")
	assert.Error(t, err, "url argument is required")
}

func TestExistingFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cookies.txt")
	require.NoError(t, os.WriteFile(file, []byte("# Netscape HTTP Cookie File\n"), 0o600))

	assert.Equal(t, file, existingFile(file))
	assert.Empty(t, existingFile(dir))
	assert.Empty(t, existingFile(filepath.Join(dir, "missing.txt")))
	assert.Empty(t, existingFile(""))
}
