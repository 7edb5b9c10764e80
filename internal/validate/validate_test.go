// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidator_ListenAddr(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{":8080", false},
		{"127.0.0.1:3000", false},
		{"[::1]:0", false},
		{"8080", true},
		{":http", true},
		{":70000", true},
	}
	for _, tt := range tests {
		v := New()
		v.ListenAddr("ListenAddr", tt.addr)
		if got := !v.IsValid(); got != tt.wantErr {
			t.Errorf("ListenAddr(%q) error = %v, want %v", tt.addr, got, tt.wantErr)
		}
	}
}

func TestValidator_Range(t *testing.T) {
	v := New()
	v.Range("Burst", 0, 1, 10)
	v.Range("Burst", 5, 1, 10)
	v.FloatRange("SamplingRate", 1.5, 0, 1)
	if got := len(v.Errors()); got != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", got, v.Err())
	}
}

func TestValidator_Directory(t *testing.T) {
	base := t.TempDir()

	t.Run("creates missing directory", func(t *testing.T) {
		v := New()
		dir := filepath.Join(base, "work")
		v.Directory("WorkspaceRoot", dir, false)
		if !v.IsValid() {
			t.Fatalf("unexpected error: %v", v.Err())
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("directory was not created: %v", err)
		}
	})

	t.Run("must exist", func(t *testing.T) {
		v := New()
		v.Directory("WorkspaceRoot", filepath.Join(base, "missing"), true)
		if v.IsValid() {
			t.Fatal("expected error for missing directory")
		}
	})

	t.Run("file is not a directory", func(t *testing.T) {
		file := filepath.Join(base, "file")
		if err := os.WriteFile(file, nil, 0o600); err != nil {
			t.Fatal(err)
		}
		v := New()
		v.Directory("WorkspaceRoot", file, false)
		if v.IsValid() {
			t.Fatal("expected error for regular file")
		}
	})

	t.Run("traversal rejected", func(t *testing.T) {
		v := New()
		v.Directory("WorkspaceRoot", "../etc", false)
		if v.IsValid() {
			t.Fatal("expected traversal error")
		}
	})
}

func TestValidator_Durations(t *testing.T) {
	v := New()
	v.PositiveDuration("Probe.Timeout", 0)
	v.NonNegativeDuration("Job.Timeout", 0)
	v.NonNegativeDuration("Job.Timeout", -time.Second)
	if got := len(v.Errors()); got != 2 {
		t.Fatalf("expected 2 errors, got %d", got)
	}
}

func TestValidator_LogLevel(t *testing.T) {
	v := New()
	v.LogLevel("Log.Level", "DEBUG")
	v.LogLevel("Log.Level", "verbose")
	if got := len(v.Errors()); got != 1 {
		t.Fatalf("expected 1 error, got %d", got)
	}
}

func TestValidationError_Joins(t *testing.T) {
	v := New()
	if v.Err() != nil {
		t.Fatal("empty validator must return nil error")
	}
	v.NotEmpty("Extractor.Bin", " ")
	v.OneOf("Telemetry.Exporter", "zipkin", []string{"grpc", "http"})

	err := v.Err()
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(verr.Errors()))
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("expected joined message, got %q", err.Error())
	}
}
