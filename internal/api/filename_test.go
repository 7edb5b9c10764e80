// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "youtube_abc.mp4", "youtube_abc.mp4"},
		{"separators", "a/b\\c.mp4", "a_b_c.mp4"},
		{"quotes and controls", "say \"hi\"\x07.mp3", "say _hi_.mp3"},
		{"trim dots and spaces", "  .clip.mp4 ", "clip.mp4"},
		{"empty stem", ".mp4", "download.mp4"},
		{"dots around stem", " ..clip. .mp4", "clip.mp4"},
		{"trailing dots", "clip.mp4..", "clip.mp4"},
		{"only dots", " .. ", "download"},
		{"empty", "", "download"},
		{"nfc", "Café.mp4", "Café.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.in))
		})
	}
}

func TestSanitizeFilename_Truncates(t *testing.T) {
	got := sanitizeFilename(strings.Repeat("é", 300) + ".mp4")
	assert.LessOrEqual(t, len(got), maxFilenameBytes)
	assert.True(t, strings.HasSuffix(got, ".mp4"))
	assert.True(t, strings.HasPrefix(got, "é"))
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, "attachment; filename=youtube_abc.mp4", contentDisposition("youtube_abc.mp4"))
	assert.Equal(t, `attachment; filename="my clip.mp4"`, contentDisposition("my clip.mp4"))
	assert.Equal(t, "attachment; filename*=utf-8''Caf%C3%A9.mp4", contentDisposition("Café.mp4"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "video/mp4", contentType("a.MP4"))
	assert.Equal(t, "audio/mpeg", contentType("a.mp3"))
	assert.Equal(t, "application/octet-stream", contentType("a.unknownext"))
}
