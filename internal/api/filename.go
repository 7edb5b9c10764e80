// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"mime"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	fallbackFilename = "download"
	maxFilenameBytes = 200
)

// sanitizeFilename makes an artifact name safe for Content-Disposition:
// NFC-normalized, without control characters, separators, or quotes, and
// bounded in length with the extension preserved.
func sanitizeFilename(name string) string {
	name = norm.NFC.String(strings.ToValidUTF8(name, ""))
	name = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r), r == utf8.RuneError:
			return -1
		case r == '/', r == '\\', r == '"', r == ':', r == '*', r == '?', r == '<', r == '>', r == '|':
			return '_'
		}
		return r
	}, name)
	name = strings.TrimRight(strings.TrimSpace(name), " .")

	// Split before trimming the stem so a leading dot cannot eat the
	// extension separator.
	ext := filepath.Ext(name)
	if len(ext) > 16 {
		ext = ""
	}
	stem := strings.Trim(strings.TrimSuffix(name, ext), " .")
	for len(stem)+len(ext) > maxFilenameBytes {
		_, size := utf8.DecodeLastRuneInString(stem)
		stem = strings.TrimRight(stem[:len(stem)-size], " .")
	}
	if stem == "" {
		stem = fallbackFilename
	}
	return stem + ext
}

// contentDisposition renders an attachment header. Non-ASCII names use the
// RFC 2231 extended form.
func contentDisposition(name string) string {
	v := mime.FormatMediaType("attachment", map[string]string{"filename": sanitizeFilename(name)})
	if v == "" {
		return `attachment; filename="` + fallbackFilename + `"`
	}
	return v
}

// contentType guesses the artifact media type from its extension.
func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
