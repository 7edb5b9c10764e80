// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ManuGH/vidgrab/internal/media"
)

// Request is the client-supplied job input.
type Request struct {
	URL      string `json:"url"`
	Quality  string `json:"quality"`
	AllowAV1 bool   `json:"allowAV1"`
}

// Spec is a validated, immutable Request.
type Spec struct {
	URL           string
	Platform      media.Platform
	Quality       media.Quality
	AllowAnyCodec bool
}

// Validate checks r and derives the platform. The quality is required except
// for Facebook, where it is ignored.
func (r Request) Validate() (Spec, error) {
	raw := strings.TrimSpace(r.URL)
	if raw == "" {
		return Spec{}, fmt.Errorf("%w: url required", ErrInvalidRequest)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Spec{}, fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalidRequest)
	}

	spec := Spec{
		URL:           u.String(),
		Platform:      media.DetectPlatform(raw),
		AllowAnyCodec: r.AllowAV1,
	}
	if spec.Platform == media.PlatformFacebook {
		return spec, nil
	}

	q, err := media.ParseQuality(r.Quality)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	spec.Quality = q
	return spec, nil
}

// Plan resolves the format plan for s.
func (s Spec) Plan() media.Plan {
	return media.Resolve(s.Platform, s.Quality, s.AllowAnyCodec)
}
