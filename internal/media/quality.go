// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidQuality is returned for unrecognised quality strings.
var ErrInvalidQuality = errors.New("invalid quality")

// Heights lists the accepted height buckets in ascending order.
var Heights = []int{144, 240, 360, 480, 720, 1080, 1440, 2160, 4320}

// Quality is either a height bucket or audio-only.
type Quality struct {
	Height int
	Audio  bool
}

// AudioOnly is the audio extraction quality.
var AudioOnly = Quality{Audio: true}

// ParseQuality accepts "audio", "mp3", or a height bucket with an optional
// "p" suffix ("720", "720p").
func ParseQuality(s string) (Quality, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "audio", "mp3":
		return AudioOnly, nil
	case "":
		return Quality{}, fmt.Errorf("%w: empty", ErrInvalidQuality)
	}
	h, err := strconv.Atoi(strings.TrimSuffix(v, "p"))
	if err != nil {
		return Quality{}, fmt.Errorf("%w: %q", ErrInvalidQuality, s)
	}
	for _, bucket := range Heights {
		if h == bucket {
			return Quality{Height: h}, nil
		}
	}
	return Quality{}, fmt.Errorf("%w: unsupported height %d", ErrInvalidQuality, h)
}

// IsZero reports whether q is unset.
func (q Quality) IsZero() bool { return !q.Audio && q.Height == 0 }

func (q Quality) String() string {
	switch {
	case q.Audio:
		return "audio"
	case q.Height > 0:
		return strconv.Itoa(q.Height) + "p"
	default:
		return "auto"
	}
}
