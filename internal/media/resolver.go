// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"fmt"
	"strings"
)

// Kind is the extraction path selected for a job.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

const (
	// Container is the merged output container for video plans.
	Container = "mp4"
	// AudioFormat is the fixed audio extraction target.
	AudioFormat = "mp3"

	facebookSelector = "bv*[vcodec^=avc1][ext=mp4]+ba*[ext=m4a]"

	// WarnCodecNotGuaranteed accompanies plans that allow non-H.264 codecs.
	WarnCodecNotGuaranteed = "non-H.264 codecs allowed (AV1/VP9); the file may not play on all devices"
)

// Plan is the resolved format strategy for one extractor invocation.
// Selectors are ordered most specific first and are evaluated once by the
// extractor through its "/" alternation.
type Plan struct {
	Kind        Kind
	Selectors   []string
	Container   string
	AudioFormat string
	Warnings    []string
}

// Selector joins the candidates into a single -f expression.
func (p Plan) Selector() string {
	return strings.Join(p.Selectors, "/")
}

// Args returns the extractor arguments selecting the plan's output.
func (p Plan) Args() []string {
	if p.Kind == KindAudio {
		return []string{"-x", "--audio-format", p.AudioFormat}
	}
	return []string{"-f", p.Selector(), "--merge-output-format", p.Container}
}

// Resolve maps (platform, quality, allowAnyCodec) to a Plan. It is pure:
// identical inputs always produce identical plans. Facebook always gets the
// fixed H.264 plan whatever the quality, audio-only included.
func Resolve(platform Platform, q Quality, allowAnyCodec bool) Plan {
	if platform == PlatformFacebook {
		return Plan{Kind: KindVideo, Selectors: []string{facebookSelector}, Container: Container}
	}
	if q.Audio {
		return Plan{Kind: KindAudio, AudioFormat: AudioFormat}
	}
	if allowAnyCodec {
		return Plan{
			Kind: KindVideo,
			Selectors: []string{
				fmt.Sprintf("bv*[height=%d]+ba", q.Height),
				fmt.Sprintf("bv*[height<%d]+ba", q.Height),
			},
			Container: Container,
			Warnings:  []string{WarnCodecNotGuaranteed},
		}
	}
	return Plan{
		Kind: KindVideo,
		Selectors: []string{
			fmt.Sprintf("bv*[vcodec^=avc1][height=%d][ext=mp4]+ba*[ext=m4a]", q.Height),
			fmt.Sprintf("bv*[vcodec^=avc1][height<=%d][ext=mp4]+ba*[ext=m4a]", q.Height),
		},
		Container: Container,
	}
}

// ProbeSelector returns the -f expression used for metadata probes. Video
// probes drop the audio half so the reported codec and height are the video
// stream's; audio probes use the best audio or best combined format.
func ProbeSelector(platform Platform, q Quality, allowAnyCodec bool) string {
	if q.Audio && platform != PlatformFacebook {
		return "ba/b"
	}
	plan := Resolve(platform, q, allowAnyCodec)
	out := make([]string, 0, len(plan.Selectors))
	for _, sel := range plan.Selectors {
		if i := strings.IndexByte(sel, '+'); i > 0 {
			sel = sel[:i]
		}
		out = append(out, sel)
	}
	return strings.Join(out, "/")
}
