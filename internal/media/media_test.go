// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url  string
		want Platform
	}{
		{"https://youtu.be/x", PlatformYouTube},
		{"https://www.youtube.com/watch?v=abc", PlatformYouTube},
		{"https://music.youtube.com/watch?v=abc", PlatformYouTube},
		{"https://m.youtube.com/watch?v=abc", PlatformYouTube},
		{"https://facebook.com/v/1", PlatformFacebook},
		{"https://www.facebook.com/watch/?v=1", PlatformFacebook},
		{"https://fb.watch/abc/", PlatformFacebook},
		{"https://vimeo.com/1", PlatformUnknown},
		{"https://notyoutube.com/x", PlatformUnknown},
		{"https://youtube.com.evil.example/x", PlatformUnknown},
		{"::not a url", PlatformUnknown},
		{"", PlatformUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectPlatform(tt.url))
		})
	}
}

func TestParseQuality(t *testing.T) {
	tests := []struct {
		in      string
		want    Quality
		wantErr bool
	}{
		{in: "720", want: Quality{Height: 720}},
		{in: "1080p", want: Quality{Height: 1080}},
		{in: " 4320P ", want: Quality{Height: 4320}},
		{in: "audio", want: AudioOnly},
		{in: "MP3", want: AudioOnly},
		{in: "", wantErr: true},
		{in: "721", wantErr: true},
		{in: "hd", wantErr: true},
		{in: "-720", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuality(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidQuality))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQualityString(t *testing.T) {
	assert.Equal(t, "720p", Quality{Height: 720}.String())
	assert.Equal(t, "audio", AudioOnly.String())
	assert.Equal(t, "auto", Quality{}.String())
	assert.True(t, Quality{}.IsZero())
}

func TestResolve(t *testing.T) {
	q720 := Quality{Height: 720}
	tests := []struct {
		name     string
		platform Platform
		quality  Quality
		anyCodec bool
		want     Plan
	}{
		{
			name:     "youtube safe",
			platform: PlatformYouTube,
			quality:  q720,
			want: Plan{
				Kind: KindVideo,
				Selectors: []string{
					"bv*[vcodec^=avc1][height=720][ext=mp4]+ba*[ext=m4a]",
					"bv*[vcodec^=avc1][height<=720][ext=mp4]+ba*[ext=m4a]",
				},
				Container: "mp4",
			},
		},
		{
			name:     "youtube any codec",
			platform: PlatformYouTube,
			quality:  Quality{Height: 2160},
			anyCodec: true,
			want: Plan{
				Kind:      KindVideo,
				Selectors: []string{"bv*[height=2160]+ba", "bv*[height<2160]+ba"},
				Container: "mp4",
				Warnings:  []string{WarnCodecNotGuaranteed},
			},
		},
		{
			name:     "unknown platform uses youtube rules",
			platform: PlatformUnknown,
			quality:  Quality{Height: 480},
			want: Plan{
				Kind: KindVideo,
				Selectors: []string{
					"bv*[vcodec^=avc1][height=480][ext=mp4]+ba*[ext=m4a]",
					"bv*[vcodec^=avc1][height<=480][ext=mp4]+ba*[ext=m4a]",
				},
				Container: "mp4",
			},
		},
		{
			name:     "facebook ignores quality",
			platform: PlatformFacebook,
			quality:  q720,
			anyCodec: true,
			want: Plan{
				Kind:      KindVideo,
				Selectors: []string{"bv*[vcodec^=avc1][ext=mp4]+ba*[ext=m4a]"},
				Container: "mp4",
			},
		},
		{
			name:     "audio only",
			platform: PlatformYouTube,
			quality:  AudioOnly,
			want:     Plan{Kind: KindAudio, AudioFormat: "mp3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.platform, tt.quality, tt.anyCodec)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
			}
			again := Resolve(tt.platform, tt.quality, tt.anyCodec)
			if diff := cmp.Diff(got, again); diff != "" {
				t.Errorf("Resolve() not deterministic (-first +second):\n%s", diff)
			}
		})
	}
}

func TestResolve_FacebookFixedForEveryQuality(t *testing.T) {
	want := Resolve(PlatformFacebook, Quality{}, false)
	qualities := []Quality{AudioOnly}
	for _, h := range Heights {
		qualities = append(qualities, Quality{Height: h})
	}
	for _, q := range qualities {
		for _, anyCodec := range []bool{false, true} {
			got := Resolve(PlatformFacebook, q, anyCodec)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("facebook plan varies at %s anyCodec=%v:\n%s", q, anyCodec, diff)
			}
		}
	}
}

func TestPlanArgs(t *testing.T) {
	video := Resolve(PlatformYouTube, Quality{Height: 720}, false)
	wantVideo := []string{
		"-f",
		"bv*[vcodec^=avc1][height=720][ext=mp4]+ba*[ext=m4a]/bv*[vcodec^=avc1][height<=720][ext=mp4]+ba*[ext=m4a]",
		"--merge-output-format", "mp4",
	}
	if diff := cmp.Diff(wantVideo, video.Args()); diff != "" {
		t.Errorf("video args (-want +got):\n%s", diff)
	}

	audio := Resolve(PlatformYouTube, AudioOnly, false)
	if diff := cmp.Diff([]string{"-x", "--audio-format", "mp3"}, audio.Args()); diff != "" {
		t.Errorf("audio args (-want +got):\n%s", diff)
	}
}

func TestProbeSelector(t *testing.T) {
	assert.Equal(t, "ba/b", ProbeSelector(PlatformYouTube, AudioOnly, false))
	assert.Equal(t,
		"bv*[vcodec^=avc1][height=1080][ext=mp4]/bv*[vcodec^=avc1][height<=1080][ext=mp4]",
		ProbeSelector(PlatformYouTube, Quality{Height: 1080}, false))
	assert.Equal(t,
		"bv*[height=1080]/bv*[height<1080]",
		ProbeSelector(PlatformYouTube, Quality{Height: 1080}, true))
}
