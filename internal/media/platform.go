// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media holds the pure download planning logic: platform detection,
// quality parsing and format selector resolution.
package media

import (
	"net/url"
	"strings"
)

// Platform identifies the site a URL belongs to.
type Platform string

const (
	PlatformYouTube  Platform = "youtube"
	PlatformFacebook Platform = "facebook"
	PlatformUnknown  Platform = "unknown"
)

var platformHosts = map[string]Platform{
	"youtube.com":       PlatformYouTube,
	"youtu.be":          PlatformYouTube,
	"music.youtube.com": PlatformYouTube,
	"facebook.com":      PlatformFacebook,
	"fb.watch":          PlatformFacebook,
	"m.facebook.com":    PlatformFacebook,
}

// DetectPlatform classifies rawURL by host. The host matches when it equals a
// known domain or is a subdomain of one. Unparseable input is PlatformUnknown.
func DetectPlatform(rawURL string) Platform {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return PlatformUnknown
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	for host != "" {
		if p, ok := platformHosts[host]; ok {
			return p
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	return PlatformUnknown
}

// String implements fmt.Stringer.
func (p Platform) String() string { return string(p) }
