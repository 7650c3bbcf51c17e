// Package classify labels media URLs by format and source trust.
//
// Classification is table-driven: an enumerated suffix set decides the
// format and an exact-host allow-list decides trust. Keeping both as plain
// tables keeps the rules auditable and testable in isolation.
package classify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/vidrelay/vidrelay/internal/domain"
)

// imageSuffixes are the file extensions treated as directly displayable images.
var imageSuffixes = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".gif":  {},
}

// trustedHosts are media hosts exempt from byte-level validation: the feed's
// own CDNs plus known-reliable third-party image hosts. Everything else,
// including video-platform playback hosts, must prove itself.
var trustedHosts = map[string]struct{}{
	"v.redd.it":                {},
	"i.redd.it":                {},
	"preview.redd.it":          {},
	"external-preview.redd.it": {},
	"reddit.com":               {},
	"www.reddit.com":           {},
	"i.imgur.com":              {},
	"imgur.com":                {},
}

// dashMarker identifies the feed CDN's fragmented, audio-less video renditions.
const dashMarker = "DASH_"

var dashRendition = regexp.MustCompile(`DASH_[0-9]+\.mp4$`)

// Classify returns the format and trust labels for a URL.
func Classify(rawURL string) (domain.MediaKind, domain.Trust) {
	return Kind(rawURL), TrustOf(rawURL)
}

// Kind returns the media format implied by the URL's path suffix.
func Kind(rawURL string) domain.MediaKind {
	p := pathOf(rawURL)

	switch {
	case strings.HasSuffix(p, ".m3u8"):
		return domain.KindHLS
	case strings.HasSuffix(p, ".mp4"):
		if strings.Contains(p, strings.ToLower(dashMarker)) {
			return domain.KindDASHVideoOnly
		}
		return domain.KindMP4
	}

	for suffix := range imageSuffixes {
		if strings.HasSuffix(p, suffix) {
			return domain.KindImage
		}
	}

	return domain.KindUnresolved
}

// TrustOf returns whether the URL's host is on the allow-list.
func TrustOf(rawURL string) domain.Trust {
	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.TrustUntrusted
	}

	if _, ok := trustedHosts[strings.ToLower(u.Hostname())]; ok {
		return domain.TrustTrusted
	}
	return domain.TrustUntrusted
}

// DirectMedia reports whether a URL points at media bytes rather than a
// page. This is the predicate the browser resolver matches observed network
// traffic against.
func DirectMedia(rawURL string) bool {
	return Kind(rawURL) != domain.KindUnresolved
}

// DASHAudioURL derives the paired audio-track URL for a fragmented video
// rendition, or "" when the URL does not follow the rendition naming scheme.
// The result is a best-effort sibling; the asset is still labeled audio-less.
func DASHAudioURL(videoURL string) string {
	if !dashRendition.MatchString(videoURL) {
		return ""
	}
	return dashRendition.ReplaceAllString(videoURL, "DASH_AUDIO_128.mp4")
}

// pathOf extracts the lower-cased path component for suffix matching,
// falling back to the whole lower-cased string for unparseable input.
func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Path)
}
