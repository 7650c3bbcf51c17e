package domain

import (
	"time"
)

// PostKey is the canonical dedup identity of a feed post.
type PostKey string

// String returns the string representation of the PostKey.
func (k PostKey) String() string {
	return string(k)
}

// Post is one feed entry, parsed into a strict record. It is materialized
// once per feed fetch and never mutated.
type Post struct {
	Key       PostKey
	ID        string
	Title     string
	Flair     string
	URL       string
	Permalink string
	CreatedAt time.Time
}

// MediaKind classifies a media URL's format.
type MediaKind string

const (
	KindImage         MediaKind = "image"
	KindMP4           MediaKind = "mp4"
	KindDASHVideoOnly MediaKind = "dash-video-only"
	KindHLS           MediaKind = "hls"
	KindUnresolved    MediaKind = "unresolved"
)

// Playable reports whether the kind is a video format the sink could
// conceivably play inline.
func (k MediaKind) Playable() bool {
	return k == KindMP4 || k == KindDASHVideoOnly || k == KindHLS
}

// Trust labels whether a media host is exempt from byte-level validation.
type Trust string

const (
	TrustTrusted   Trust = "trusted"
	TrustUntrusted Trust = "untrusted"
)

// MediaReference is the working media candidate for a post. It is mutated
// in place as resolution proceeds: an indirect URL is replaced by a resolved
// direct URL, and Kind/Trust are recomputed after each replacement.
type MediaReference struct {
	RawURL       string
	CanonicalKey string
	Kind         MediaKind
	Trust        Trust

	// AudioURL is the derived paired audio track for dash-video-only
	// references. It may be empty; the asset is still treated as audio-less.
	AudioURL string

	// Playback metadata from the feed's native video descriptor, zero when
	// unknown. Passed through to the delivery sink.
	Width        int
	Height       int
	Duration     int
	ThumbnailURL string
}

// Direct reports whether the reference already points at playable or
// displayable bytes rather than an HTML page.
func (r *MediaReference) Direct() bool {
	return r.Kind != KindUnresolved
}

// DeliveryVerb is the sink operation chosen for a post.
type DeliveryVerb string

const (
	VerbPhoto DeliveryVerb = "photo"
	VerbVideo DeliveryVerb = "video"
	VerbText  DeliveryVerb = "text"
	VerbNone  DeliveryVerb = "none"
)

// DeliveryOutcome records the verb used and whether the sink accepted it.
// It is not persisted beyond logging; success gates the reservation commit.
type DeliveryOutcome struct {
	Verb    DeliveryVerb
	Success bool
}
