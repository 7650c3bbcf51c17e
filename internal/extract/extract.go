// Package extract derives the best candidate media reference from a raw
// feed post record.
package extract

import (
	"html"
	"strings"
	"time"

	"github.com/vidrelay/vidrelay/internal/canonical"
	"github.com/vidrelay/vidrelay/internal/classify"
	"github.com/vidrelay/vidrelay/internal/domain"
	"github.com/vidrelay/vidrelay/pkg/reddit"
)

// Describe converts a raw feed record into the strict domain post.
func Describe(p reddit.Post) domain.Post {
	created := time.Unix(int64(p.CreatedUTC), 0).UTC()

	return domain.Post{
		Key:       domain.PostKey(canonical.PostKey(p.Name, p.ID, p.Permalink, p.URL, p.Title, created)),
		ID:        p.ID,
		Title:     p.Title,
		Flair:     p.LinkFlairText,
		URL:       decode(p.URL),
		Permalink: p.Permalink,
		CreatedAt: created,
	}
}

// Extract returns the single best media candidate for a post, or false when
// the record carries nothing usable. Priority, first match wins:
//
//  1. the native video descriptor's playable URL (with dimensions/duration)
//  2. a gallery's original-resolution first asset
//  3. the richest preview variant (muxed video > animated image > static)
//  4. the explicitly overridden destination URL
//  5. the post's own URL, if its suffix is a known media format
//
// All extracted URLs are entity-decoded; the feed JSON double-escapes
// ampersands.
func Extract(p reddit.Post) (*domain.MediaReference, bool) {
	if ref, ok := fromNativeVideo(p); ok {
		return ref, true
	}
	if ref, ok := fromGallery(p); ok {
		return ref, true
	}
	if ref, ok := fromPreview(p); ok {
		return ref, true
	}
	if p.URLOverridden != "" {
		return newRef(p.URLOverridden, thumbnail(p)), true
	}
	if p.URL != "" && classify.DirectMedia(decode(p.URL)) {
		return newRef(p.URL, thumbnail(p)), true
	}
	return nil, false
}

func fromNativeVideo(p reddit.Post) (*domain.MediaReference, bool) {
	for _, m := range []*reddit.Media{p.SecureMedia, p.Media} {
		if m == nil || m.RedditVideo == nil || m.RedditVideo.FallbackURL == "" {
			continue
		}
		rv := m.RedditVideo
		ref := newRef(rv.FallbackURL, thumbnail(p))
		ref.Width = rv.Width
		ref.Height = rv.Height
		ref.Duration = rv.Duration
		return ref, true
	}
	return nil, false
}

func fromGallery(p reddit.Post) (*domain.MediaReference, bool) {
	if p.GalleryData == nil || len(p.GalleryData.Items) == 0 || p.MediaMetadata == nil {
		return nil, false
	}

	// Only the leading asset is relayed; the sink gets one attachment.
	item := p.GalleryData.Items[0]
	meta, ok := p.MediaMetadata[item.MediaID]
	if !ok || meta.Status != "valid" {
		return nil, false
	}

	switch {
	case meta.Source.MP4 != "":
		return newRef(meta.Source.MP4, thumbnail(p)), true
	case meta.Source.GIF != "":
		return newRef(meta.Source.GIF, thumbnail(p)), true
	case meta.Source.URL != "":
		return newRef(meta.Source.URL, thumbnail(p)), true
	}
	return nil, false
}

func fromPreview(p reddit.Post) (*domain.MediaReference, bool) {
	if p.Preview == nil {
		return nil, false
	}

	// A muxed video preview beats any image-derived variant.
	if rv := p.Preview.RedditVideoPreview; rv != nil && rv.FallbackURL != "" {
		ref := newRef(rv.FallbackURL, thumbnail(p))
		ref.Width = rv.Width
		ref.Height = rv.Height
		ref.Duration = rv.Duration
		return ref, true
	}

	if len(p.Preview.Images) == 0 {
		return nil, false
	}
	img := p.Preview.Images[0]

	switch {
	case img.Variants.MP4 != nil && img.Variants.MP4.Source.URL != "":
		ref := newRef(img.Variants.MP4.Source.URL, thumbnail(p))
		ref.Width = img.Variants.MP4.Source.Width
		ref.Height = img.Variants.MP4.Source.Height
		return ref, true
	case img.Variants.GIF != nil && img.Variants.GIF.Source.URL != "":
		return newRef(img.Variants.GIF.Source.URL, thumbnail(p)), true
	case img.Source.URL != "":
		ref := newRef(img.Source.URL, thumbnail(p))
		ref.Width = img.Source.Width
		ref.Height = img.Source.Height
		return ref, true
	}
	return nil, false
}

func newRef(rawURL, thumb string) *domain.MediaReference {
	return &domain.MediaReference{
		RawURL:       decode(rawURL),
		ThumbnailURL: thumb,
	}
}

// thumbnail returns the post thumbnail when it is a real URL; the feed uses
// marker words ("self", "default", "nsfw") for posts without one.
func thumbnail(p reddit.Post) string {
	if strings.HasPrefix(p.Thumbnail, "http://") || strings.HasPrefix(p.Thumbnail, "https://") {
		return decode(p.Thumbnail)
	}
	return ""
}

func decode(u string) string {
	return html.UnescapeString(u)
}
