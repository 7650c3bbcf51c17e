package reddit

// listingResponse is the envelope returned by a subreddit listing endpoint.
type listingResponse struct {
	Data struct {
		Children []struct {
			Kind string `json:"kind"`
			Data Post   `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Post is one raw feed record. Optional media descriptors are pointers so
// that absent and empty are distinguishable; malformed records are skipped
// by the caller rather than propagated.
type Post struct {
	Name              string  `json:"name"` // fullname, e.g. "t3_1abcd"
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	LinkFlairText     string  `json:"link_flair_text"`
	Permalink         string  `json:"permalink"`
	URL               string  `json:"url"`
	URLOverridden     string  `json:"url_overridden_by_dest"`
	CreatedUTC        float64 `json:"created_utc"`
	Thumbnail         string  `json:"thumbnail"`
	IsGallery         bool    `json:"is_gallery"`
	RemovedByCategory string  `json:"removed_by_category"`

	Media         *Media                   `json:"media"`
	SecureMedia   *Media                   `json:"secure_media"`
	GalleryData   *GalleryData             `json:"gallery_data"`
	MediaMetadata map[string]GalleryMedia  `json:"media_metadata"`
	Preview       *Preview                 `json:"preview"`
}

// Media wraps the native video descriptor.
type Media struct {
	RedditVideo *RedditVideo `json:"reddit_video"`
}

// RedditVideo is the feed's native video descriptor.
type RedditVideo struct {
	FallbackURL string `json:"fallback_url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Duration    int    `json:"duration"`
	IsGIF       bool   `json:"is_gif"`
	HLSURL      string `json:"hls_url"`
	DASHURL     string `json:"dash_url"`
}

// GalleryData orders the items of a multi-image post.
type GalleryData struct {
	Items []GalleryItem `json:"items"`
}

// GalleryItem references one gallery asset by media ID.
type GalleryItem struct {
	MediaID string `json:"media_id"`
}

// GalleryMedia describes one gallery asset in media_metadata.
type GalleryMedia struct {
	Status string `json:"status"`
	Kind   string `json:"e"` // "Image" or "AnimatedImage"
	Mime   string `json:"m"`
	Source struct {
		URL string `json:"u"`
		GIF string `json:"gif"`
		MP4 string `json:"mp4"`
	} `json:"s"`
}

// Preview holds the pre-rendered variants of a post's lead media.
type Preview struct {
	Images             []PreviewImage `json:"images"`
	RedditVideoPreview *RedditVideo   `json:"reddit_video_preview"`
}

// PreviewImage is one preview asset with its alternative renditions.
type PreviewImage struct {
	Source   PreviewSource `json:"source"`
	Variants struct {
		MP4 *PreviewVariant `json:"mp4"`
		GIF *PreviewVariant `json:"gif"`
	} `json:"variants"`
}

// PreviewVariant is an alternative rendition of a preview asset.
type PreviewVariant struct {
	Source PreviewSource `json:"source"`
}

// PreviewSource is a single rendition.
type PreviewSource struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
