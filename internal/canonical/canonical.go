// Package canonical normalizes URLs and post identities into stable dedup keys.
package canonical

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Canonicalize reduces a URL or identifier to its stable comparison form:
// lower-cased host, query and fragment stripped, trailing slashes trimmed
// from the path. Inputs that do not parse as absolute URLs are returned
// trimmed but otherwise unchanged. The function is idempotent.
func Canonicalize(raw string) string {
	trimmed := strings.TrimSpace(raw)

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return trimmed
	}

	host := strings.ToLower(u.Host)
	path := strings.TrimRight(u.Path, "/")

	return u.Scheme + "://" + host + path
}

// PostKey derives the canonical identity of a feed post. Candidates are
// tried in order of stability: the feed-assigned fullname, the short ID,
// the permalink, the post URL, and finally a title+timestamp composite so
// that even a degenerate record still dedups consistently.
func PostKey(fullname, id, permalink, postURL, title string, created time.Time) string {
	switch {
	case fullname != "":
		return Canonicalize(fullname)
	case id != "":
		return Canonicalize(id)
	case permalink != "":
		return Canonicalize(permalink)
	case postURL != "":
		return Canonicalize(postURL)
	default:
		return Canonicalize(fmt.Sprintf("%s|%d", title, created.Unix()))
	}
}
