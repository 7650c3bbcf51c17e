// Package reddit fetches candidate posts from a subreddit listing.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/vidrelay/vidrelay/internal/config"
	"github.com/vidrelay/vidrelay/internal/domain"
)

// Client fetches post listings from the feed source.
type Client struct {
	httpClient *http.Client
	baseURL    string
	subreddit  string
	limit      int
	userAgent  string
}

// NewClient creates a new feed client.
func NewClient(cfg config.RedditConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   cfg.BaseURL,
		subreddit: cfg.Subreddit,
		limit:     cfg.Limit,
		userAgent: cfg.UserAgent,
	}
}

// Fetch retrieves the newest posts of the subreddit, oldest first.
// Malformed children are skipped rather than surfaced.
func (c *Client) Fetch(ctx context.Context) ([]Post, error) {
	url := fmt.Sprintf("%s/r/%s/new.json?limit=%d", c.baseURL, c.subreddit, c.limit)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: feed listing", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrFeedUnavailable, resp.StatusCode, string(body))
	}

	var listing listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("%w: decode listing: %v", domain.ErrFeedUnavailable, err)
	}

	posts := make([]Post, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		p := child.Data
		if p.Title == "" && p.URL == "" {
			// Degenerate record, nothing to work with.
			continue
		}
		if p.RemovedByCategory != "" {
			continue
		}
		posts = append(posts, p)
	}

	// The listing arrives newest first; the pipeline processes oldest first.
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedUTC < posts[j].CreatedUTC
	})

	return posts, nil
}
