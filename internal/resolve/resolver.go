// Package resolve recovers direct media URLs from indirect pages by driving
// a headless browser and observing its network and DOM activity.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidrelay/vidrelay/internal/classify"
	"github.com/vidrelay/vidrelay/internal/config"
	"github.com/vidrelay/vidrelay/internal/domain"
)

// Browser opens isolated page sessions. The pipeline only depends on this
// capability surface so tests can replay recorded activity without ever
// launching a real browser.
type Browser interface {
	// Open navigates a fresh session to url. Network observation starts
	// before navigation so requests fired during load are captured.
	Open(ctx context.Context, url string) (Session, error)
}

// Session is one live page.
type Session interface {
	// ObservedURLs returns the request and response URLs seen so far.
	ObservedURLs() []string

	// WaitForURL blocks until a subsequently observed URL satisfies match,
	// the timeout lapses, or ctx is done.
	WaitForURL(ctx context.Context, match func(string) bool, timeout time.Duration) (string, bool)

	// MediaElementSources returns the src attributes of rendered
	// video/source elements.
	MediaElementSources(ctx context.Context) ([]string, error)

	// ResourceTimingURLs returns the page's resource-timing entry names.
	ResourceTimingURLs(ctx context.Context) ([]string, error)

	// Close tears the session down.
	Close(ctx context.Context) error
}

// Resolver runs the resolution ladder against indirect URLs.
type Resolver struct {
	browser Browser
	cfg     config.BrowserConfig
	logger  *slog.Logger
}

// NewResolver creates a resolver on top of a Browser implementation.
func NewResolver(browser Browser, cfg config.BrowserConfig, logger *slog.Logger) *Resolver {
	return &Resolver{browser: browser, cfg: cfg, logger: logger}
}

// strategy is one rung of the ladder: it either produces a URL or passes.
type strategy struct {
	name string
	run  func(ctx context.Context, s Session) (string, bool)
}

// Resolve drives the ladder against an indirect URL and returns the first
// direct media URL any strategy finds. The session is torn down
// unconditionally; a hung close cannot stall the pipeline.
func (r *Resolver) Resolve(ctx context.Context, pageURL string) (string, error) {
	session, err := r.browser.Open(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("open browser session: %w", err)
	}
	defer r.teardown(session, pageURL)

	ladder := []strategy{
		{
			name: "network-observed",
			run: func(ctx context.Context, s Session) (string, bool) {
				return firstMatch(s.ObservedURLs())
			},
		},
		{
			name: "network-wait",
			run: func(ctx context.Context, s Session) (string, bool) {
				return s.WaitForURL(ctx, classify.DirectMedia, r.cfg.WaitTimeout)
			},
		},
		{
			name: "dom-video-elements",
			run: func(ctx context.Context, s Session) (string, bool) {
				srcs, err := s.MediaElementSources(ctx)
				if err != nil {
					r.logger.Debug("dom query failed", "url", pageURL, "error", err)
					return "", false
				}
				return firstMatch(srcs)
			},
		},
		{
			name: "resource-timing",
			run: func(ctx context.Context, s Session) (string, bool) {
				entries, err := s.ResourceTimingURLs(ctx)
				if err != nil {
					r.logger.Debug("resource timing query failed", "url", pageURL, "error", err)
					return "", false
				}
				return firstMatch(entries)
			},
		},
	}

	for _, step := range ladder {
		if found, ok := step.run(ctx, session); ok {
			r.logger.Info("media resolved", "url", pageURL, "resolved", found, "strategy", step.name)
			return found, nil
		}
	}

	return "", fmt.Errorf("%w: %s", domain.ErrResolutionFailed, pageURL)
}

// teardown closes the session with a hard ceiling. Close errors are
// swallowed except unexpected ones: a disconnect during close is routine,
// anything else is worth a log line.
func (r *Resolver) teardown(session Session, pageURL string) {
	closeCtx, cancel := context.WithTimeout(context.Background(), r.cfg.CloseTimeout)
	defer cancel()

	if err := session.Close(closeCtx); err != nil && !disconnectError(err) {
		r.logger.Warn("browser session close failed", "url", pageURL, "error", err)
	}
}

func disconnectError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func firstMatch(urls []string) (string, bool) {
	for _, u := range urls {
		if classify.DirectMedia(u) {
			return u, true
		}
	}
	return "", false
}
