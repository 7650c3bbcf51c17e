package resolve

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/vidrelay/vidrelay/internal/config"
)

// ChromeBrowser implements Browser on a headless Chrome instance via the
// DevTools protocol. Every Open launches an isolated session that is fully
// discarded on Close, bounding memory and connection use.
type ChromeBrowser struct {
	cfg config.BrowserConfig
}

// NewChromeBrowser creates the real browser automation backend.
func NewChromeBrowser(cfg config.BrowserConfig) *ChromeBrowser {
	return &ChromeBrowser{cfg: cfg}
}

var _ Browser = (*ChromeBrowser)(nil)

// Open starts a session and navigates to url. Network events are observed
// from before navigation; a navigation timeout is not fatal because traffic
// captured during a partial load is still useful to the ladder.
func (b *ChromeBrowser) Open(ctx context.Context, url string) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(b.cfg.UserAgent),
		chromedp.Flag("mute-audio", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		ctx: taskCtx,
		cancel: func() {
			taskCancel()
			allocCancel()
		},
	}

	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			s.observe(e.Request.URL)
		case *network.EventResponseReceived:
			s.observe(e.Response.URL)
		}
	})

	navCtx, navCancel := context.WithTimeout(taskCtx, b.cfg.NavTimeout)
	defer navCancel()

	err := chromedp.Run(navCtx, network.Enable(), chromedp.Navigate(url))
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		s.cancel()
		return nil, fmt.Errorf("navigate: %w", err)
	}

	return s, nil
}

// chromeSession adapts one chromedp context to the Session surface.
type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	urls    []string
	waiters []*urlWaiter
}

type urlWaiter struct {
	match func(string) bool
	found chan string
	once  sync.Once
}

var _ Session = (*chromeSession)(nil)

// observe records a network URL and wakes any matching waiter. Called from
// the chromedp event goroutine.
func (s *chromeSession) observe(url string) {
	if url == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.urls = append(s.urls, url)
	for _, w := range s.waiters {
		if w.match(url) {
			w.once.Do(func() { w.found <- url })
		}
	}
}

func (s *chromeSession) ObservedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.urls))
	copy(out, s.urls)
	return out
}

func (s *chromeSession) WaitForURL(ctx context.Context, match func(string) bool, timeout time.Duration) (string, bool) {
	w := &urlWaiter{match: match, found: make(chan string, 1)}

	s.mu.Lock()
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		for i, other := range s.waiters {
			if other == w {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case url := <-w.found:
		return url, true
	case <-timer.C:
		return "", false
	case <-ctx.Done():
		return "", false
	case <-s.ctx.Done():
		return "", false
	}
}

func (s *chromeSession) MediaElementSources(ctx context.Context) ([]string, error) {
	const script = `Array.from(document.querySelectorAll('video, video source'))
		.map(function(e) { return e.src || e.getAttribute('src') || ''; })
		.filter(Boolean)`

	var srcs []string
	if err := s.evaluate(ctx, script, &srcs); err != nil {
		return nil, fmt.Errorf("query media elements: %w", err)
	}
	return srcs, nil
}

func (s *chromeSession) ResourceTimingURLs(ctx context.Context) ([]string, error) {
	const script = `performance.getEntriesByType('resource').map(function(e) { return e.name; })`

	var names []string
	if err := s.evaluate(ctx, script, &names); err != nil {
		return nil, fmt.Errorf("query resource timings: %w", err)
	}
	return names, nil
}

func (s *chromeSession) evaluate(ctx context.Context, script string, out any) error {
	evalCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	// Honor the caller's deadline while running against the session context.
	if deadline, ok := ctx.Deadline(); ok {
		evalCtx, cancel = context.WithDeadline(evalCtx, deadline)
		defer cancel()
	}

	return chromedp.Run(evalCtx, chromedp.Evaluate(script, out))
}

// Close shuts the session down, waiting no longer than ctx allows.
func (s *chromeSession) Close(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Cancel(s.ctx)
		s.cancel()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// Abandon the graceful close; cancelling the contexts reaps the
		// browser process.
		s.cancel()
		return ctx.Err()
	}
}
