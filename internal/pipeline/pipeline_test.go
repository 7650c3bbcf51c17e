package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/vidrelay/vidrelay/internal/domain"
	"github.com/vidrelay/vidrelay/internal/store"
	"github.com/vidrelay/vidrelay/pkg/reddit"
	"github.com/vidrelay/vidrelay/pkg/telegram"
)

type fakeFeed struct {
	posts []reddit.Post
	err   error
}

func (f *fakeFeed) Fetch(ctx context.Context) ([]reddit.Post, error) {
	return f.posts, f.err
}

type sinkCall struct {
	verb    domain.DeliveryVerb
	caption string
	target  string
	meta    telegram.VideoMeta
}

type fakeSink struct {
	calls []sinkCall
	fail  bool
}

func (s *fakeSink) send(c sinkCall) error {
	if s.fail {
		return &telegram.SendError{Method: string(c.verb), Status: 400, Body: "bad request"}
	}
	s.calls = append(s.calls, c)
	return nil
}

func (s *fakeSink) SendPhoto(ctx context.Context, caption, photoURL string) error {
	return s.send(sinkCall{verb: domain.VerbPhoto, caption: caption, target: photoURL})
}

func (s *fakeSink) SendVideo(ctx context.Context, caption, videoURL string, meta telegram.VideoMeta) error {
	return s.send(sinkCall{verb: domain.VerbVideo, caption: caption, target: videoURL, meta: meta})
}

func (s *fakeSink) SendMessage(ctx context.Context, text string) error {
	return s.send(sinkCall{verb: domain.VerbText, caption: text})
}

type fakeResolver struct {
	result string
	err    error
	calls  []string
}

func (r *fakeResolver) Resolve(ctx context.Context, pageURL string) (string, error) {
	r.calls = append(r.calls, pageURL)
	return r.result, r.err
}

type fakeValidator struct {
	ok    bool
	calls []string
}

func (v *fakeValidator) Validate(ctx context.Context, rawURL string) bool {
	v.calls = append(v.calls, rawURL)
	return v.ok
}

type harness struct {
	kv        *store.InMemoryKV
	sink      *fakeSink
	feed      *fakeFeed
	resolver  *fakeResolver
	validator *fakeValidator
	pipe      *Pipeline
}

func newHarness(posts []reddit.Post, budget int) *harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{
		kv:        store.NewInMemoryKV(),
		sink:      &fakeSink{},
		feed:      &fakeFeed{posts: posts},
		resolver:  &fakeResolver{err: domain.ErrResolutionFailed},
		validator: &fakeValidator{ok: true},
	}
	res := store.NewReservations(h.kv, time.Hour, budget)
	disp := NewDispatcher(h.sink, nil, "https://relay.example", logger)
	h.pipe = New(h.feed, res, h.resolver, h.validator, disp, "", logger)
	return h
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	if err := h.pipe.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func (h *harness) storeValue(t *testing.T, key string) string {
	t.Helper()
	v, ok, err := h.kv.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	if !ok {
		return "<absent>"
	}
	return v
}

// nativeVideoPost is a record carrying the feed's native video descriptor.
func nativeVideoPost(id, fallbackURL string) reddit.Post {
	return reddit.Post{
		Name:       "t3_" + id,
		ID:         id,
		Title:      "post " + id,
		Permalink:  "/r/clips/comments/" + id + "/x/",
		URL:        "https://v.redd.it/" + id,
		CreatedUTC: 1700000000,
		SecureMedia: &reddit.Media{RedditVideo: &reddit.RedditVideo{
			FallbackURL: fallbackURL,
			Width:       1280,
			Height:      720,
			Duration:    30,
		}},
	}
}

// linkPost is a bare record whose only candidate is its own URL.
func linkPost(id, rawURL string) reddit.Post {
	return reddit.Post{
		Name:       "t3_" + id,
		ID:         id,
		Title:      "post " + id,
		Permalink:  "/r/clips/comments/" + id + "/x/",
		URL:        rawURL,
		CreatedUTC: 1700000000,
	}
}

func TestTrustedVideoDeliveredOncePerBatch(t *testing.T) {
	h := newHarness([]reddit.Post{nativeVideoPost("a1", "https://v.redd.it/a1/video.mp4")}, 5)

	h.run(t)
	h.run(t)

	if len(h.sink.calls) != 1 {
		t.Fatalf("sink calls = %d, want 1", len(h.sink.calls))
	}
	call := h.sink.calls[0]
	if call.verb != domain.VerbVideo || call.target != "https://v.redd.it/a1/video.mp4" {
		t.Errorf("call = %+v", call)
	}
	if call.meta.Width != 1280 || call.meta.Height != 720 || call.meta.Duration != 30 {
		t.Errorf("meta = %+v", call.meta)
	}

	if v := h.storeValue(t, "post:t3_a1"); v != "0" {
		t.Errorf("post state = %q, want terminal", v)
	}
	if v := h.storeValue(t, "media:https://v.redd.it/a1/video.mp4"); v != "1" {
		t.Errorf("media state = %q, want delivered", v)
	}
}

func TestDuplicateMediaInBatchClosesBothPosts(t *testing.T) {
	const clip = "https://v.redd.it/shared/video.mp4"
	h := newHarness([]reddit.Post{
		nativeVideoPost("a1", clip),
		nativeVideoPost("a2", clip),
	}, 5)

	h.run(t)

	if len(h.sink.calls) != 1 {
		t.Fatalf("sink calls = %d, want 1", len(h.sink.calls))
	}
	for _, key := range []string{"post:t3_a1", "post:t3_a2"} {
		if v := h.storeValue(t, key); v != "0" {
			t.Errorf("%s = %q, want terminal", key, v)
		}
	}
}

func TestDashVideoRidesBudgetToDegradedVideo(t *testing.T) {
	h := newHarness([]reddit.Post{nativeVideoPost("d1", "https://v.redd.it/d1/DASH_480.mp4")}, 5)

	for pass, want := range []string{"4", "3", "2", "1"} {
		h.run(t)
		if len(h.sink.calls) != 0 {
			t.Fatalf("pass %d: sink called before budget exhausted", pass+1)
		}
		if v := h.storeValue(t, "post:t3_d1"); v != want {
			t.Fatalf("pass %d: post state = %q, want %q", pass+1, v, want)
		}
	}

	h.run(t)
	if len(h.sink.calls) != 1 {
		t.Fatalf("final pass: sink calls = %d, want 1", len(h.sink.calls))
	}
	call := h.sink.calls[0]
	if call.verb != domain.VerbVideo {
		t.Errorf("verb = %q, want video", call.verb)
	}
	if !strings.Contains(call.caption, "no audio") {
		t.Errorf("caption %q should warn about missing audio", call.caption)
	}
	if v := h.storeValue(t, "post:t3_d1"); v != "0" {
		t.Errorf("post state = %q, want terminal", v)
	}
}

func TestRetryBudgetStrictlyDecreases(t *testing.T) {
	h := newHarness([]reddit.Post{linkPost("n1", "https://example.com/article")}, 4)

	prev := 4
	for pass := 0; pass < 3; pass++ {
		h.run(t)
		v := h.storeValue(t, "post:t3_n1")
		n, err := strconv.Atoi(v)
		if err != nil {
			t.Fatalf("pass %d: post state = %q, want numeric", pass+1, v)
		}
		if n >= prev {
			t.Fatalf("pass %d: budget %d did not decrease from %d", pass+1, n, prev)
		}
		prev = n
	}

	h.run(t)
	if v := h.storeValue(t, "post:t3_n1"); v != "0" {
		t.Errorf("post state = %q, want terminal after exhaustion", v)
	}
	if len(h.sink.calls) != 0 {
		t.Errorf("a post with no media reference must never reach the sink")
	}
}

func TestHLSNeverSentAsVideo(t *testing.T) {
	h := newHarness([]reddit.Post{nativeVideoPost("h1", "https://v.redd.it/h1/playlist.m3u8")}, 5)

	h.run(t)

	if len(h.sink.calls) != 1 {
		t.Fatalf("sink calls = %d, want 1", len(h.sink.calls))
	}
	call := h.sink.calls[0]
	if call.verb != domain.VerbText {
		t.Errorf("verb = %q, want text", call.verb)
	}
	if !strings.Contains(call.caption, "https://v.redd.it/h1/playlist.m3u8") {
		t.Errorf("text %q should carry the direct link", call.caption)
	}
	if !strings.Contains(call.caption, "/p?u=") {
		t.Errorf("text %q should carry a preview page link", call.caption)
	}
}

func TestUntrustedVideoWaitsThenDegradesToText(t *testing.T) {
	h := newHarness([]reddit.Post{linkPost("u1", "https://cdn.example/clip.mp4")}, 2)

	h.run(t)
	if len(h.sink.calls) != 0 {
		t.Fatal("untrusted video must not deliver while budget remains")
	}
	if v := h.storeValue(t, "post:t3_u1"); v != "1" {
		t.Errorf("post state = %q, want 1", v)
	}
	if len(h.validator.calls) == 0 {
		t.Error("untrusted direct video should have been validated")
	}

	h.run(t)
	if len(h.sink.calls) != 1 {
		t.Fatalf("sink calls = %d, want 1", len(h.sink.calls))
	}
	if h.sink.calls[0].verb != domain.VerbText {
		t.Errorf("untrusted video delivered as %q, want text", h.sink.calls[0].verb)
	}
}

func TestIndirectURLResolvedByBrowser(t *testing.T) {
	page := reddit.Post{
		Name:          "t3_r1",
		ID:            "r1",
		Title:         "post r1",
		URL:           "https://clips.example/watch/123",
		URLOverridden: "https://clips.example/watch/123",
		CreatedUTC:    1700000000,
	}
	h := newHarness([]reddit.Post{page}, 5)
	h.resolver.result = "https://i.imgur.com/abc.mp4"
	h.resolver.err = nil

	h.run(t)

	if len(h.resolver.calls) != 1 || h.resolver.calls[0] != "https://clips.example/watch/123" {
		t.Fatalf("resolver calls = %v", h.resolver.calls)
	}
	if len(h.sink.calls) != 1 {
		t.Fatalf("sink calls = %d, want 1", len(h.sink.calls))
	}
	call := h.sink.calls[0]
	if call.verb != domain.VerbVideo || call.target != "https://i.imgur.com/abc.mp4" {
		t.Errorf("call = %+v", call)
	}
}

func TestValidationFailureTriggersResolver(t *testing.T) {
	h := newHarness([]reddit.Post{linkPost("v1", "https://cdn.example/clip.mp4")}, 5)
	h.validator.ok = false
	h.resolver.result = "https://i.imgur.com/real.mp4"
	h.resolver.err = nil

	h.run(t)

	if len(h.resolver.calls) != 1 || h.resolver.calls[0] != "https://cdn.example/clip.mp4" {
		t.Fatalf("resolver calls = %v", h.resolver.calls)
	}
	if len(h.sink.calls) != 1 || h.sink.calls[0].target != "https://i.imgur.com/real.mp4" {
		t.Fatalf("sink calls = %+v", h.sink.calls)
	}
}

func TestDeliveryFailureReleasesBothReservations(t *testing.T) {
	h := newHarness([]reddit.Post{nativeVideoPost("f1", "https://v.redd.it/f1/video.mp4")}, 5)
	h.sink.fail = true

	h.run(t)
	if v := h.storeValue(t, "post:t3_f1"); v != "<absent>" {
		t.Errorf("post state = %q, want released", v)
	}
	if v := h.storeValue(t, "media:https://v.redd.it/f1/video.mp4"); v != "<absent>" {
		t.Errorf("media state = %q, want released", v)
	}

	h.sink.fail = false
	h.run(t)
	if len(h.sink.calls) != 1 {
		t.Fatalf("sink calls = %d, want 1 after retry", len(h.sink.calls))
	}
	if v := h.storeValue(t, "post:t3_f1"); v != "0" {
		t.Errorf("post state = %q, want terminal", v)
	}
}

func TestImageDeliveredAsPhoto(t *testing.T) {
	h := newHarness([]reddit.Post{linkPost("i1", "https://i.redd.it/pic.jpg")}, 5)

	h.run(t)

	if len(h.sink.calls) != 1 {
		t.Fatalf("sink calls = %d, want 1", len(h.sink.calls))
	}
	call := h.sink.calls[0]
	if call.verb != domain.VerbPhoto || call.target != "https://i.redd.it/pic.jpg" {
		t.Errorf("call = %+v", call)
	}
	if len(h.validator.calls) != 0 {
		t.Errorf("images are not byte-validated, got %v", h.validator.calls)
	}
}

func TestFlairFilter(t *testing.T) {
	h := newHarness([]reddit.Post{
		nativeVideoPost("m1", "https://v.redd.it/m1/video.mp4"),
		nativeVideoPost("m2", "https://v.redd.it/m2/video.mp4"),
	}, 5)
	h.feed.posts[0].LinkFlairText = "Clip"
	h.pipe.flair = "Clip"

	h.run(t)

	if len(h.sink.calls) != 1 || h.sink.calls[0].target != "https://v.redd.it/m1/video.mp4" {
		t.Fatalf("sink calls = %+v", h.sink.calls)
	}
	if v := h.storeValue(t, "post:t3_m2"); v != "<absent>" {
		t.Errorf("filtered post should be untouched, state = %q", v)
	}
}

func TestFeedErrorAbortsPass(t *testing.T) {
	h := newHarness(nil, 5)
	h.feed.err = domain.ErrFeedUnavailable

	err := h.pipe.Run(context.Background())
	if !errors.Is(err, domain.ErrFeedUnavailable) {
		t.Errorf("Run error = %v, want feed unavailable", err)
	}
	if len(h.sink.calls) != 0 {
		t.Error("no deliveries expected on a failed fetch")
	}
}

func TestResolutionFailureSpendsBudget(t *testing.T) {
	page := reddit.Post{
		Name:          "t3_x1",
		ID:            "x1",
		Title:         "post x1",
		URL:           "https://clips.example/watch/9",
		URLOverridden: "https://clips.example/watch/9",
		CreatedUTC:    1700000000,
	}
	h := newHarness([]reddit.Post{page}, 2)

	h.run(t)
	if len(h.sink.calls) != 0 {
		t.Fatal("unresolved reference must not deliver while budget remains")
	}
	if v := h.storeValue(t, "post:t3_x1"); v != "1" {
		t.Errorf("post state = %q, want 1", v)
	}

	h.run(t)
	if len(h.sink.calls) != 1 || h.sink.calls[0].verb != domain.VerbText {
		t.Fatalf("sink calls = %+v, want one text fallback", h.sink.calls)
	}
	if !strings.Contains(h.sink.calls[0].caption, "https://clips.example/watch/9") {
		t.Errorf("fallback text %q should carry the page link", h.sink.calls[0].caption)
	}
}

type fakeCaptioner struct {
	tags string
	err  error
}

func (c *fakeCaptioner) GenerateTags(ctx context.Context, title string) (string, error) {
	return c.tags, c.err
}

func TestCaptionCarriesSanitizedTags(t *testing.T) {
	h := newHarness([]reddit.Post{linkPost("c1", "https://i.redd.it/pic.jpg")}, 5)
	h.pipe.disp.captioner = &fakeCaptioner{tags: "Rally, CRASH!"}

	h.run(t)

	if len(h.sink.calls) != 1 {
		t.Fatalf("sink calls = %d, want 1", len(h.sink.calls))
	}
	if got := h.sink.calls[0].caption; got != "post c1\n\n#rally #crash" {
		t.Errorf("caption = %q", got)
	}
}

func TestCaptionerFailureDegradesToBareTitle(t *testing.T) {
	h := newHarness([]reddit.Post{linkPost("c2", "https://i.redd.it/pic.jpg")}, 5)
	h.pipe.disp.captioner = &fakeCaptioner{err: errors.New("rate limited")}

	h.run(t)

	if len(h.sink.calls) != 1 {
		t.Fatalf("sink calls = %d, want 1", len(h.sink.calls))
	}
	if got := h.sink.calls[0].caption; got != "post c2" {
		t.Errorf("caption = %q", got)
	}
}
