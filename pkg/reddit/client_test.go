package reddit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vidrelay/vidrelay/internal/config"
	"github.com/vidrelay/vidrelay/internal/domain"
)

func testClient(baseURL string) *Client {
	return NewClient(config.RedditConfig{
		BaseURL:   baseURL,
		Subreddit: "videos",
		Limit:     25,
		UserAgent: "vidrelay-test/1.0",
		Timeout:   5 * time.Second,
	})
}

func TestFetchOrdersOldestFirst(t *testing.T) {
	body := `{"data":{"children":[
		{"kind":"t3","data":{"name":"t3_new","title":"newer","url":"https://example.com/b","created_utc":200}},
		{"kind":"t3","data":{"name":"t3_old","title":"older","url":"https://example.com/a","created_utc":100}}
	]}}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/videos/new.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != "vidrelay-test/1.0" {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	posts, err := testClient(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	if posts[0].Name != "t3_old" || posts[1].Name != "t3_new" {
		t.Errorf("posts not oldest-first: %q, %q", posts[0].Name, posts[1].Name)
	}
}

func TestFetchSkipsMalformedAndRemoved(t *testing.T) {
	body := `{"data":{"children":[
		{"kind":"t1","data":{"name":"t1_comment","title":"a comment","url":"https://example.com"}},
		{"kind":"t3","data":{"name":"t3_empty"}},
		{"kind":"t3","data":{"name":"t3_gone","title":"gone","url":"https://example.com/x","removed_by_category":"moderator"}},
		{"kind":"t3","data":{"name":"t3_ok","title":"fine","url":"https://example.com/ok","created_utc":1}}
	]}}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	posts, err := testClient(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if len(posts) != 1 || posts[0].Name != "t3_ok" {
		t.Errorf("got %+v, want only t3_ok", posts)
	}
}

func TestFetchRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background())
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background())
	if !errors.Is(err, domain.ErrFeedUnavailable) {
		t.Errorf("expected ErrFeedUnavailable, got %v", err)
	}
}

func TestFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := testClient(srv.URL).Fetch(context.Background())
	if !errors.Is(err, domain.ErrFeedUnavailable) {
		t.Errorf("expected ErrFeedUnavailable, got %v", err)
	}
}

func TestFetchParsesMediaDescriptors(t *testing.T) {
	body := `{"data":{"children":[
		{"kind":"t3","data":{
			"name":"t3_vid","title":"native video","url":"https://v.redd.it/abc","created_utc":1,
			"link_flair_text":"Clips",
			"secure_media":{"reddit_video":{"fallback_url":"https://v.redd.it/abc/DASH_720.mp4?source=fallback","width":1280,"height":720,"duration":33}}
		}}
	]}}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	posts, err := testClient(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("got %d posts, want 1", len(posts))
	}

	p := posts[0]
	if p.LinkFlairText != "Clips" {
		t.Errorf("flair = %q, want Clips", p.LinkFlairText)
	}
	if p.SecureMedia == nil || p.SecureMedia.RedditVideo == nil {
		t.Fatal("secure_media.reddit_video not parsed")
	}
	rv := p.SecureMedia.RedditVideo
	if rv.FallbackURL == "" || rv.Width != 1280 || rv.Height != 720 || rv.Duration != 33 {
		t.Errorf("unexpected video descriptor: %+v", rv)
	}
}
