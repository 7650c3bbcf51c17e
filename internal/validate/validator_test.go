package validate

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidateAcceptsRealVideo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		if r.Method == http.MethodHead {
			return
		}
		w.Header().Set("Content-Range", "bytes 0-511/5242880")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(make([]byte, 512))
	}))
	defer srv.Close()

	v := New("test-agent", discardLogger())
	if !v.Validate(context.Background(), srv.URL+"/clip.mp4") {
		t.Error("real video bytes should validate")
	}
}

func TestValidateRejectsDeclaredHTML(t *testing.T) {
	var sawGet bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			sawGet = true
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}))
	defer srv.Close()

	v := New("test-agent", discardLogger())
	if v.Validate(context.Background(), srv.URL+"/clip.mp4") {
		t.Error("declared text/html must be rejected")
	}
	if sawGet {
		t.Error("byte probe should not run after the metadata probe rejects")
	}
}

func TestValidateRejectsEffectiveHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			// Declared type looks plausible.
			w.Header().Set("Content-Type", "video/mp4")
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>sign in</body></html>"))
	}))
	defer srv.Close()

	v := New("test-agent", discardLogger())
	if v.Validate(context.Background(), srv.URL+"/clip.mp4") {
		t.Error("textual effective type must be rejected")
	}
}

func TestValidateRejectsMarkupBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		if r.Method == http.MethodHead {
			return
		}
		w.Header().Set("Content-Range", "bytes 0-511/1048576")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("\n  <!DOCTYPE html><html>"))
	}))
	defer srv.Close()

	v := New("test-agent", discardLogger())
	if v.Validate(context.Background(), srv.URL+"/clip.mp4") {
		t.Error("markup opening token must be rejected")
	}
}

func TestValidateRejectsImplausiblySmallBinary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		if r.Method == http.MethodHead {
			return
		}
		w.Header().Set("Content-Range", "bytes 0-511/2048")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(make([]byte, 512))
	}))
	defer srv.Close()

	v := New("test-agent", discardLogger())
	if v.Validate(context.Background(), srv.URL+"/clip.mp4") {
		t.Error("2KB octet-stream is not plausible media")
	}
}

func TestValidateAcceptsLargeGenericBinary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		if r.Method == http.MethodHead {
			return
		}
		w.Header().Set("Content-Range", "bytes 0-511/52428800")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(make([]byte, 512))
	}))
	defer srv.Close()

	v := New("test-agent", discardLogger())
	if !v.Validate(context.Background(), srv.URL+"/clip.mp4") {
		t.Error("large generic binary should validate")
	}
}

func TestValidateRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	v := New("test-agent", discardLogger())
	if v.Validate(context.Background(), srv.URL+"/clip.mp4") {
		t.Error("403 must be rejected")
	}
}

// A network error during validation yields false, never true.
func TestValidateFailsClosedOnNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	v := New("test-agent", discardLogger())
	if v.Validate(context.Background(), srv.URL+"/clip.mp4") {
		t.Error("network error must fail closed")
	}
}

func TestTotalSize(t *testing.T) {
	tests := []struct {
		name         string
		contentRange string
		want         int64
	}{
		{"range with total", "bytes 0-511/12345", 12345},
		{"unknown total", "bytes 0-511/*", -1},
		{"missing header", "", -1},
		{"garbage", "bytes x/y", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode:    http.StatusPartialContent,
				Header:        http.Header{},
				ContentLength: -1,
			}
			if tt.contentRange != "" {
				resp.Header.Set("Content-Range", tt.contentRange)
			}
			if got := totalSize(resp); got != tt.want {
				t.Errorf("totalSize = %d, want %d", got, tt.want)
			}
		})
	}
}
