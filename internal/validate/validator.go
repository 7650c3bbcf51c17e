// Package validate confirms that a nominally-video URL serves real media
// bytes rather than an HTML page, a common failure mode for expiring or
// gated third-party links.
package validate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// probeBytes is the size of the ranged byte probe.
const probeBytes = 512

// minPlausibleSize is the smallest declared total size accepted for a
// generic binary content type; real media is never this small.
const minPlausibleSize = 16 * 1024

// Validator performs staged network probing of untrusted media URLs.
type Validator struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// New creates a validator. Probes are short requests; the client carries an
// overall timeout so a slow endpoint cannot stall the batch.
func New(userAgent string, logger *slog.Logger) *Validator {
	return &Validator{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Validate reports whether the URL serves plausible media bytes. Any
// network failure yields false: validation fails closed, never assuming
// validity on error. The reference itself is never mutated here.
func (v *Validator) Validate(ctx context.Context, url string) bool {
	declared, ok := v.probeHead(ctx, url)
	if !ok {
		return false
	}
	if textual(declared) {
		v.logger.Debug("validation rejected: textual declared type", "url", url, "content_type", declared)
		return false
	}

	return v.probeRange(ctx, url)
}

// probeHead issues the metadata-only probe and returns the declared content
// type.
func (v *Validator) probeHead(ctx context.Context, url string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, "HEAD", url, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Debug("validation head probe failed", "url", url, "error", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		v.logger.Debug("validation head probe rejected", "url", url, "status", resp.StatusCode)
		return "", false
	}

	return resp.Header.Get("Content-Type"), true
}

// probeRange fetches the opening bytes and inspects what actually came back.
func (v *Validator) probeRange(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", v.userAgent)
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", probeBytes-1))

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Debug("validation range probe failed", "url", url, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return false
	}

	// The effective type for the range may differ from the declared one;
	// gated links often answer the range request with an HTML interstitial.
	effective := resp.Header.Get("Content-Type")
	if textual(effective) {
		v.logger.Debug("validation rejected: textual effective type", "url", url, "content_type", effective)
		return false
	}

	head, err := io.ReadAll(io.LimitReader(resp.Body, probeBytes))
	if err != nil {
		return false
	}
	if looksLikeMarkup(head) {
		v.logger.Debug("validation rejected: markup body", "url", url)
		return false
	}

	if genericBinary(effective) && totalSize(resp) >= 0 && totalSize(resp) < minPlausibleSize {
		v.logger.Debug("validation rejected: implausibly small", "url", url, "size", totalSize(resp))
		return false
	}

	return true
}

func textual(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "text/") ||
		strings.HasPrefix(ct, "application/xhtml") ||
		strings.HasPrefix(ct, "application/xml")
}

func genericBinary(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return ct == "" || strings.HasPrefix(ct, "application/octet-stream") || strings.HasPrefix(ct, "binary/")
}

// looksLikeMarkup reports whether the body opens with a markup token.
func looksLikeMarkup(head []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(head, " \t\r\n"), []byte("<"))
}

// totalSize returns the declared full size of the resource, or -1 when
// unknown. Range responses carry it in Content-Range ("bytes 0-511/12345").
func totalSize(resp *http.Response) int64 {
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if i := strings.LastIndex(cr, "/"); i >= 0 && cr[i+1:] != "*" {
			if n, err := strconv.ParseInt(cr[i+1:], 10, 64); err == nil {
				return n
			}
		}
	}
	if resp.StatusCode == http.StatusOK && resp.ContentLength >= 0 {
		return resp.ContentLength
	}
	return -1
}
