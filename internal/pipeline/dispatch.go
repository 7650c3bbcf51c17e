package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/vidrelay/vidrelay/internal/domain"
	"github.com/vidrelay/vidrelay/pkg/telegram"
)

// Dispatcher turns a deliverable media reference into exactly one sink call.
type Dispatcher struct {
	sink        telegram.Client
	captioner   Captioner
	previewBase string
	logger      *slog.Logger
}

// Captioner generates optional tag text for a post title. Failures degrade
// to an untagged caption.
type Captioner interface {
	GenerateTags(ctx context.Context, title string) (string, error)
}

// NewDispatcher creates a dispatcher. captioner may be nil; previewBase is
// the public base URL for the inline preview page and may be empty.
func NewDispatcher(sink telegram.Client, captioner Captioner, previewBase string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sink:        sink,
		captioner:   captioner,
		previewBase: strings.TrimRight(previewBase, "/"),
		logger:      logger,
	}
}

// Dispatch sends the reference with the verb chosen for its format and trust.
// lastChance marks a forced degraded delivery on the final unit of retry
// budget. The returned outcome records the verb even on failure.
func (d *Dispatcher) Dispatch(ctx context.Context, post domain.Post, ref *domain.MediaReference, lastChance bool) (domain.DeliveryOutcome, error) {
	verb := chooseVerb(ref, lastChance)

	var err error
	switch verb {
	case domain.VerbPhoto:
		err = d.sink.SendPhoto(ctx, d.caption(ctx, post.Title), ref.RawURL)

	case domain.VerbVideo:
		caption := d.caption(ctx, post.Title)
		if ref.Kind == domain.KindDASHVideoOnly {
			caption += "\n\n(video has no audio)"
		}
		err = d.sink.SendVideo(ctx, caption, ref.RawURL, telegram.VideoMeta{
			Width:        ref.Width,
			Height:       ref.Height,
			Duration:     ref.Duration,
			ThumbnailURL: ref.ThumbnailURL,
		})

	case domain.VerbText:
		err = d.sink.SendMessage(ctx, d.textBody(ctx, post, ref))
	}

	outcome := domain.DeliveryOutcome{Verb: verb, Success: err == nil}
	if err != nil {
		return outcome, fmt.Errorf("dispatch %s: %w", verb, err)
	}

	d.logger.Info("delivered",
		"post_key", post.Key,
		"verb", verb,
		"kind", ref.Kind,
		"last_chance", lastChance)
	return outcome, nil
}

// textBody builds the degraded text form: title, direct link, and for
// playable formats a link to the inline preview page.
func (d *Dispatcher) textBody(ctx context.Context, post domain.Post, ref *domain.MediaReference) string {
	var b strings.Builder
	b.WriteString(d.caption(ctx, post.Title))
	b.WriteString("\n\n")
	b.WriteString(ref.RawURL)

	if ref.Kind.Playable() && d.previewBase != "" {
		b.WriteString("\n\nPreview: ")
		b.WriteString(d.previewBase)
		b.WriteString("/p?u=")
		b.WriteString(url.QueryEscape(ref.RawURL))
	}
	return b.String()
}

// caption is the title plus sanitized generated tags when available.
func (d *Dispatcher) caption(ctx context.Context, title string) string {
	if d.captioner == nil {
		return title
	}

	raw, err := d.captioner.GenerateTags(ctx, title)
	if err != nil {
		d.logger.Warn("tag generation failed", "error", err)
		return title
	}

	tags := SanitizeTags(raw)
	if tags == "" {
		return title
	}
	return title + "\n\n" + tags
}
