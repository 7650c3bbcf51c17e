// Package pipeline orchestrates one feed pass: fetch, reserve, extract,
// resolve, validate, and dispatch each candidate post at most once.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vidrelay/vidrelay/internal/canonical"
	"github.com/vidrelay/vidrelay/internal/classify"
	"github.com/vidrelay/vidrelay/internal/domain"
	"github.com/vidrelay/vidrelay/internal/extract"
	"github.com/vidrelay/vidrelay/internal/store"
	"github.com/vidrelay/vidrelay/pkg/reddit"
)

// Feed supplies candidate posts, oldest first.
type Feed interface {
	Fetch(ctx context.Context) ([]reddit.Post, error)
}

// Resolver recovers a direct media URL from a page URL by driving a browser.
type Resolver interface {
	Resolve(ctx context.Context, pageURL string) (string, error)
}

// Validator confirms that a nominally-direct video URL serves media bytes.
type Validator interface {
	Validate(ctx context.Context, rawURL string) bool
}

// Pipeline processes one feed batch per Run call. A post is handled inside
// its own error boundary: a failure affects only that post, never the pass.
type Pipeline struct {
	feed      Feed
	res       *store.Reservations
	resolver  Resolver
	validator Validator
	disp      *Dispatcher
	flair     string
	logger    *slog.Logger
}

// New creates a pipeline. resolver may be nil when browser resolution is
// disabled; indirect references then ride the retry budget to a text
// delivery. flair filters the feed when non-empty.
func New(feed Feed, res *store.Reservations, resolver Resolver, validator Validator, disp *Dispatcher, flair string, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		feed:      feed,
		res:       res,
		resolver:  resolver,
		validator: validator,
		disp:      disp,
		flair:     flair,
		logger:    logger,
	}
}

// Run executes one pass over the feed. A feed fetch failure aborts the pass;
// everything downstream is per-post.
func (p *Pipeline) Run(ctx context.Context) error {
	logger := p.logger.With("run_id", uuid.NewString()[:8])

	posts, err := p.feed.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch feed: %w", err)
	}
	logger.Info("feed fetched", "posts", len(posts))

	for i := range posts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.flair != "" && posts[i].LinkFlairText != p.flair {
			continue
		}
		p.processPost(ctx, logger, posts[i])
	}
	return nil
}

// processPost runs the full lifecycle for one post: claim, extract, resolve,
// validate, then deliver, defer, or abandon.
func (p *Pipeline) processPost(ctx context.Context, logger *slog.Logger, raw reddit.Post) {
	post := extract.Describe(raw)
	log := logger.With("post_key", post.Key)

	remaining, claimed, err := p.res.ClaimPost(ctx, post.Key)
	if err != nil {
		log.Warn("post claim failed, skipping", "error", domain.NewPostError(post.Key, "claim", err))
		return
	}
	if !claimed {
		log.Debug("post already reserved or terminal")
		return
	}

	ref, ok := extract.Extract(raw)
	if !ok {
		p.finishWithoutReference(ctx, log, post, remaining)
		return
	}
	label(ref)
	log.Debug("reference extracted", "url", ref.RawURL, "kind", ref.Kind, "trust", ref.Trust)

	p.refine(ctx, log, ref)

	if !deliverableNow(ref, remaining) {
		p.deferPost(ctx, log, post, remaining, "reference not yet deliverable")
		return
	}
	p.deliver(ctx, log, post, ref, remaining)
}

// refine upgrades the reference in place: indirect URLs go through the
// browser resolver, and untrusted direct video must prove itself byte-level
// before it is believed. Any replacement URL is relabeled from scratch.
func (p *Pipeline) refine(ctx context.Context, log *slog.Logger, ref *domain.MediaReference) {
	if !ref.Direct() {
		p.resolve(ctx, log, ref)
		if !ref.Direct() {
			return
		}
	}

	if ref.Trust == domain.TrustUntrusted && ref.Kind.Playable() {
		if p.validator.Validate(ctx, ref.RawURL) {
			return
		}
		// The nominal video URL serves something else, likely a page
		// wrapping the real asset. One more resolver pass may find it.
		log.Debug("untrusted reference failed validation", "url", ref.RawURL)
		p.resolve(ctx, log, ref)
	}
}

// resolve runs the browser ladder and relabels the reference on success.
// Failure leaves the reference untouched; the retry budget absorbs it.
func (p *Pipeline) resolve(ctx context.Context, log *slog.Logger, ref *domain.MediaReference) {
	if p.resolver == nil {
		return
	}

	resolved, err := p.resolver.Resolve(ctx, ref.RawURL)
	if err != nil {
		log.Debug("browser resolution failed", "url", ref.RawURL, "error", err)
		return
	}
	if resolved == ref.RawURL {
		return
	}

	ref.RawURL = resolved
	label(ref)
	log.Debug("reference resolved", "url", ref.RawURL, "kind", ref.Kind, "trust", ref.Trust)
}

// deliver claims the media key, dispatches, and settles both reservations.
// A delivery failure releases both leases so a later run can retry cleanly.
func (p *Pipeline) deliver(ctx context.Context, log *slog.Logger, post domain.Post, ref *domain.MediaReference, remaining int) {
	claimed, err := p.res.ClaimMedia(ctx, ref.CanonicalKey)
	if err != nil {
		log.Warn("media claim failed, releasing post", "error", err)
		if relErr := p.res.ReleasePost(ctx, post.Key); relErr != nil {
			log.Warn("post release failed", "error", relErr)
		}
		return
	}
	if !claimed {
		// The asset went out under another post. This post is done; it
		// would only duplicate the delivery.
		log.Info("media already delivered, closing post", "media_key", ref.CanonicalKey)
		if err := p.res.CommitPost(ctx, post.Key); err != nil {
			log.Warn("post commit failed", "error", err)
		}
		return
	}

	outcome, err := p.disp.Dispatch(ctx, post, ref, remaining <= 1)
	if err != nil {
		err = domain.NewPostError(post.Key, "deliver", err)
		log.Warn("delivery failed, releasing reservations", "verb", outcome.Verb, "error", err)
		if relErr := p.res.ReleaseMedia(ctx, ref.CanonicalKey); relErr != nil {
			log.Warn("media release failed", "error", relErr)
		}
		if relErr := p.res.ReleasePost(ctx, post.Key); relErr != nil {
			log.Warn("post release failed", "error", relErr)
		}
		return
	}

	if err := p.res.CommitMedia(ctx, ref.CanonicalKey); err != nil {
		log.Warn("media commit failed", "error", err)
	}
	if err := p.res.CommitPost(ctx, post.Key); err != nil {
		log.Warn("post commit failed", "error", err)
	}
}

// finishWithoutReference settles a post that produced no media reference:
// spend a unit of budget, or abandon it for good once the budget is gone.
func (p *Pipeline) finishWithoutReference(ctx context.Context, log *slog.Logger, post domain.Post, remaining int) {
	if remaining <= 1 {
		log.Info("no media reference, abandoning post")
		if err := p.res.CommitPost(ctx, post.Key); err != nil {
			log.Warn("post commit failed", "error", err)
		}
		return
	}
	p.deferPost(ctx, log, post, remaining, "no media reference")
}

// deferPost spends one unit of budget and records the rest for a later run.
func (p *Pipeline) deferPost(ctx context.Context, log *slog.Logger, post domain.Post, remaining int, reason string) {
	log.Info("deferring post", "reason", reason, "remaining", remaining-1)
	if err := p.res.DeferPost(ctx, post.Key, remaining-1); err != nil {
		log.Warn("post defer failed", "error", err)
	}
}

// label recomputes the derived fields from the reference's current URL.
func label(ref *domain.MediaReference) {
	ref.CanonicalKey = canonical.Canonicalize(ref.RawURL)
	ref.Kind, ref.Trust = classify.Classify(ref.RawURL)
	if ref.Kind == domain.KindDASHVideoOnly {
		ref.AudioURL = classify.DASHAudioURL(ref.RawURL)
	} else {
		ref.AudioURL = ""
	}
}
