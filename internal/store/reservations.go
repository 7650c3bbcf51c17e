package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vidrelay/vidrelay/internal/domain"
)

// Key prefixes and markers of the persisted state layout:
//
//	post:<canonicalPostKey>  -> "pending" | "<n>" | "0"
//	media:<canonicalMediaKey> -> "pending" | "1"
//
// "pending" is a held lease, "<n>" a remaining retry budget, "0" a terminal
// post (delivered or abandoned), "1" a delivered media asset. Every entry
// reverts to absent when its TTL lapses, permitting legitimate reposts far
// in the future.
const (
	postPrefix  = "post:"
	mediaPrefix = "media:"

	markPending   = "pending"
	markPostDone  = "0"
	markMediaDone = "1"
)

// Reservations layers lease semantics over the KV port. Exclusion is
// cooperative: a key already pending is skipped by a concurrent run, never
// waited on.
type Reservations struct {
	kv     KV
	ttl    time.Duration
	budget int
}

// NewReservations creates the lease layer. budget is the fresh retry budget
// granted to a never-seen post.
func NewReservations(kv KV, ttl time.Duration, budget int) *Reservations {
	return &Reservations{kv: kv, ttl: ttl, budget: budget}
}

// ClaimPost attempts to take the lease for a post key. It returns the retry
// budget remaining for this attempt and whether the claim succeeded. A key
// that is pending elsewhere, terminal, or unreadable is not claimed.
func (r *Reservations) ClaimPost(ctx context.Context, key domain.PostKey) (int, bool, error) {
	k := postPrefix + key.String()

	v, ok, err := r.kv.Get(ctx, k)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	remaining := r.budget
	if ok {
		switch v {
		case markPending, markPostDone:
			return 0, false, nil
		default:
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				// Unrecognized state; leave it alone rather than clobber it.
				return 0, false, nil
			}
			remaining = n
		}
	}

	if err := r.kv.Put(ctx, k, markPending, r.ttl); err != nil {
		return 0, false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return remaining, true, nil
}

// CommitPost marks a post terminal: delivered, or abandoned with a null
// outcome. Either way it is never revisited until TTL expiry.
func (r *Reservations) CommitPost(ctx context.Context, key domain.PostKey) error {
	return r.kv.Put(ctx, postPrefix+key.String(), markPostDone, r.ttl)
}

// DeferPost records the remaining budget for a future attempt.
func (r *Reservations) DeferPost(ctx context.Context, key domain.PostKey, remaining int) error {
	return r.kv.Put(ctx, postPrefix+key.String(), strconv.Itoa(remaining), r.ttl)
}

// ReleasePost drops the lease entirely so a future run may retry without
// waiting for TTL expiry.
func (r *Reservations) ReleasePost(ctx context.Context, key domain.PostKey) error {
	return r.kv.Delete(ctx, postPrefix+key.String())
}

// ClaimMedia attempts to take the lease for a media key. Only an absent key
// can be claimed: pending means another run is on it, committed means the
// asset was already delivered.
func (r *Reservations) ClaimMedia(ctx context.Context, canonicalKey string) (bool, error) {
	k := mediaPrefix + canonicalKey

	_, ok, err := r.kv.Get(ctx, k)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if ok {
		return false, nil
	}

	if err := r.kv.Put(ctx, k, markPending, r.ttl); err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return true, nil
}

// CommitMedia marks a media asset delivered.
func (r *Reservations) CommitMedia(ctx context.Context, canonicalKey string) error {
	return r.kv.Put(ctx, mediaPrefix+canonicalKey, markMediaDone, r.ttl)
}

// ReleaseMedia drops a media lease.
func (r *Reservations) ReleaseMedia(ctx context.Context, canonicalKey string) error {
	return r.kv.Delete(ctx, mediaPrefix+canonicalKey)
}

// Wipe deletes every reservation key and returns how many were removed.
// Backs the administrative state-wipe endpoint.
func (r *Reservations) Wipe(ctx context.Context) (int, error) {
	count := 0
	for _, prefix := range []string{postPrefix, mediaPrefix} {
		keys, err := r.kv.ListPrefix(ctx, prefix)
		if err != nil {
			return count, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		for _, k := range keys {
			if err := r.kv.Delete(ctx, k); err != nil {
				return count, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
			}
			count++
		}
	}
	return count, nil
}
