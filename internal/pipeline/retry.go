package pipeline

import "github.com/vidrelay/vidrelay/internal/domain"

// deliverableNow decides whether a labeled reference should be dispatched on
// this attempt or deferred for a later one. remaining is the retry budget for
// this attempt; at its last unit every reference is dispatched in whatever
// degraded form the dispatcher picks, so nothing leaves the system silently.
func deliverableNow(ref *domain.MediaReference, remaining int) bool {
	if ref == nil {
		return false
	}
	if remaining <= 1 {
		return true
	}

	switch ref.Kind {
	case domain.KindImage:
		return true
	case domain.KindHLS:
		// A playlist never firms up into a muxed file; deliver the link now.
		return true
	case domain.KindMP4:
		// Untrusted hosts frequently firm up or die; wait them out.
		return ref.Trust == domain.TrustTrusted
	default:
		// dash-video-only waits for a muxed alternative, unresolved waits
		// for a later resolution attempt.
		return false
	}
}

// chooseVerb picks the sink operation for a reference that deliverableNow
// accepted. lastChance marks the forced degraded delivery on the final unit
// of budget. Untrusted video never becomes an attachment.
func chooseVerb(ref *domain.MediaReference, lastChance bool) domain.DeliveryVerb {
	switch ref.Kind {
	case domain.KindImage:
		return domain.VerbPhoto
	case domain.KindMP4:
		if ref.Trust == domain.TrustTrusted {
			return domain.VerbVideo
		}
		return domain.VerbText
	case domain.KindDASHVideoOnly:
		if ref.Trust == domain.TrustTrusted && lastChance {
			return domain.VerbVideo
		}
		return domain.VerbText
	default:
		return domain.VerbText
	}
}
