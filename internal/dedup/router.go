package dedup

import (
	"github.com/leakscope/backend/internal/metrics"
	"github.com/leakscope/backend/internal/scoring"
)

type Bucket string

const (
	BucketConfirmed   Bucket = "confirmed"
	BucketNeedsReview Bucket = "needs_review"
	BucketRejected    Bucket = "rejected"
)

// RoutedEntry is a scored entry with its terminal bucket. Rejected entries
// are dropped before persistence.
type RoutedEntry struct {
	scoring.ScoredEntry
	Bucket Bucket
}

type Router struct {
	confirmThreshold float64
	rejectThreshold  float64
}

func NewRouter(confirmThreshold, rejectThreshold float64) *Router {
	return &Router{
		confirmThreshold: confirmThreshold,
		rejectThreshold:  rejectThreshold,
	}
}

// Route assigns the bucket for one scored entry. The seen flag must reflect
// the durable seen-set state at the start of processing.
func (r *Router) Route(scored scoring.ScoredEntry, seen bool) RoutedEntry {
	bucket := r.bucketFor(scored, seen)
	metrics.EntriesRouted.WithLabelValues(string(bucket)).Inc()
	return RoutedEntry{ScoredEntry: scored, Bucket: bucket}
}

func (r *Router) bucketFor(scored scoring.ScoredEntry, seen bool) Bucket {
	if seen {
		return BucketRejected
	}

	// Explicit leak vocabulary is always probative: such entries reach a
	// durable sink even when the rule verdict was suppressed and the
	// confidence is weak.
	weak := !scored.IsLeak && scored.Confidence < r.rejectThreshold
	if weak && !scored.Signals.LeakLanguage {
		return BucketRejected
	}

	if scored.Confidence >= r.confirmThreshold {
		return BucketConfirmed
	}
	return BucketNeedsReview
}
