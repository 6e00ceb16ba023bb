package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leakscope/backend/internal/archive"
	"github.com/leakscope/backend/internal/collector"
	"github.com/leakscope/backend/internal/dedup"
	"github.com/leakscope/backend/internal/metrics"
	"github.com/leakscope/backend/internal/normalize"
	"github.com/leakscope/backend/internal/recommend"
	"github.com/leakscope/backend/internal/scoring"
	"github.com/leakscope/backend/internal/signals"
	"github.com/leakscope/backend/internal/storage/models"
	"github.com/leakscope/backend/pkg/config"
	"github.com/leakscope/backend/pkg/logger"
)

// IncidentStore is the structured-store side of the persistence sink.
type IncidentStore interface {
	InsertIncidents(incidents []models.Incident) error
}

// SourceResult summarizes one source's unit of work. Err carries the
// contained per-source failure; it is reported, never raised.
type SourceResult struct {
	Source      string
	Records     int
	Found       int
	Confirmed   int
	NeedsReview int
	Rejected    int
	Err         error
}

// Pipeline runs the full triage pass for one source: stream, normalize,
// extract, score, derive, route, persist, then mark seen.
type Pipeline struct {
	collector  collector.Collector
	normalizer *normalize.Normalizer
	extractor  *signals.Extractor
	scorer     *scoring.Scorer
	router     *dedup.Router
	seen       dedup.SeenSet
	archive    *archive.Writer
	store      IncidentStore
}

func New(
	col collector.Collector,
	normalizer *normalize.Normalizer,
	extractor *signals.Extractor,
	scorer *scoring.Scorer,
	router *dedup.Router,
	seen dedup.SeenSet,
	archiveWriter *archive.Writer,
	store IncidentStore,
) *Pipeline {
	return &Pipeline{
		collector:  col,
		normalizer: normalizer,
		extractor:  extractor,
		scorer:     scorer,
		router:     router,
		seen:       seen,
		archive:    archiveWriter,
		store:      store,
	}
}

type batchItem struct {
	routed          dedup.RoutedEntry
	recommendations []string
}

// Process consumes one source's record stream and persists its batch.
func (p *Pipeline) Process(ctx context.Context, src config.SourceConfig) SourceResult {
	result := SourceResult{Source: src.ID}

	stream, err := p.collector.Open(ctx, src)
	if err != nil {
		result.Err = fmt.Errorf("source read failure: %w", err)
		return result
	}

	var confirmed, review []batchItem

	// Identities already routed within this batch; the durable set is only
	// updated after persistence.
	pending := make(map[uint64]struct{})

	for {
		record, err := stream.Next(ctx)
		if errors.Is(err, collector.ErrEndOfStream) {
			break
		}
		if err != nil {
			result.Err = fmt.Errorf("source read failure: %w", err)
			return result
		}

		result.Records++
		metrics.RecordsProcessed.WithLabelValues(src.ID).Inc()

		entry, ok := p.normalizer.Normalize(record, src.ID, src.Path)
		if !ok {
			logger.Debug("Record skipped, no usable text", zap.String("source", src.ID))
			continue
		}

		seen, err := p.isSeen(ctx, src.ID, entry.Identity, pending)
		if err != nil {
			// A seen-set failure degrades to "unseen": reprocessing is safe,
			// silent loss is not.
			logger.Warn("Seen-set check failed", zap.Error(err), zap.String("source", src.ID))
			seen = false
		}
		if seen {
			result.Rejected++
			metrics.EntriesRouted.WithLabelValues(string(dedup.BucketRejected)).Inc()
			continue
		}

		profile := p.extractor.Extract(entry.Text)
		scored := p.scorer.Score(ctx, entry, profile, src.Trusted)
		routed := p.router.Route(scored, false)

		if routed.Bucket == dedup.BucketRejected {
			result.Rejected++
			logger.Debug("Entry rejected, weak and non-probative",
				zap.String("source", src.ID),
				zap.Float64("confidence", scored.Confidence),
			)
			continue
		}

		pending[entry.Identity] = struct{}{}
		item := batchItem{
			routed:          routed,
			recommendations: recommend.Derive(profile, scored.IsLeak),
		}

		if routed.Bucket == dedup.BucketConfirmed {
			confirmed = append(confirmed, item)
		} else {
			review = append(review, item)
		}
	}

	if len(confirmed) == 0 && len(review) == 0 {
		logger.Info("Source yielded no routable entries", zap.String("source", src.ID))
		return result
	}

	var persistErrs []error
	now := time.Now().UTC()

	if err := p.persistBucket(ctx, src, dedup.BucketConfirmed, confirmed, now); err != nil {
		persistErrs = append(persistErrs, err)
	} else {
		result.Confirmed = len(confirmed)
		result.Found += len(confirmed)
	}

	if err := p.persistBucket(ctx, src, dedup.BucketNeedsReview, review, now); err != nil {
		persistErrs = append(persistErrs, err)
	} else {
		result.NeedsReview = len(review)
		result.Found += len(review)
	}

	result.Err = errors.Join(persistErrs...)

	logger.Info("Source processed",
		zap.String("source", src.ID),
		zap.Int("records", result.Records),
		zap.Int("confirmed", result.Confirmed),
		zap.Int("needs_review", result.NeedsReview),
		zap.Int("rejected", result.Rejected),
	)

	return result
}

func (p *Pipeline) isSeen(ctx context.Context, parserID string, identity uint64, pending map[uint64]struct{}) (bool, error) {
	if _, ok := pending[identity]; ok {
		return true, nil
	}
	return p.seen.IsSeen(ctx, parserID, identity)
}

// persistBucket writes one {source, bucket} sub-batch: the file artifact
// first, the store rows second, each with independent failure handling. Seen
// membership is updated once the file artifact is durable; a later store
// failure is surfaced but the artifact remains the recovery point.
func (p *Pipeline) persistBucket(ctx context.Context, src config.SourceConfig, bucket dedup.Bucket, items []batchItem, timestamp time.Time) error {
	if len(items) == 0 {
		return nil
	}

	entries := make([]archive.Entry, 0, len(items))
	incidents := make([]models.Incident, 0, len(items))
	identities := make([]uint64, 0, len(items))

	for _, item := range items {
		scored := item.routed.ScoredEntry
		entries = append(entries, archive.Entry{
			Date:            timestamp.Format(time.RFC3339),
			MessageID:       scored.Entry.MessageID,
			Content:         scored.Entry.Text,
			Link:            scored.Entry.Source,
			Analysis:        archive.Analysis{Profile: scored.Signals, Leak: scored.IsLeak},
			Recommendations: item.recommendations,
		})
		incidents = append(incidents, models.Incident{
			Parser:      src.ID,
			Type:        string(scored.LeakType),
			Source:      scored.Entry.Source,
			Status:      statusFor(bucket),
			Description: describe(scored, item.recommendations),
			CreatedAt:   timestamp,
		})
		identities = append(identities, scored.Entry.Identity)
	}

	if _, err := p.archive.Write(src.ID, src.Path, bucket, timestamp, entries); err != nil {
		metrics.SinkErrors.WithLabelValues("archive").Inc()
		return fmt.Errorf("archive write failed for bucket %s: %w", bucket, err)
	}

	if err := p.seen.MarkSeen(ctx, src.ID, identities); err != nil {
		logger.Warn("Failed to update seen set",
			zap.Error(err),
			zap.String("source", src.ID),
		)
	}

	if err := p.store.InsertIncidents(incidents); err != nil {
		metrics.SinkErrors.WithLabelValues("store").Inc()
		return fmt.Errorf("store write failed for bucket %s (file artifact retained): %w", bucket, err)
	}

	return nil
}

func statusFor(bucket dedup.Bucket) string {
	switch bucket {
	case dedup.BucketConfirmed:
		return models.StatusConfirmed
	case dedup.BucketNeedsReview:
		return models.StatusNeedsReview
	default:
		return models.StatusNew
	}
}

// describe renders the human-readable incident description stored alongside
// the structured columns.
func describe(scored scoring.ScoredEntry, recommendations []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Content: %s\n", scored.Entry.Text)
	fmt.Fprintf(&b, "Type: %s\n", scored.LeakType)
	fmt.Fprintf(&b, "Confidence: %.2f\n", scored.Confidence)
	fmt.Fprintf(&b, "Entities: Geo: %s, Org: %s\n",
		joinOrNone(scored.Signals.GeoEntities),
		joinOrNone(scored.Signals.OrgEntities),
	)
	b.WriteString("Recommendations:\n")
	for _, rec := range recommendations {
		fmt.Fprintf(&b, "- %s\n", rec)
	}

	return strings.TrimRight(b.String(), "\n")
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
