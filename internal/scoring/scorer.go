package scoring

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/leakscope/backend/internal/metrics"
	"github.com/leakscope/backend/internal/normalize"
	"github.com/leakscope/backend/internal/signals"
	"github.com/leakscope/backend/pkg/logger"
)

type LeakType string

const (
	LeakTypeCredentials          LeakType = "credentials"
	LeakTypePersonal             LeakType = "personal_data"
	LeakTypeFinancial            LeakType = "financial"
	LeakTypeHealth               LeakType = "health"
	LeakTypeIntellectualProperty LeakType = "intellectual_property"
	LeakTypeOther                LeakType = "other"
)

// Classification is the external classifier's verdict for one text.
// Probability is the probability that the text describes a leak.
type Classification struct {
	IsLeak      bool
	Probability float64
}

// Classifier is an optional capability. Implementations may fail or be
// absent entirely; the scorer degrades to a neutral probability and never
// propagates the error.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

const neutralProbability = 0.5

// ScoredEntry is the immutable scoring result for one entry.
type ScoredEntry struct {
	Entry      normalize.Entry
	Signals    signals.Profile
	LeakType   LeakType
	Confidence float64
	IsLeak     bool
}

type Scorer struct {
	classifier     Classifier
	trustedSources []string
}

func NewScorer(classifier Classifier, trustedSources []string) *Scorer {
	lowered := make([]string, 0, len(trustedSources))
	for _, s := range trustedSources {
		lowered = append(lowered, strings.ToLower(s))
	}

	return &Scorer{
		classifier:     classifier,
		trustedSources: lowered,
	}
}

// Score combines the rule verdict, source trust and the external classifier
// probability into a confidence value. The rule layer alone decides IsLeak;
// the classifier only modulates certainty.
func (s *Scorer) Score(ctx context.Context, entry normalize.Entry, profile signals.Profile, trusted bool) ScoredEntry {
	ruleLeak := profile.LeakLanguage || (profile.HasServiceEntity && profile.HasCategory())

	// Generic-statistics suppression: a bare volume claim with no named
	// subject and no qualitative category is not probative.
	if !profile.HasServiceEntity && profile.Volume && !profile.HasCategory() {
		ruleLeak = false
	}

	probability := s.classify(ctx, entry.Text)

	base := 0.7
	if trusted || s.isTrustedSource(entry.Source) {
		base = 0.9
	}
	if ruleLeak || probability > 0.7 {
		base = clamp(base + 0.2)
	}
	if profile.Volume {
		base = clamp(base + 0.1)
	}

	confidence := clamp((base + probability) / 2)

	scored := ScoredEntry{
		Entry:      entry,
		Signals:    profile,
		LeakType:   leakTypeFor(profile),
		Confidence: confidence,
		IsLeak:     ruleLeak,
	}

	logger.Debug("Entry scored",
		zap.String("source", entry.Source),
		zap.String("leak_type", string(scored.LeakType)),
		zap.Float64("confidence", confidence),
		zap.Bool("is_leak", ruleLeak),
	)
	metrics.ConfidenceScore.Observe(confidence)

	return scored
}

func (s *Scorer) classify(ctx context.Context, text string) float64 {
	if s.classifier == nil {
		return neutralProbability
	}

	result, err := s.classifier.Classify(ctx, text)
	if err != nil {
		logger.Warn("Classifier unavailable, using neutral probability", zap.Error(err))
		metrics.ClassifierFallbacks.Inc()
		return neutralProbability
	}

	return clamp(result.Probability)
}

func (s *Scorer) isTrustedSource(source string) bool {
	lower := strings.ToLower(source)
	for _, trusted := range s.trustedSources {
		if strings.Contains(lower, trusted) {
			return true
		}
	}
	return false
}

// leakTypeFor picks the category in fixed priority order. Credential
// exposure is treated as the most actionable category when several signals
// co-occur.
func leakTypeFor(profile signals.Profile) LeakType {
	switch {
	case profile.Credentials:
		return LeakTypeCredentials
	case profile.Personal:
		return LeakTypePersonal
	case profile.Financial:
		return LeakTypeFinancial
	case profile.Health:
		return LeakTypeHealth
	case profile.IntellectualProperty:
		return LeakTypeIntellectualProperty
	default:
		return LeakTypeOther
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
