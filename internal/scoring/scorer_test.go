package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leakscope/backend/internal/normalize"
	"github.com/leakscope/backend/internal/signals"
)

type stubClassifier struct {
	result Classification
	err    error
	calls  int
}

func (s *stubClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	s.calls++
	return s.result, s.err
}

func extractFor(t *testing.T, text string) (normalize.Entry, signals.Profile) {
	t.Helper()
	entry := normalize.Entry{Text: text, Source: "https://example.com/post"}
	return entry, signals.NewExtractor().Extract(text)
}

func TestScore_ConfirmedLeakFromTrustedSource(t *testing.T) {
	// Credential leak with a named service from a trusted source must clear
	// the confirmation threshold.
	text := "Обнаружена утечка: пароли и email 50000 пользователей Газета.Ru"
	entry, profile := extractFor(t, text)
	entry.Source = "https://www.gazeta.ru/news/leak"

	scorer := NewScorer(&stubClassifier{result: Classification{IsLeak: true, Probability: 0.9}}, []string{"gazeta.ru", "t.me/dataleak"})
	scored := scorer.Score(context.Background(), entry, profile, false)

	assert.True(t, scored.IsLeak)
	assert.Equal(t, LeakTypeCredentials, scored.LeakType)
	assert.GreaterOrEqual(t, scored.Confidence, 0.85)
}

func TestScore_GenericStatisticsSuppression(t *testing.T) {
	// A bare volume claim with no named subject and no qualitative category
	// is forced to a non-leak verdict.
	text := "В сети появилось сообщение о 2 млн записей"
	entry, profile := extractFor(t, text)

	require.True(t, profile.Volume)
	require.False(t, profile.HasServiceEntity)
	require.False(t, profile.HasCategory())

	scorer := NewScorer(&stubClassifier{result: Classification{IsLeak: false, Probability: 0.5}}, nil)
	scored := scorer.Score(context.Background(), entry, profile, false)

	assert.False(t, scored.IsLeak)
	// base 0.7, +0.1 volume, averaged with 0.5
	assert.InDelta(t, 0.65, scored.Confidence, 1e-9)
}

func TestScore_ClassifierUnavailable(t *testing.T) {
	text := "слиты пароли пользователей сервиса Steam"
	entry, profile := extractFor(t, text)

	t.Run("degrades to neutral on error", func(t *testing.T) {
		failing := &stubClassifier{err: errors.New("connection refused")}
		scorer := NewScorer(failing, nil)

		scored := scorer.Score(context.Background(), entry, profile, false)

		assert.Equal(t, 1, failing.calls)
		assert.True(t, scored.IsLeak)
		// base 0.7, +0.2 rule leak, averaged with neutral 0.5
		assert.InDelta(t, 0.7, scored.Confidence, 1e-9)
	})

	t.Run("absent classifier behaves identically", func(t *testing.T) {
		scorer := NewScorer(nil, nil)

		scored := scorer.Score(context.Background(), entry, profile, false)

		assert.True(t, scored.IsLeak)
		assert.InDelta(t, 0.7, scored.Confidence, 1e-9)
	})
}

func TestScore_ClassifierCannotFlipVerdict(t *testing.T) {
	// The classifier modulates confidence only; the rule layer owns the
	// leak/no-leak gate.
	text := "сегодня в городе шёл сильный снег"
	entry, profile := extractFor(t, text)
	require.False(t, profile.LeakLanguage)

	confident := &stubClassifier{result: Classification{IsLeak: true, Probability: 0.99}}
	scorer := NewScorer(confident, nil)

	scored := scorer.Score(context.Background(), entry, profile, false)

	assert.False(t, scored.IsLeak)
	assert.Greater(t, scored.Confidence, 0.5)
}

func TestScore_ConfidenceIsClamped(t *testing.T) {
	text := "утечка: пароли, email, карты, 5 млн записей Газета.Ru"
	entry, profile := extractFor(t, text)
	entry.Source = "https://www.gazeta.ru/report"

	tests := []struct {
		name        string
		probability float64
	}{
		{"probability above range", 4.2},
		{"probability below range", -1.0},
		{"probability at one", 1.0},
		{"probability at zero", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := NewScorer(&stubClassifier{result: Classification{Probability: tt.probability}}, []string{"gazeta.ru"})
			scored := scorer.Score(context.Background(), entry, profile, false)

			assert.GreaterOrEqual(t, scored.Confidence, 0.0)
			assert.LessOrEqual(t, scored.Confidence, 1.0)
		})
	}
}

func TestScore_TrustedSourceHint(t *testing.T) {
	text := "слиты пароли пользователей сервиса Steam"
	entry, profile := extractFor(t, text)
	entry.Source = "internal/feed.json"

	scorer := NewScorer(nil, nil)

	untrusted := scorer.Score(context.Background(), entry, profile, false)
	trusted := scorer.Score(context.Background(), entry, profile, true)

	assert.Greater(t, trusted.Confidence, untrusted.Confidence)
}

func TestLeakTypePriority(t *testing.T) {
	tests := []struct {
		name     string
		profile  signals.Profile
		expected LeakType
	}{
		{
			name:     "credentials beat everything",
			profile:  signals.Profile{Credentials: true, Personal: true, Financial: true, Health: true, IntellectualProperty: true},
			expected: LeakTypeCredentials,
		},
		{
			name:     "personal beats financial",
			profile:  signals.Profile{Personal: true, Financial: true},
			expected: LeakTypePersonal,
		},
		{
			name:     "financial beats health",
			profile:  signals.Profile{Financial: true, Health: true},
			expected: LeakTypeFinancial,
		},
		{
			name:     "health beats intellectual property",
			profile:  signals.Profile{Health: true, IntellectualProperty: true},
			expected: LeakTypeHealth,
		},
		{
			name:     "intellectual property stands alone",
			profile:  signals.Profile{IntellectualProperty: true},
			expected: LeakTypeIntellectualProperty,
		},
		{
			name:     "nothing fired",
			profile:  signals.Profile{Volume: true, LeakLanguage: true},
			expected: LeakTypeOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, leakTypeFor(tt.profile))
		})
	}
}
