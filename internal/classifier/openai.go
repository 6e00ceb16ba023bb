package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/leakscope/backend/internal/scoring"
	"github.com/leakscope/backend/pkg/circuitbreaker"
	"github.com/leakscope/backend/pkg/logger"
	"github.com/leakscope/backend/pkg/retry"
)

const systemPrompt = `You are a data-leak triage classifier. Decide whether the given text describes a data-leak incident (stolen credentials, exposed personal or financial records, breached services). The text may be Russian or English.

Return JSON only:
{"label": "leak" | "not_leak", "probability": <float 0..1, probability that the text describes a leak>}`

// OpenAIClassifier implements scoring.Classifier with a zero-shot chat
// completion. Callers must treat every error as "classifier unavailable".
type OpenAIClassifier struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewOpenAIClassifier(apiKey, model string, temperature float32, maxTokens, timeoutSec int) *OpenAIClassifier {
	cb := circuitbreaker.NewCircuitBreaker("classifier", circuitbreaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Classifier initialized", zap.String("model", model))

	return &OpenAIClassifier{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     time.Duration(timeoutSec) * time.Second,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (scoring.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result scoring.Classification

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Temperature: c.temperature,
					MaxTokens:   c.maxTokens,
					Messages: []openai.ChatCompletionMessage{
						{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
						{Role: openai.ChatMessageRoleUser, Content: text},
					},
				},
			)
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			if len(resp.Choices) == 0 {
				return fmt.Errorf("empty completion response")
			}

			parsed, err := parseVerdict(resp.Choices[0].Message.Content)
			if err != nil {
				return err
			}

			result = parsed
			return nil
		})
	})

	if err != nil {
		return scoring.Classification{}, err
	}

	logger.Debug("Text classified",
		zap.Bool("is_leak", result.IsLeak),
		zap.Float64("probability", result.Probability),
	)

	return result, nil
}

func parseVerdict(content string) (scoring.Classification, error) {
	// Models occasionally wrap the JSON in a code fence.
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var verdict struct {
		Label       string  `json:"label"`
		Probability float64 `json:"probability"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &verdict); err != nil {
		return scoring.Classification{}, fmt.Errorf("failed to parse classifier verdict: %w", err)
	}

	if verdict.Probability < 0 || verdict.Probability > 1 {
		return scoring.Classification{}, fmt.Errorf("classifier probability out of range: %f", verdict.Probability)
	}

	return scoring.Classification{
		IsLeak:      verdict.Label == "leak",
		Probability: verdict.Probability,
	}, nil
}
