package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/leakscope/backend/internal/dedup"
	"github.com/leakscope/backend/internal/signals"
	"github.com/leakscope/backend/pkg/logger"
)

// Entry is the full per-entry payload written to the file archive.
type Entry struct {
	Date            string   `json:"date"`
	MessageID       int64    `json:"message_id"`
	Content         string   `json:"content"`
	Link            string   `json:"link"`
	Analysis        Analysis `json:"analysis"`
	Recommendations []string `json:"recommendations"`
}

type Analysis struct {
	signals.Profile
	Leak bool `json:"leak"`
}

type payload struct {
	Source    string  `json:"source"`
	Timestamp string  `json:"timestamp"`
	Entries   []Entry `json:"entries"`
}

// Writer produces one durable file per {source, bucket} sub-batch. The file
// is the recovery source of truth when the structured store write fails
// afterwards.
type Writer struct {
	processedDir string
	reviewDir    string
}

func NewWriter(processedDir, reviewDir string) *Writer {
	return &Writer{
		processedDir: processedDir,
		reviewDir:    reviewDir,
	}
}

func (w *Writer) Write(parserID, origin string, bucket dedup.Bucket, timestamp time.Time, entries []Entry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	dir, prefix, err := w.target(bucket)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive dir: %w", err)
	}

	data, err := json.MarshalIndent(payload{
		Source:    origin,
		Timestamp: timestamp.UTC().Format(time.RFC3339),
		Entries:   entries,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal archive payload: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s", prefix, parserID, filepath.Base(origin))
	if filepath.Ext(name) != ".json" {
		name += ".json"
	}
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write archive file: %w", err)
	}

	logger.Info("Archive file written",
		zap.String("path", path),
		zap.String("bucket", string(bucket)),
		zap.Int("entries", len(entries)),
	)

	return path, nil
}

func (w *Writer) target(bucket dedup.Bucket) (dir, prefix string, err error) {
	switch bucket {
	case dedup.BucketConfirmed:
		return w.processedDir, "processed", nil
	case dedup.BucketNeedsReview:
		return w.reviewDir, "review", nil
	default:
		return "", "", fmt.Errorf("bucket %q has no archive target", bucket)
	}
}
