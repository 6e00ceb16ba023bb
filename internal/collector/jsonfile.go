package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/leakscope/backend/pkg/config"
	"github.com/leakscope/backend/pkg/logger"
)

// JSONFileCollector reads the JSON artifact a parser wrote for one source.
// Parsers emit three shapes: a bare array of records, an object with an
// "entries" array, and a legacy object keyed "Утечки информации". A single
// object that is itself a record is accepted as a one-element stream.
type JSONFileCollector struct{}

func NewJSONFileCollector() *JSONFileCollector {
	return &JSONFileCollector{}
}

func (c *JSONFileCollector) Open(ctx context.Context, src config.SourceConfig) (Stream, error) {
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}

	records, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode source %s: %w", src.ID, err)
	}

	logger.Debug("Source file decoded",
		zap.String("source", src.ID),
		zap.String("path", src.Path),
		zap.Int("records", len(records)),
	)

	return &sliceStream{records: records}, nil
}

func decodeRecords(data []byte) ([]RawRecord, error) {
	var asList []RawRecord
	if err := json.Unmarshal(data, &asList); err == nil {
		return asList, nil
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(data, &asObject); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}

	for _, key := range []string{"entries", "Утечки информации"} {
		raw, ok := asObject[key]
		if !ok {
			continue
		}
		var records []RawRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("invalid %q array: %w", key, err)
		}
		return records, nil
	}

	// A lone object may itself be a record.
	var single RawRecord
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}
	return []RawRecord{single}, nil
}

type sliceStream struct {
	records []RawRecord
	pos     int
}

func (s *sliceStream) Next(ctx context.Context) (RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.records) {
		return nil, ErrEndOfStream
	}
	record := s.records[s.pos]
	s.pos++
	return record, nil
}
