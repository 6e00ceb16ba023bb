package collector

import (
	"context"
	"errors"

	"github.com/leakscope/backend/pkg/config"
)

// RawRecord is one schema-variable record produced by an upstream parser.
// Field names and types vary per source; nothing is guaranteed.
type RawRecord map[string]interface{}

// ErrEndOfStream terminates iteration over a record stream.
var ErrEndOfStream = errors.New("end of record stream")

// Stream yields the finite record sequence of one source. It is not
// restartable and may fail mid-iteration.
type Stream interface {
	Next(ctx context.Context) (RawRecord, error)
}

// Collector acquires the record stream for a configured source.
type Collector interface {
	Open(ctx context.Context, src config.SourceConfig) (Stream, error)
}

func (r RawRecord) StringField(key string) (string, bool) {
	v, ok := r[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (r RawRecord) IntField(key string) (int64, bool) {
	switch v := r[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
