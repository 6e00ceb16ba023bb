package collector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leakscope/backend/pkg/config"
)

func writeSourceFile(t *testing.T, content string) config.SourceConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return config.SourceConfig{ID: "testparser", Path: path}
}

func drain(t *testing.T, s Stream) []RawRecord {
	t.Helper()
	var records []RawRecord
	for {
		record, err := s.Next(context.Background())
		if errors.Is(err, ErrEndOfStream) {
			return records
		}
		require.NoError(t, err)
		records = append(records, record)
	}
}

func TestJSONFileCollector_PayloadShapes(t *testing.T) {
	c := NewJSONFileCollector()

	t.Run("bare array", func(t *testing.T) {
		src := writeSourceFile(t, `[{"content": "first"}, {"content": "second"}]`)

		stream, err := c.Open(context.Background(), src)
		require.NoError(t, err)

		records := drain(t, stream)
		require.Len(t, records, 2)
		text, _ := records[0].StringField("content")
		assert.Equal(t, "first", text)
	})

	t.Run("entries object", func(t *testing.T) {
		src := writeSourceFile(t, `{"entries": [{"snippet": "a"}, {"snippet": "b"}, {"snippet": "c"}]}`)

		stream, err := c.Open(context.Background(), src)
		require.NoError(t, err)
		assert.Len(t, drain(t, stream), 3)
	})

	t.Run("legacy russian key", func(t *testing.T) {
		src := writeSourceFile(t, `{"Утечки информации": [{"title": "запись"}]}`)

		stream, err := c.Open(context.Background(), src)
		require.NoError(t, err)
		assert.Len(t, drain(t, stream), 1)
	})

	t.Run("single object record", func(t *testing.T) {
		src := writeSourceFile(t, `{"content": "lone record", "url": "https://example.com"}`)

		stream, err := c.Open(context.Background(), src)
		require.NoError(t, err)

		records := drain(t, stream)
		require.Len(t, records, 1)
		url, _ := records[0].StringField("url")
		assert.Equal(t, "https://example.com", url)
	})

	t.Run("empty array is an empty stream, not an error", func(t *testing.T) {
		src := writeSourceFile(t, `[]`)

		stream, err := c.Open(context.Background(), src)
		require.NoError(t, err)
		assert.Empty(t, drain(t, stream))
	})
}

func TestJSONFileCollector_ReadFailures(t *testing.T) {
	c := NewJSONFileCollector()

	t.Run("missing file", func(t *testing.T) {
		_, err := c.Open(context.Background(), config.SourceConfig{ID: "x", Path: "/nonexistent/file.json"})
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		src := writeSourceFile(t, `{"entries": [`)
		_, err := c.Open(context.Background(), src)
		assert.Error(t, err)
	})
}

func TestRawRecord_Fields(t *testing.T) {
	record := RawRecord{
		"content":    "text",
		"message_id": float64(7),
		"count":      "not a number",
	}

	t.Run("string field", func(t *testing.T) {
		v, ok := record.StringField("content")
		assert.True(t, ok)
		assert.Equal(t, "text", v)

		_, ok = record.StringField("missing")
		assert.False(t, ok)
	})

	t.Run("int field handles json numbers", func(t *testing.T) {
		v, ok := record.IntField("message_id")
		assert.True(t, ok)
		assert.Equal(t, int64(7), v)

		_, ok = record.IntField("count")
		assert.False(t, ok)
	})
}
