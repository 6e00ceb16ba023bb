package normalize

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/leakscope/backend/internal/collector"
	"github.com/leakscope/backend/pkg/utils"
)

// Entry is a raw record reduced to canonical text and identity. Immutable
// once created.
type Entry struct {
	Parser    string
	Text      string
	Source    string
	MessageID int64
	Timestamp time.Time
	Identity  uint64
}

const minTextLength = 5

// textFields are probed in priority order; the first field whose trimmed
// value is long enough wins.
var textFields = []string{"content", "snippet", "title", "description"}

var sourceFields = []string{"url", "link"}

var whitespaceRE = regexp.MustCompile(`\s+`)

type Normalizer struct {
	now func() time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize reduces one raw record to an Entry. The second return value is
// false when no candidate field yields usable text.
func (n *Normalizer) Normalize(record collector.RawRecord, parserID, origin string) (Entry, bool) {
	text, ok := extractText(record)
	if !ok {
		return Entry{}, false
	}

	source := extractSource(record)
	if source == "" {
		source = fmt.Sprintf("%s/%s", parserID, filepath.Base(origin))
	}

	timestamp := extractTimestamp(record)
	if timestamp.IsZero() {
		timestamp = n.now().UTC()
	}

	messageID, ok := record.IntField("message_id")
	if !ok {
		messageID = utils.MessageID(text)
	}

	return Entry{
		Parser:    parserID,
		Text:      text,
		Source:    source,
		MessageID: messageID,
		Timestamp: timestamp,
		Identity:  utils.Identity(text),
	}, true
}

func extractText(record collector.RawRecord) (string, bool) {
	for _, field := range textFields {
		value, ok := record.StringField(field)
		if !ok {
			continue
		}
		text := strings.TrimSpace(value)
		if strings.Contains(text, "<") && strings.Contains(text, ">") {
			text = stripHTML(text)
		}
		if len([]rune(text)) >= minTextLength {
			return text, true
		}
	}
	return "", false
}

func extractSource(record collector.RawRecord) string {
	for _, field := range sourceFields {
		if value, ok := record.StringField(field); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func extractTimestamp(record collector.RawRecord) time.Time {
	for _, field := range []string{"date", "timestamp", "published_at"} {
		value, ok := record.StringField(field)
		if !ok {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, value); err == nil {
				return ts.UTC()
			}
		}
	}
	return time.Time{}
}

// stripHTML flattens markup some collectors leave in content fields.
func stripHTML(input string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return input
	}

	doc.Find("script, style").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Text()
	text = whitespaceRE.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
