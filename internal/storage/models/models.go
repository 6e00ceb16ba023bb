package models

import "time"

// Incident statuses accepted by the structured store. Anything else is
// normalized to StatusNew rather than rejected; a schema mismatch must not
// abort an otherwise-valid batch.
const (
	StatusNew         = "new"
	StatusConfirmed   = "confirmed"
	StatusNeedsReview = "needs_review"
)

func NormalizeStatus(status string) string {
	switch status {
	case StatusNew, StatusConfirmed, StatusNeedsReview:
		return status
	default:
		return StatusNew
	}
}

type Incident struct {
	ID          int64
	Parser      string
	Type        string
	Source      string
	Status      string
	Description string
	CreatedAt   time.Time
}

type TriageRun struct {
	ID           string
	Status       string
	Sources      int
	Found        int
	Confirmed    int
	NeedsReview  int
	Rejected     int
	SourceErrors int
	StartedAt    time.Time
	DurationMS   int64
}
