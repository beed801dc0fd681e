package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Message represents a single message from a Slack community extraction
type Message struct {
	User       string `json:"user"`
	Channel    string `json:"channel"`
	Text       string `json:"text"`
	Timestamp  string `json:"timestamp"`
	ReplyCount int    `json:"reply_count"`
	Permalink  string `json:"permalink,omitempty"`
	Category   string `json:"category,omitempty"`
}

// Member represents one community join event
type Member struct {
	Name     string `json:"name"`
	JoinedAt string `json:"joined_at"`
}

// ExtractionTable is the in-memory snapshot of one export file.
// It is loaded once per process and never mutated afterwards, so
// concurrent readers need no locking.
type ExtractionTable struct {
	Messages    []Message `json:"messages"`
	Members     []Member  `json:"members"`
	SourceFile  string    `json:"source_file"`
	Workspace   string    `json:"workspace,omitempty"`
	ExtractedAt string    `json:"extracted_at,omitempty"`
}

// Time returns the message timestamp as a time.Time
func (m Message) Time() (time.Time, error) {
	return ParseSlackTimestamp(m.Timestamp)
}

// Time returns the join timestamp as a time.Time
func (m Member) Time() (time.Time, error) {
	return ParseSlackTimestamp(m.JoinedAt)
}

// ParseSlackTimestamp parses Slack's timestamp format.
// Timestamps stay strings on the records themselves to preserve
// sub-second precision and exact round-trip formatting; this helper
// exists only for comparisons.
func ParseSlackTimestamp(ts string) (time.Time, error) {
	// Unix timestamp with microseconds (e.g., "1599934232.150700")
	if strings.Contains(ts, ".") {
		parts := strings.Split(ts, ".")
		if len(parts) == 2 && len(parts[1]) <= 9 {
			seconds, err := strconv.ParseInt(parts[0], 10, 64)
			if err == nil {
				frac, err := strconv.ParseInt(parts[1], 10, 64)
				if err == nil {
					for i := len(parts[1]); i < 9; i++ {
						frac *= 10
					}
					return time.Unix(0, seconds*1e9+frac), nil
				}
			}
		}
	} else {
		// Unix timestamp, seconds only
		if seconds, err := strconv.ParseInt(ts, 10, 64); err == nil {
			return time.Unix(seconds, 0), nil
		}
	}

	// Common datetime fallbacks seen in older exports
	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05-07:00",
		time.RFC3339,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid timestamp format: %s", ts)
}
