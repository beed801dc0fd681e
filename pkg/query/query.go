// Package query implements the read-only query engine over a loaded
// extraction table. Every function is a pure function of the table it
// is handed; nothing here mutates the table or holds state.
package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hemingway-community/slack-mcp/pkg/models"
)

// DefaultLimit caps query_messages results at the tool layer when the
// caller does not ask for a specific limit. The engine itself is
// unbounded: a filter with no limit returns every match.
const DefaultLimit = 50

// ValidationError reports a malformed caller-supplied parameter. It is
// distinct from an empty result: queries with zero matches return an
// empty slice and no error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// MessageFilter holds the optional predicates for Messages. Absent
// fields impose no constraint; supplied fields combine with AND
// semantics.
type MessageFilter struct {
	// Channel matches as a substring of the channel name
	Channel string `json:"channel,omitempty"`

	// User matches as a case-insensitive substring of the display name
	User string `json:"user,omitempty"`

	// TextContains is a case-insensitive substring test on the body
	TextContains string `json:"text_contains,omitempty"`

	// Category matches the message tag exactly (case-insensitive)
	Category string `json:"category,omitempty"`

	// DateFrom and DateTo are inclusive bounds (YYYY-MM-DD or RFC 3339)
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`

	// HasReplies, when set, keeps only threads with (or without) replies
	HasReplies *bool `json:"has_replies,omitempty"`

	// Limit caps the result; zero means no limit
	Limit int `json:"limit,omitempty"`
}

// ChannelStats aggregates activity for one channel
type ChannelStats struct {
	Channel         string `json:"channel"`
	MessageCount    int    `json:"message_count"`
	UniqueUserCount int    `json:"unique_user_count"`
	TotalReplyCount int    `json:"total_reply_count"`
}

// ExtractionInfo describes the currently loaded table
type ExtractionInfo struct {
	SourceFile   string `json:"source_file"`
	Workspace    string `json:"workspace,omitempty"`
	ExtractedAt  string `json:"extracted_at,omitempty"`
	MessageCount int    `json:"message_count"`
	MemberCount  int    `json:"member_count"`
}

// Messages returns the subsequence of table.Messages satisfying every
// supplied predicate, preserving the table's original order. A filter
// that matches nothing yields an empty slice, not an error.
func Messages(table *models.ExtractionTable, f MessageFilter) ([]models.Message, error) {
	if f.Limit < 0 {
		return nil, &ValidationError{Field: "limit", Reason: "must be positive"}
	}

	var from, to time.Time
	var err error
	if f.DateFrom != "" {
		from, err = parseDateBound("date_from", f.DateFrom, false)
		if err != nil {
			return nil, err
		}
	}
	if f.DateTo != "" {
		to, err = parseDateBound("date_to", f.DateTo, true)
		if err != nil {
			return nil, err
		}
	}

	results := make([]models.Message, 0)
	for _, msg := range table.Messages {
		if f.Channel != "" && !strings.Contains(msg.Channel, f.Channel) {
			continue
		}
		if f.User != "" && !strings.Contains(strings.ToLower(msg.User), strings.ToLower(f.User)) {
			continue
		}
		if f.TextContains != "" && !strings.Contains(strings.ToLower(msg.Text), strings.ToLower(f.TextContains)) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(msg.Category, f.Category) {
			continue
		}
		if f.HasReplies != nil && *f.HasReplies != (msg.ReplyCount > 0) {
			continue
		}
		if !from.IsZero() || !to.IsZero() {
			ts, err := msg.Time()
			if err != nil {
				continue // unparseable ts cannot satisfy a date bound
			}
			if !from.IsZero() && ts.Before(from) {
				continue
			}
			if !to.IsZero() && ts.After(to) {
				continue
			}
		}

		results = append(results, msg)
		if f.Limit > 0 && len(results) >= f.Limit {
			break
		}
	}

	return results, nil
}

// NewMembers returns members whose join time falls within the
// inclusive [from, to] range, in chronological order. Both bounds are
// required; an inverted range yields an empty result, not an error.
func NewMembers(table *models.ExtractionTable, fromDate, toDate string) ([]models.Member, error) {
	if fromDate == "" {
		return nil, &ValidationError{Field: "from_date", Reason: "is required"}
	}
	if toDate == "" {
		return nil, &ValidationError{Field: "to_date", Reason: "is required"}
	}

	from, err := parseDateBound("from_date", fromDate, false)
	if err != nil {
		return nil, err
	}
	to, err := parseDateBound("to_date", toDate, true)
	if err != nil {
		return nil, err
	}

	results := make([]models.Member, 0)
	for _, member := range table.Members {
		ts, err := member.Time()
		if err != nil {
			continue
		}
		if ts.Before(from) || ts.After(to) {
			continue
		}
		results = append(results, member)
	}

	sort.SliceStable(results, func(i, j int) bool {
		ti, _ := results[i].Time()
		tj, _ := results[j].Time()
		return ti.Before(tj)
	})

	return results, nil
}

// Stats aggregates per-channel activity in a single pass over the
// message sequence, optionally narrowed to an inclusive date range.
// Channels are ordered by message count descending, ties broken by
// channel name ascending.
func Stats(table *models.ExtractionTable, fromDate, toDate string) ([]ChannelStats, error) {
	var from, to time.Time
	var err error
	if fromDate != "" {
		from, err = parseDateBound("from_date", fromDate, false)
		if err != nil {
			return nil, err
		}
	}
	if toDate != "" {
		to, err = parseDateBound("to_date", toDate, true)
		if err != nil {
			return nil, err
		}
	}

	counts := make(map[string]*ChannelStats)
	users := make(map[string]map[string]struct{})

	for _, msg := range table.Messages {
		if !from.IsZero() || !to.IsZero() {
			ts, err := msg.Time()
			if err != nil {
				continue
			}
			if !from.IsZero() && ts.Before(from) {
				continue
			}
			if !to.IsZero() && ts.After(to) {
				continue
			}
		}

		stats, ok := counts[msg.Channel]
		if !ok {
			stats = &ChannelStats{Channel: msg.Channel}
			counts[msg.Channel] = stats
			users[msg.Channel] = make(map[string]struct{})
		}
		stats.MessageCount++
		stats.TotalReplyCount += msg.ReplyCount
		users[msg.Channel][msg.User] = struct{}{}
	}

	results := make([]ChannelStats, 0, len(counts))
	for channel, stats := range counts {
		stats.UniqueUserCount = len(users[channel])
		results = append(results, *stats)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].MessageCount != results[j].MessageCount {
			return results[i].MessageCount > results[j].MessageCount
		}
		return results[i].Channel < results[j].Channel
	})

	return results, nil
}

// Info reports metadata about the loaded table
func Info(table *models.ExtractionTable) ExtractionInfo {
	return ExtractionInfo{
		SourceFile:   table.SourceFile,
		Workspace:    table.Workspace,
		ExtractedAt:  table.ExtractedAt,
		MessageCount: len(table.Messages),
		MemberCount:  len(table.Members),
	}
}

// parseDateBound parses a caller-supplied date string. A bare
// YYYY-MM-DD upper bound covers the whole day so that inclusive range
// semantics hold for date-only input.
func parseDateBound(field, value string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		if endOfDay {
			return t.Add(24*time.Hour - time.Nanosecond), nil
		}
		return t, nil
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &ValidationError{
		Field:  field,
		Reason: fmt.Sprintf("unparseable date %q (expected YYYY-MM-DD)", value),
	}
}
