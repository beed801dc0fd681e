package extraction

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/hemingway-community/slack-mcp/pkg/models"
)

// ParseError reports an export file that exists but could not be
// decoded into an extraction table.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse extraction file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// exportDocument mirrors the JSON layout written by the upstream
// extraction script. The message and member arrays are pointers so a
// missing key can be told apart from an empty one.
type exportDocument struct {
	Workspace   string           `json:"workspace"`
	ExtractedAt string           `json:"extracted_at"`
	AllMessages *[]exportMessage `json:"all_messages"`
	NewMembers  *[]exportMember  `json:"new_members"`
}

type exportMessage struct {
	UserName    string `json:"user_name"`
	ChannelName string `json:"channel_name"`
	ChannelID   string `json:"channel_id"`
	Text        string `json:"text"`
	TS          string `json:"ts"`
	ReplyCount  int    `json:"reply_count"`
	Permalink   string `json:"permalink"`
	Category    string `json:"category"`
}

type exportMember struct {
	Name string `json:"name"`
	TS   string `json:"ts"`
}

// Load reads path fully and parses it as a single JSON export
// document. Structural mismatches (missing arrays, unparseable
// timestamps) are reported as a *ParseError; there is no partial
// recovery. The source file is never written back.
func Load(path string) (*models.ExtractionTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction file: %w", err)
	}

	var doc exportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	if doc.AllMessages == nil {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("missing all_messages array")}
	}
	if doc.NewMembers == nil {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("missing new_members array")}
	}

	table := &models.ExtractionTable{
		SourceFile:  path,
		Workspace:   doc.Workspace,
		ExtractedAt: doc.ExtractedAt,
		Messages:    make([]models.Message, 0, len(*doc.AllMessages)),
		Members:     make([]models.Member, 0, len(*doc.NewMembers)),
	}

	for i, raw := range *doc.AllMessages {
		msg, err := convertMessage(raw, doc.Workspace)
		if err != nil {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("message %d: %w", i, err)}
		}
		table.Messages = append(table.Messages, msg)
	}

	for i, raw := range *doc.NewMembers {
		if raw.TS == "" {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("member %d: missing ts", i)}
		}
		if _, err := models.ParseSlackTimestamp(raw.TS); err != nil {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("member %d: %w", i, err)}
		}
		table.Members = append(table.Members, models.Member{
			Name:     raw.Name,
			JoinedAt: raw.TS,
		})
	}

	return table, nil
}

// DiscoverAndLoad locates the newest export via d and loads it
func DiscoverAndLoad(d *Discoverer) (*models.ExtractionTable, error) {
	path, err := d.Discover()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

func convertMessage(raw exportMessage, workspace string) (models.Message, error) {
	if raw.TS == "" {
		return models.Message{}, fmt.Errorf("missing ts")
	}
	if _, err := models.ParseSlackTimestamp(raw.TS); err != nil {
		return models.Message{}, err
	}
	if raw.ReplyCount < 0 {
		return models.Message{}, fmt.Errorf("negative reply_count %d", raw.ReplyCount)
	}

	msg := models.Message{
		User:       raw.UserName,
		Channel:    raw.ChannelName,
		Text:       raw.Text,
		Timestamp:  raw.TS,
		ReplyCount: raw.ReplyCount,
		Permalink:  raw.Permalink,
		Category:   raw.Category,
	}

	// Older exports carry only the channel ID; rebuild the archive
	// permalink the way the extraction script does.
	if msg.Permalink == "" && raw.ChannelID != "" {
		if workspace == "" {
			workspace = "hemingway-community"
		}
		msg.Permalink = fmt.Sprintf("https://%s.slack.com/archives/%s/p%s",
			workspace, raw.ChannelID, strings.ReplaceAll(raw.TS, ".", ""))
	}

	return msg, nil
}
