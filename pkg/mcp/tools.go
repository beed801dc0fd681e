package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/hemingway-community/slack-mcp/pkg/blockkit"
	"github.com/hemingway-community/slack-mcp/pkg/models"
	"github.com/hemingway-community/slack-mcp/pkg/query"
)

// maxTextPreview caps message bodies in query results so tool output
// stays readable for the host
const maxTextPreview = 200

// DataSource is the extraction table handed to the data tools. Table
// is nil when discovery or loading failed at startup; Reason then
// carries the explanation every data tool reports.
type DataSource struct {
	Table  *models.ExtractionTable
	Reason string
}

// NoDataResult is the uniform answer of every data tool when no
// extraction could be loaded
type NoDataResult struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason"`
}

type messageResult struct {
	User       string `json:"user"`
	Channel    string `json:"channel"`
	Text       string `json:"text"`
	Timestamp  string `json:"timestamp"`
	ReplyCount int    `json:"reply_count"`
	Permalink  string `json:"permalink,omitempty"`
	Category   string `json:"category,omitempty"`
}

type memberResult struct {
	Name       string `json:"name"`
	JoinedAt   string `json:"joined_at"`
	JoinedDate string `json:"joined_date"`
}

// RegisterTools registers the full tool surface: four data query tools
// bound to ds and five stateless Block Kit builders.
func RegisterTools(r *Registry, ds DataSource, defaultLimit int) {
	if defaultLimit <= 0 {
		defaultLimit = query.DefaultLimit
	}

	r.Register(Tool{
		Name:        "query_messages",
		Description: "Query messages from the Slack community extraction. Returns messages matching every supplied filter.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"channel": {"type": "string", "description": "Channel name (e.g., '02-discussion', '05-asks', '07-intros')"},
				"from_date": {"type": "string", "description": "Start date, inclusive (ISO format: YYYY-MM-DD)"},
				"to_date": {"type": "string", "description": "End date, inclusive (ISO format: YYYY-MM-DD)"},
				"user": {"type": "string", "description": "User name (partial match)"},
				"search_text": {"type": "string", "description": "Case-insensitive substring search in message text"},
				"has_replies": {"type": "boolean", "description": "Only return threads with replies"},
				"category": {"type": "string", "enum": ["intro", "ask", "discussion", "news", "session"], "description": "Filter by message category"},
				"limit": {"type": "integer", "description": "Maximum number of results (default: 50)", "default": 50}
			}
		}`),
		Handler: func(args json.RawMessage) (any, error) {
			if ds.Table == nil {
				return NoDataResult{Reason: ds.Reason}, nil
			}

			var params struct {
				Channel    string `json:"channel"`
				FromDate   string `json:"from_date"`
				ToDate     string `json:"to_date"`
				User       string `json:"user"`
				SearchText string `json:"search_text"`
				HasReplies *bool  `json:"has_replies"`
				Category   string `json:"category"`
				Limit      int    `json:"limit"`
			}
			if err := unmarshalArgs(args, &params); err != nil {
				return nil, err
			}

			limit := params.Limit
			if limit == 0 {
				limit = defaultLimit
			}

			messages, err := query.Messages(ds.Table, query.MessageFilter{
				Channel:      params.Channel,
				User:         params.User,
				TextContains: params.SearchText,
				Category:     params.Category,
				DateFrom:     params.FromDate,
				DateTo:       params.ToDate,
				HasReplies:   params.HasReplies,
				Limit:        limit,
			})
			if err != nil {
				return nil, err
			}

			results := make([]messageResult, 0, len(messages))
			for _, msg := range messages {
				results = append(results, messageResult{
					User:       msg.User,
					Channel:    msg.Channel,
					Text:       truncate(msg.Text, maxTextPreview),
					Timestamp:  msg.Timestamp,
					ReplyCount: msg.ReplyCount,
					Permalink:  msg.Permalink,
					Category:   msg.Category,
				})
			}
			return results, nil
		},
	})

	r.Register(Tool{
		Name:        "get_new_members",
		Description: "Get new members who joined the Slack community in a date range",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"from_date": {"type": "string", "description": "Start date, inclusive (ISO format: YYYY-MM-DD)"},
				"to_date": {"type": "string", "description": "End date, inclusive (ISO format: YYYY-MM-DD)"}
			},
			"required": ["from_date", "to_date"]
		}`),
		Handler: func(args json.RawMessage) (any, error) {
			if ds.Table == nil {
				return NoDataResult{Reason: ds.Reason}, nil
			}

			var params struct {
				FromDate string `json:"from_date"`
				ToDate   string `json:"to_date"`
			}
			if err := unmarshalArgs(args, &params); err != nil {
				return nil, err
			}

			members, err := query.NewMembers(ds.Table, params.FromDate, params.ToDate)
			if err != nil {
				return nil, err
			}

			results := make([]memberResult, 0, len(members))
			for _, member := range members {
				joined := ""
				if t, err := member.Time(); err == nil {
					joined = t.Format("2006-01-02")
				}
				results = append(results, memberResult{
					Name:       member.Name,
					JoinedAt:   member.JoinedAt,
					JoinedDate: joined,
				})
			}
			return results, nil
		},
	})

	r.Register(Tool{
		Name:        "get_channel_stats",
		Description: "Get per-channel activity statistics, ordered by message count",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"from_date": {"type": "string", "description": "Start date, inclusive (ISO format: YYYY-MM-DD)"},
				"to_date": {"type": "string", "description": "End date, inclusive (ISO format: YYYY-MM-DD)"}
			}
		}`),
		Handler: func(args json.RawMessage) (any, error) {
			if ds.Table == nil {
				return NoDataResult{Reason: ds.Reason}, nil
			}

			var params struct {
				FromDate string `json:"from_date"`
				ToDate   string `json:"to_date"`
			}
			if err := unmarshalArgs(args, &params); err != nil {
				return nil, err
			}

			return query.Stats(ds.Table, params.FromDate, params.ToDate)
		},
	})

	r.Register(Tool{
		Name:        "get_extraction_info",
		Description: "Get information about the currently loaded Slack data extraction",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
		Handler: func(args json.RawMessage) (any, error) {
			if ds.Table == nil {
				return NoDataResult{Reason: ds.Reason}, nil
			}
			return query.Info(ds.Table), nil
		},
	})

	registerBlockTools(r)
}

func registerBlockTools(r *Registry) {
	r.Register(Tool{
		Name:        "build_header",
		Description: "Generate a Slack Block Kit header block",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"text": {"type": "string", "description": "Header text (max 150 characters)"},
				"emoji": {"type": "boolean", "description": "Enable emoji (default: true)", "default": true}
			},
			"required": ["text"]
		}`),
		Handler: func(args json.RawMessage) (any, error) {
			var params struct {
				Text  string `json:"text"`
				Emoji *bool  `json:"emoji"`
			}
			if err := unmarshalArgs(args, &params); err != nil {
				return nil, err
			}
			emoji := true
			if params.Emoji != nil {
				emoji = *params.Emoji
			}
			return blockkit.Header(params.Text, emoji)
		},
	})

	r.Register(Tool{
		Name:        "build_section",
		Description: "Generate a Slack Block Kit section block with text",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"text": {"type": "string", "description": "Section text (supports markdown)"},
				"markdown": {"type": "boolean", "description": "Use markdown formatting (default: true)", "default": true}
			},
			"required": ["text"]
		}`),
		Handler: func(args json.RawMessage) (any, error) {
			var params struct {
				Text     string `json:"text"`
				Markdown *bool  `json:"markdown"`
			}
			if err := unmarshalArgs(args, &params); err != nil {
				return nil, err
			}
			markdown := true
			if params.Markdown != nil {
				markdown = *params.Markdown
			}
			return blockkit.Section(params.Text, markdown), nil
		},
	})

	r.Register(Tool{
		Name:        "build_divider",
		Description: "Generate a Slack Block Kit divider (horizontal line)",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
		Handler: func(args json.RawMessage) (any, error) {
			return blockkit.Divider(), nil
		},
	})

	r.Register(Tool{
		Name:        "build_button",
		Description: "Generate a Slack Block Kit button with link",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"text": {"type": "string", "description": "Button text"},
				"url": {"type": "string", "description": "Button URL (must be absolute)"},
				"action_id": {"type": "string", "description": "Action ID (default: 'button')", "default": "button"}
			},
			"required": ["text", "url"]
		}`),
		Handler: func(args json.RawMessage) (any, error) {
			var params struct {
				Text     string `json:"text"`
				URL      string `json:"url"`
				ActionID string `json:"action_id"`
			}
			if err := unmarshalArgs(args, &params); err != nil {
				return nil, err
			}
			return blockkit.Button(params.Text, params.URL, params.ActionID)
		},
	})

	r.Register(Tool{
		Name:        "build_context",
		Description: "Generate a Slack Block Kit context block (small gray text)",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"elements": {
					"type": "array",
					"items": {"type": "string"},
					"description": "List of context text elements"
				}
			},
			"required": ["elements"]
		}`),
		Handler: func(args json.RawMessage) (any, error) {
			var params struct {
				Elements []string `json:"elements"`
			}
			if err := unmarshalArgs(args, &params); err != nil {
				return nil, err
			}
			return blockkit.Context(params.Elements)
		},
	})
}

func unmarshalArgs(args json.RawMessage, dst any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
