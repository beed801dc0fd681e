// Package blockkit builds Slack Block Kit layout fragments. Every
// builder is a stateless constructor; the output shapes match Slack's
// block JSON schema exactly, field for field.
package blockkit

import (
	"errors"
	"fmt"
	"net/url"
)

// MaxHeaderLength is Slack's ceiling for header block text
const MaxHeaderLength = 150

// Builder validation errors
var (
	ErrEmptyText  = errors.New("block text cannot be empty")
	ErrInvalidURL = errors.New("button url must be a well-formed absolute URL")
	ErrNoElements = errors.New("context block requires at least one element")
)

// Text is a Block Kit text object (plain_text or mrkdwn). Emoji is a
// pointer so that an explicit false still serializes: Slack treats a
// missing emoji key as true, and the caller's choice must survive the
// wire byte for byte.
type Text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji *bool  `json:"emoji,omitempty"`
}

// HeaderBlock is a large title line
type HeaderBlock struct {
	Type string `json:"type"`
	Text Text   `json:"text"`
}

// SectionBlock is the basic text container
type SectionBlock struct {
	Type string `json:"type"`
	Text Text   `json:"text"`
}

// DividerBlock renders a horizontal rule
type DividerBlock struct {
	Type string `json:"type"`
}

// ButtonElement is a single link button inside an actions block
type ButtonElement struct {
	Type     string `json:"type"`
	Text     Text   `json:"text"`
	URL      string `json:"url"`
	ActionID string `json:"action_id"`
}

// ActionsBlock groups interactive elements
type ActionsBlock struct {
	Type     string          `json:"type"`
	Elements []ButtonElement `json:"elements"`
}

// ContextBlock renders small gray text snippets
type ContextBlock struct {
	Type     string `json:"type"`
	Elements []Text `json:"elements"`
}

// Header builds a header block. Slack rejects header text longer than
// MaxHeaderLength characters, so the builder does too instead of
// silently truncating.
func Header(text string, emoji bool) (HeaderBlock, error) {
	if text == "" {
		return HeaderBlock{}, ErrEmptyText
	}
	if len([]rune(text)) > MaxHeaderLength {
		return HeaderBlock{}, fmt.Errorf("header text is %d characters, limit is %d", len([]rune(text)), MaxHeaderLength)
	}
	return HeaderBlock{
		Type: "header",
		Text: Text{Type: "plain_text", Text: text, Emoji: &emoji},
	}, nil
}

// Section builds a section block. Text is passed through verbatim;
// Slack's own renderer interprets the mrkdwn.
func Section(text string, markdown bool) SectionBlock {
	textType := "plain_text"
	if markdown {
		textType = "mrkdwn"
	}
	return SectionBlock{
		Type: "section",
		Text: Text{Type: textType, Text: text},
	}
}

// Divider builds a divider block
func Divider() DividerBlock {
	return DividerBlock{Type: "divider"}
}

// Button builds an actions block wrapping a single link button
func Button(text, rawURL, actionID string) (ActionsBlock, error) {
	if text == "" {
		return ActionsBlock{}, ErrEmptyText
	}
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ActionsBlock{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if actionID == "" {
		actionID = "button"
	}
	emoji := true
	return ActionsBlock{
		Type: "actions",
		Elements: []ButtonElement{
			{
				Type:     "button",
				Text:     Text{Type: "plain_text", Text: text, Emoji: &emoji},
				URL:      rawURL,
				ActionID: actionID,
			},
		},
	}, nil
}

// Context builds a context block from an ordered list of snippets
func Context(elements []string) (ContextBlock, error) {
	if len(elements) == 0 {
		return ContextBlock{}, ErrNoElements
	}
	texts := make([]Text, 0, len(elements))
	for _, el := range elements {
		texts = append(texts, Text{Type: "mrkdwn", Text: el})
	}
	return ContextBlock{Type: "context", Elements: texts}, nil
}
