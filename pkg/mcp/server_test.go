package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hemingway-community/slack-mcp/pkg/models"
)

func testServer(t *testing.T, ds DataSource) *Server {
	t.Helper()
	registry := NewRegistry()
	RegisterTools(registry, ds, 0)
	return NewServer("slack-mcp", "test", registry, zap.NewNop())
}

func testDataSource() DataSource {
	return DataSource{
		Table: &models.ExtractionTable{
			SourceFile: "/home/user/hemingway_export.json",
			Messages: []models.Message{
				{User: "Alice", Channel: "02-discussion", Text: "hello world", Timestamp: "1717200000.000100", ReplyCount: 1},
				{User: "Bob", Channel: "05-asks", Text: "need help", Timestamp: "1717240000.000200"},
			},
			Members: []models.Member{
				{Name: "Carol", JoinedAt: "1717200000"},
			},
		},
	}
}

func dispatch(t *testing.T, s *Server, raw string) Response {
	t.Helper()
	data := s.Dispatch([]byte(raw))
	if data == nil {
		t.Fatal("Dispatch() returned nil for a request with an id")
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return resp
}

func callResult(t *testing.T, resp Response) CallToolResult {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected protocol error: %+v", resp.Error)
	}
	var result CallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to unmarshal tool result: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Fatalf("unexpected content shape: %+v", result.Content)
	}
	return result
}

func TestDispatchInitialize(t *testing.T) {
	s := testServer(t, testDataSource())

	resp := dispatch(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`)
	if resp.Error != nil {
		t.Fatalf("initialize error: %+v", resp.Error)
	}

	var result struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to unmarshal initialize result: %v", err)
	}
	if result.ProtocolVersion != ProtocolVersion {
		t.Errorf("protocolVersion = %s, want %s", result.ProtocolVersion, ProtocolVersion)
	}
	if result.ServerInfo.Name != "slack-mcp" {
		t.Errorf("serverInfo.name = %s", result.ServerInfo.Name)
	}
}

func TestDispatchToolsList(t *testing.T) {
	s := testServer(t, testDataSource())

	resp := dispatch(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	if resp.Error != nil {
		t.Fatalf("tools/list error: %+v", resp.Error)
	}

	var result listToolsResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to unmarshal tools/list result: %v", err)
	}

	want := []string{
		"query_messages", "get_new_members", "get_channel_stats", "get_extraction_info",
		"build_header", "build_section", "build_divider", "build_button", "build_context",
	}
	if len(result.Tools) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(result.Tools))
	}
	for i, name := range want {
		if result.Tools[i].Name != name {
			t.Errorf("tool %d = %s, want %s", i, result.Tools[i].Name, name)
		}
		if len(result.Tools[i].InputSchema) == 0 {
			t.Errorf("tool %s has no input schema", name)
		}
	}
}

func TestDispatchQueryMessages(t *testing.T) {
	s := testServer(t, testDataSource())

	resp := dispatch(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"query_messages","arguments":{"channel":"discussion"}}}`)
	result := callResult(t, resp)
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content[0].Text)
	}

	var messages []messageResult
	if err := json.Unmarshal([]byte(result.Content[0].Text), &messages); err != nil {
		t.Fatalf("tool output is not valid JSON: %v", err)
	}
	if len(messages) != 1 || messages[0].User != "Alice" {
		t.Errorf("unexpected query result: %+v", messages)
	}
}

func TestDispatchQueryMessagesDefaultLimit(t *testing.T) {
	table := &models.ExtractionTable{SourceFile: "/home/user/hemingway_export.json"}
	for i := 0; i < 60; i++ {
		table.Messages = append(table.Messages, models.Message{
			User:      "Alice",
			Channel:   "general",
			Timestamp: fmt.Sprintf("%d", 1717200000+i),
		})
	}
	s := testServer(t, DataSource{Table: table})

	// Without an explicit limit the tool caps at the default of 50
	resp := dispatch(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"query_messages","arguments":{}}}`)
	result := callResult(t, resp)
	var messages []messageResult
	if err := json.Unmarshal([]byte(result.Content[0].Text), &messages); err != nil {
		t.Fatalf("tool output is not valid JSON: %v", err)
	}
	if len(messages) != 50 {
		t.Errorf("expected default limit of 50 messages, got %d", len(messages))
	}

	// An explicit limit wins over the default
	resp = dispatch(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"query_messages","arguments":{"limit":60}}}`)
	result = callResult(t, resp)
	if err := json.Unmarshal([]byte(result.Content[0].Text), &messages); err != nil {
		t.Fatalf("tool output is not valid JSON: %v", err)
	}
	if len(messages) != 60 {
		t.Errorf("expected all 60 messages with explicit limit, got %d", len(messages))
	}
}

func TestDispatchToolValidationError(t *testing.T) {
	s := testServer(t, testDataSource())

	resp := dispatch(t, s, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"query_messages","arguments":{"from_date":"whenever"}}}`)
	result := callResult(t, resp)
	if !result.IsError {
		t.Fatal("expected isError result for a bad date")
	}
	if !strings.Contains(result.Content[0].Text, "date_from") {
		t.Errorf("error text %q does not name the bad field", result.Content[0].Text)
	}
}

func TestDispatchBuildHeader(t *testing.T) {
	s := testServer(t, testDataSource())

	resp := dispatch(t, s, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"build_header","arguments":{"text":"Weekly Digest"}}}`)
	result := callResult(t, resp)
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content[0].Text)
	}

	var block struct {
		Type string `json:"type"`
		Text struct {
			Type  string `json:"type"`
			Text  string `json:"text"`
			Emoji bool   `json:"emoji"`
		} `json:"text"`
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), &block); err != nil {
		t.Fatalf("tool output is not valid JSON: %v", err)
	}
	if block.Type != "header" || block.Text.Type != "plain_text" || block.Text.Text != "Weekly Digest" || !block.Text.Emoji {
		t.Errorf("unexpected header block: %+v", block)
	}

	resp = dispatch(t, s, `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"build_header","arguments":{"text":"Weekly Digest","emoji":false}}}`)
	result = callResult(t, resp)
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content[0].Text)
	}
	// An explicit false must reach the wire; Slack reads a missing key as true.
	if !strings.Contains(result.Content[0].Text, `"emoji": false`) {
		t.Errorf("header output %s does not carry emoji false", result.Content[0].Text)
	}

	over := strings.Repeat("x", 151)
	resp = dispatch(t, s, `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"build_header","arguments":{"text":"`+over+`"}}}`)
	result = callResult(t, resp)
	if !result.IsError {
		t.Error("expected isError result for over-length header")
	}
}

func TestDispatchNoData(t *testing.T) {
	s := testServer(t, DataSource{Reason: "No Slack extraction data found."})

	for _, tool := range []string{"query_messages", "get_new_members", "get_channel_stats", "get_extraction_info"} {
		t.Run(tool, func(t *testing.T) {
			resp := dispatch(t, s, `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"`+tool+`","arguments":{}}}`)
			result := callResult(t, resp)
			if result.IsError {
				t.Fatalf("no-data must be a result, not an error: %s", result.Content[0].Text)
			}

			var noData NoDataResult
			if err := json.Unmarshal([]byte(result.Content[0].Text), &noData); err != nil {
				t.Fatalf("tool output is not valid JSON: %v", err)
			}
			if noData.Available {
				t.Error("expected available=false")
			}
			if noData.Reason == "" {
				t.Error("expected a reason")
			}
		})
	}

	// Block Kit tools keep working without data
	resp := dispatch(t, s, `{"jsonrpc":"2.0","id":8,"method":"tools/call","params":{"name":"build_divider","arguments":{}}}`)
	result := callResult(t, resp)
	if result.IsError {
		t.Errorf("build_divider must work without data: %s", result.Content[0].Text)
	}
}

func TestDispatchErrors(t *testing.T) {
	s := testServer(t, testDataSource())

	tests := []struct {
		name     string
		raw      string
		wantCode int
	}{
		{
			name:     "Unknown method",
			raw:      `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`,
			wantCode: CodeMethodNotFound,
		},
		{
			name:     "Unknown tool",
			raw:      `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"nope","arguments":{}}}`,
			wantCode: CodeInvalidParams,
		},
		{
			name:     "Malformed JSON",
			raw:      `{"jsonrpc":`,
			wantCode: CodeParseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := dispatch(t, s, tt.raw)
			if resp.Error == nil {
				t.Fatal("expected a protocol error")
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("error code = %d, want %d", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestDispatchNotification(t *testing.T) {
	s := testServer(t, testDataSource())

	if resp := s.Dispatch([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)); resp != nil {
		t.Errorf("notification must get no response, got %s", resp)
	}
}

func TestRunStdioSession(t *testing.T) {
	s := testServer(t, testDataSource())

	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n" +
			`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"get_extraction_info","arguments":{}}}` + "\n")
	var out bytes.Buffer

	if err := s.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 response lines (notification is silent), got %d", len(lines))
	}

	var second Response
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("second response is not valid JSON: %v", err)
	}
	if string(second.ID) != "2" {
		t.Errorf("second response id = %s, want 2", second.ID)
	}

	result := callResult(t, second)
	if !strings.Contains(result.Content[0].Text, "hemingway_export.json") {
		t.Errorf("extraction info does not report the source file: %s", result.Content[0].Text)
	}
}

func TestRegistryReplacesByName(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{Name: "t", Handler: func(json.RawMessage) (any, error) { return "first", nil }})
	r.Register(Tool{Name: "t", Handler: func(json.RawMessage) (any, error) { return "second", nil }})

	if len(r.Schemas()) != 1 {
		t.Fatalf("expected 1 tool after re-registration, got %d", len(r.Schemas()))
	}
	got, err := r.Call("t", nil)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "second" {
		t.Errorf("Call() = %v, want second", got)
	}
}
