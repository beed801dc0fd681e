package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Server speaks newline-delimited JSON-RPC 2.0 over a reader/writer
// pair, normally stdin/stdout. All logging goes to the supplied zap
// logger (stderr in practice) so the protocol stream stays clean.
type Server struct {
	name     string
	version  string
	registry *Registry
	logger   *zap.Logger

	writeMu sync.Mutex
}

// NewServer creates a tool server around a registry
func NewServer(name, version string, registry *Registry, logger *zap.Logger) *Server {
	return &Server{
		name:     name,
		version:  version,
		registry: registry,
		logger:   logger,
	}
}

// Run reads requests line by line from in and writes responses to out
// until in is exhausted or ctx is canceled. Requests are handled
// sequentially in arrival order. Cancellation takes effect between
// requests; a blocked read ends when the host closes the input stream.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if resp := s.Dispatch(line); resp != nil {
			if err := s.writeMessage(out, resp); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request stream: %w", err)
	}
	return nil
}

// Dispatch handles one raw JSON-RPC message and returns the marshaled
// response, or nil when the message was a notification. It is safe for
// concurrent use: the registry and the data behind it are read-only.
func (s *Server) Dispatch(raw []byte) []byte {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		s.logger.Warn("unparseable request", zap.Error(err))
		return marshalResponse(errorResponse(nil, CodeParseError, "parse error"))
	}

	if req.ID == nil {
		// Notifications get no response
		s.logger.Debug("notification received", zap.String("method", req.Method))
		return nil
	}

	s.logger.Debug("request received", zap.String("method", req.Method))

	switch req.Method {
	case "initialize":
		return marshalResponse(s.handleInitialize(req))
	case "ping":
		return marshalResponse(resultResponse(req.ID, map[string]any{}))
	case "tools/list":
		return marshalResponse(resultResponse(req.ID, listToolsResult{Tools: s.registry.Schemas()}))
	case "tools/call":
		return marshalResponse(s.handleCallTool(req))
	default:
		return marshalResponse(errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method)))
	}
}

func (s *Server) handleInitialize(req Request) Response {
	s.logger.Info("session initialized",
		zap.String("server", s.name),
		zap.String("protocol", ProtocolVersion))

	return resultResponse(req.ID, initializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]any{
			"tools": map[string]any{},
		},
		ServerInfo: serverInfo{Name: s.name, Version: s.version},
	})
}

func (s *Server) handleCallTool(req Request) Response {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, fmt.Sprintf("invalid tools/call params: %v", err))
	}

	if !s.registry.Has(params.Name) {
		return errorResponse(req.ID, CodeInvalidParams, fmt.Sprintf("unknown tool: %s", params.Name))
	}

	result, err := s.registry.Call(params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool call failed",
			zap.String("tool", params.Name),
			zap.Error(err))
		return resultResponse(req.ID, CallToolResult{
			Content: []TextContent{{Type: "text", Text: fmt.Sprintf("Error: %v", err)}},
			IsError: true,
		})
	}

	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errorResponse(req.ID, CodeInternalError, fmt.Sprintf("failed to encode result: %v", err))
	}

	s.logger.Debug("tool call succeeded", zap.String("tool", params.Name))
	return resultResponse(req.ID, CallToolResult{
		Content: []TextContent{{Type: "text", Text: string(text)}},
	})
}

func (s *Server) writeMessage(out io.Writer, msg []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := out.Write(append(msg, '\n'))
	return err
}

func resultResponse(id json.RawMessage, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, CodeInternalError, fmt.Sprintf("failed to encode result: %v", err))
	}
	return Response{JSONRPC: "2.0", ID: id, Result: data}
}

func errorResponse(id json.RawMessage, code int, message string) Response {
	if id == nil {
		id = json.RawMessage("null")
	}
	return Response{JSONRPC: "2.0", ID: id, Error: &ErrorObject{Code: code, Message: message}}
}

func marshalResponse(resp Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		// A response we built ourselves should always marshal
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	return data
}
