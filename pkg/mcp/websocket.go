package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local tool server; hosts connect from localhost
		return true
	},
}

// HTTPServer exposes the same JSON-RPC tool protocol over a WebSocket
// endpoint, one request per text frame, for hosts that cannot spawn a
// stdio subprocess. Concurrent connections are safe: the registry and
// the extraction table behind it are read-only.
type HTTPServer struct {
	server *Server
	logger *zap.Logger
	http   *http.Server
}

// NewHTTPServer wraps a tool server with a WebSocket transport on addr
func NewHTTPServer(addr string, server *Server, logger *zap.Logger) *HTTPServer {
	h := &HTTPServer{server: server, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/ws", h.handleWebSocket)

	h.http = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return h
}

// ListenAndServe blocks serving connections until Shutdown
func (h *HTTPServer) ListenAndServe() error {
	h.logger.Info("websocket transport listening", zap.String("addr", h.http.Addr))
	err := h.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server gracefully
func (h *HTTPServer) Shutdown(ctx context.Context) error {
	return h.http.Shutdown(ctx)
}

// handleHealth returns the health status of the server
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status":  "healthy",
		"service": "slack-mcp",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleWebSocket upgrades the connection and relays JSON-RPC
// messages, one per text frame
func (h *HTTPServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.New().String()
	logger := h.logger.With(zap.String("conn_id", connID))
	logger.Info("websocket client connected", zap.String("remote", r.RemoteAddr))

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		resp := h.server.Dispatch(message)
		if resp == nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, resp); err != nil {
			logger.Warn("websocket write error", zap.Error(err))
			break
		}
	}

	logger.Info("websocket client disconnected")
}
