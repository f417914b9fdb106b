package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ironsheep/puzzle-match/internal/history"
	"github.com/ironsheep/puzzle-match/internal/imaging"
	"github.com/ironsheep/puzzle-match/internal/logging"
	"github.com/ironsheep/puzzle-match/internal/match"
	"github.com/ironsheep/puzzle-match/internal/pipeline"
)

// ServerName and ServerVersion are reported in the initialize handshake.
const (
	ServerName    = "puzzle-match"
	ServerVersion = "0.1.0"
)

// maxRequestBytes bounds a single JSON-RPC line.
const maxRequestBytes = 1024 * 1024

// Options configures a Server. Zero values select the defaults.
type Options struct {
	// Match holds the defaults for puzzle_match; per-call arguments override
	// individual fields.
	Match match.Options

	// ScanStride is the default puzzle_scan stride.
	ScanStride int

	// Logger receives diagnostics. It must not write to stdout.
	Logger *slog.Logger

	// History enables run recording and the puzzle_history tool.
	History *history.Store
}

// Server handles MCP protocol communication
type Server struct {
	cache      *imaging.ImageCache
	runner     *pipeline.Runner
	matchOpts  match.Options
	scanStride int
	logger     *slog.Logger
	history    *history.Store

	// emit writes a notification to the current client; nil outside Serve.
	emit func(MCPNotification)
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// New creates a new MCP server instance
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.ScanStride <= 0 {
		opts.ScanStride = match.DefaultStride
	}
	if opts.Match == (match.Options{}) {
		opts.Match = match.DefaultOptions()
	}
	cache := imaging.NewImageCache()
	return &Server{
		cache:      cache,
		runner:     pipeline.NewRunner(cache, opts.History, opts.Logger),
		matchOpts:  opts.Match,
		scanStride: opts.ScanStride,
		logger:     opts.Logger,
		history:    opts.History,
	}
}

// Run serves MCP over stdin and stdout until stdin closes.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses to w.
// Requests are handled sequentially. It returns when r is exhausted or ctx is
// done.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxRequestBytes)

	encoder := json.NewEncoder(w)
	s.emit = func(n MCPNotification) {
		if err := encoder.Encode(n); err != nil {
			s.logger.Error("failed to encode notification", "error", err)
		}
	}
	defer func() { s.emit = nil }()

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("failed to parse request", "error", err)
			if err := encoder.Encode(s.errorResponse(nil, -32700, "Parse error", err.Error())); err != nil {
				s.logger.Error("failed to encode response", "error", err)
			}
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.logger.Error("failed to encode response", "error", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	s.logger.Debug("request", "method", req.Method, "id", req.ID)
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    ServerName,
				"version": ServerVersion,
			},
		},
	}
}
