// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Handler runs a tool. args is the raw "arguments" object; the returned
// value is JSON-encoded into the response text.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is a named handler served by a worker.
type Tool struct {
	Name        string
	Description string
	Handler     Handler
}

// Server answers requests for a set of tools.
type Server struct {
	info   mcp.Implementation
	tools  map[string]Tool
	order  []string
	logger *slog.Logger
}

// NewServer creates a server with no tools.
func NewServer(name, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		info:   mcp.Implementation{Name: name, Version: version},
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds a tool. A tool registered twice replaces the first.
func (s *Server) Register(t Tool) {
	if _, ok := s.tools[t.Name]; !ok {
		s.order = append(s.order, t.Name)
	}
	s.tools[t.Name] = t
}

// Serve reads request lines from r until EOF and writes one response line
// per request to w. A request without an id is still answered, with the id
// omitted; only notifications/* messages go unanswered. A worker spawned
// for a single call sees one request and exits when the orchestrator
// closes stdin.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)

	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var resp *jsonrpc.Response
		req, rerr := decodeRequest(line)
		if rerr != nil {
			resp = errorResponse(jsonrpc.ID{}, rerr)
		} else if !req.IsCall() && strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Debug("ignoring notification", "method", req.Method)
			continue
		} else {
			resp = s.Handle(ctx, req)
		}

		out, err := jsonrpc.EncodeMessage(resp)
		if err != nil {
			return fmt.Errorf("encoding response: %w", err)
		}
		if _, err := w.Write(append(out, '\n')); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading request: %w", err)
	}
	return nil
}

// Handle dispatches a single request.
func (s *Server) Handle(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	switch req.Method {
	case MethodInitialize:
		info := s.info
		return s.reply(req.ID, &mcp.InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      &info,
			Capabilities:    &mcp.ServerCapabilities{Tools: &mcp.ToolCapabilities{}},
		})

	case MethodToolsList:
		tools := make([]*mcp.Tool, 0, len(s.order))
		for _, name := range s.order {
			tools = append(tools, &mcp.Tool{
				Name:        name,
				Description: s.tools[name].Description,
				InputSchema: map[string]any{"type": "object"},
			})
		}
		return s.reply(req.ID, &mcp.ListToolsResult{Tools: tools})

	case MethodToolsCall:
		return s.call(ctx, req)
	}
	return errorResponse(req.ID, rpcError(jsonrpc.CodeMethodNotFound, "unknown method %q", req.Method))
}

// call runs a tool. Failures to find or invoke the tool are protocol
// errors; an error returned by the tool itself is an IsError result.
func (s *Server) call(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	var p mcp.CallToolParamsRaw
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errorResponse(req.ID, rpcError(jsonrpc.CodeInvalidParams, "invalid params: %v", err))
	}
	tool, ok := s.tools[p.Name]
	if !ok {
		return errorResponse(req.ID, rpcError(jsonrpc.CodeInvalidParams, "unknown tool %q", p.Name))
	}
	args := p.Arguments
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}

	out, err := tool.Handler(ctx, args)
	if err != nil {
		s.logger.Error("tool failed", "tool", p.Name, "error", err)
		return s.reply(req.ID, textResult(err.Error(), true))
	}

	text, err := json.Marshal(out)
	if err != nil {
		return s.reply(req.ID, textResult(fmt.Sprintf("encoding result: %v", err), true))
	}
	return s.reply(req.ID, textResult(string(text), false))
}

func (s *Server) reply(id jsonrpc.ID, result any) *jsonrpc.Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, rpcError(jsonrpc.CodeInternalError, "encoding result: %v", err))
	}
	return &jsonrpc.Response{ID: id, Result: raw}
}
