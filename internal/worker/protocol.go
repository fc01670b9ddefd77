// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package worker

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Wire format: one JSON-RPC 2.0 message per line, encoded with the MCP
// SDK's jsonrpc codec. The orchestrator writes one request to the worker's
// stdin and reads one response from stdout. Payloads are MCP tool types:
// tools/call carries mcp.CallToolParams and answers with mcp.CallToolResult,
// whose single text content is the JSON-encoded tool output.

const (
	MethodInitialize = "initialize"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"

	protocolVersion = "2024-11-05"
)

// callID is the id of the single request a one-shot client sends.
var callID, _ = jsonrpc.MakeID(float64(1))

// decodeRequest parses one request line. A line without a "jsonrpc" member
// is read as version 2.0; any other version is rejected. A failure carries
// the code to answer with.
func decodeRequest(line []byte) (*jsonrpc.Request, *jsonrpc.Error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, rpcError(jsonrpc.CodeParseError, "parse error: %v", err)
	}
	if fields == nil {
		return nil, rpcError(jsonrpc.CodeInvalidRequest, "request is not an object")
	}
	if _, ok := fields["jsonrpc"]; !ok {
		fields["jsonrpc"] = json.RawMessage(`"2.0"`)
		normalized, err := json.Marshal(fields)
		if err != nil {
			return nil, rpcError(jsonrpc.CodeParseError, "parse error: %v", err)
		}
		line = normalized
	}

	msg, err := jsonrpc.DecodeMessage(line)
	if err != nil {
		return nil, rpcError(jsonrpc.CodeInvalidRequest, "invalid request: %v", err)
	}
	req, ok := msg.(*jsonrpc.Request)
	if !ok {
		return nil, rpcError(jsonrpc.CodeInvalidRequest, "expected a request, got a response")
	}
	return req, nil
}

// decodeResponse parses one response line.
func decodeResponse(line []byte) (*jsonrpc.Response, error) {
	msg, err := jsonrpc.DecodeMessage(line)
	if err != nil {
		return nil, fmt.Errorf("malformed response line: %w", err)
	}
	resp, ok := msg.(*jsonrpc.Response)
	if !ok {
		return nil, errors.New("malformed response line: got a request")
	}
	return resp, nil
}

func rpcError(code int64, format string, args ...any) *jsonrpc.Error {
	return &jsonrpc.Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func errorResponse(id jsonrpc.ID, err *jsonrpc.Error) *jsonrpc.Response {
	return &jsonrpc.Response{ID: id, Error: err}
}

// textResult wraps text in a single-content tool result.
func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}
