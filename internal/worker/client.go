// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package worker implements the one-shot MCP tool calls used to reach
// classification and summarization workers. The client spawns a fresh
// worker process per call, writes one JSON-RPC request line, and reads one
// response line; the server side answers requests for a registry of tools.
package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pdiddy/paper-search/internal/apperr"
	"github.com/pdiddy/paper-search/pkg/types"
)

const (
	defaultCommand = "paper-worker"
	defaultTimeout = 60 * time.Second

	// maxStderr caps how much worker stderr is quoted in errors.
	maxStderr = 2048
)

// executor abstracts process execution for testing.
type executor interface {
	Run(ctx context.Context, name string, args, env []string, stdin io.Reader, stdout, stderr io.Writer) error
}

// osExecutor is the production executor backed by os/exec. The process
// is killed when ctx is done.
type osExecutor struct{}

func (osExecutor) Run(ctx context.Context, name string, args, env []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = 2 * time.Second
	return cmd.Run()
}

// Client calls tools on one kind of worker.
type Client struct {
	name    string
	command string
	args    []string
	env     []string
	timeout time.Duration
	exec    executor
	logger  *slog.Logger
}

// NewClient returns a client that spawns cfg.Command with cfg.Args for
// every call. env entries ("KEY=value") are added to the worker's
// environment.
func NewClient(name string, cfg types.WorkerConfig, env []string, logger *slog.Logger) *Client {
	if cfg.Command == "" {
		cfg.Command = defaultCommand
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		name:    name,
		command: cfg.Command,
		args:    cfg.Args,
		env:     env,
		timeout: cfg.Timeout,
		exec:    osExecutor{},
		logger:  logger.With("worker", name),
	}
}

// Name returns the worker name used in logs and errors.
func (c *Client) Name() string { return c.name }

// Call invokes tool with args and decodes the tool's JSON result into out.
// out may be nil to discard the result. Every failure (spawn error,
// non-zero exit, timeout, malformed output, or an error response) is
// returned as an apperr.Worker error.
func (c *Client) Call(ctx context.Context, tool string, args, out any) error {
	op := c.name + "." + tool

	params, err := json.Marshal(&mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		return apperr.New(apperr.Worker, op, fmt.Errorf("encoding params: %w", err))
	}

	resp, err := c.roundTrip(ctx, op, MethodToolsCall, params)
	if err != nil {
		return err
	}

	var res mcp.CallToolResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		return apperr.New(apperr.Worker, op, fmt.Errorf("malformed tool result: %w", err))
	}
	if len(res.Content) == 0 {
		return apperr.Errorf(apperr.Worker, op, "response has no content")
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		return apperr.Errorf(apperr.Worker, op, "unsupported content type %T", res.Content[0])
	}
	if res.IsError {
		return apperr.Errorf(apperr.Worker, op, "tool error: %s", text.Text)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(text.Text), out); err != nil {
		return apperr.New(apperr.Worker, op, fmt.Errorf("decoding tool result: %w", err))
	}
	return nil
}

// ListTools asks the worker which tools it serves.
func (c *Client) ListTools(ctx context.Context) ([]*mcp.Tool, error) {
	op := c.name + "." + MethodToolsList
	resp, err := c.roundTrip(ctx, op, MethodToolsList, nil)
	if err != nil {
		return nil, err
	}
	var res mcp.ListToolsResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		return nil, apperr.New(apperr.Worker, op, fmt.Errorf("malformed tools list: %w", err))
	}
	return res.Tools, nil
}

// roundTrip spawns the worker, writes one request, and parses the first
// response line. The worker is killed if the call outlives the timeout.
func (c *Client) roundTrip(ctx context.Context, op, method string, params json.RawMessage) (*jsonrpc.Response, error) {
	line, err := jsonrpc.EncodeMessage(&jsonrpc.Request{ID: callID, Method: method, Params: params})
	if err != nil {
		return nil, apperr.New(apperr.Worker, op, fmt.Errorf("encoding request: %w", err))
	}
	line = append(line, '\n')

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	start := time.Now()
	runErr := c.exec.Run(callCtx, c.command, c.args, c.env, bytes.NewReader(line), &stdout, &stderr)
	elapsed := time.Since(start)

	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, apperr.Errorf(apperr.Worker, op, "timed out after %v", c.timeout)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if runErr != nil {
		return nil, apperr.New(apperr.Worker, op, fmt.Errorf("%w%s", runErr, stderrSuffix(stderr.String())))
	}

	c.logger.Debug("worker call finished", "op", op, "elapsed", elapsed)

	resp, err := firstResponse(&stdout)
	if err != nil {
		return nil, apperr.New(apperr.Worker, op, fmt.Errorf("%w%s", err, stderrSuffix(stderr.String())))
	}
	if resp.Error != nil {
		var werr *jsonrpc.Error
		if errors.As(resp.Error, &werr) {
			return nil, apperr.New(apperr.Worker, op, fmt.Errorf("worker error %d: %s", werr.Code, werr.Message))
		}
		return nil, apperr.New(apperr.Worker, op, fmt.Errorf("worker error: %w", resp.Error))
	}
	return resp, nil
}

func firstResponse(r io.Reader) (*jsonrpc.Response, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		return decodeResponse(line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return nil, errors.New("worker produced no response")
}

func stderrSuffix(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) > maxStderr {
		s = s[len(s)-maxStderr:]
	}
	return ": " + s
}
