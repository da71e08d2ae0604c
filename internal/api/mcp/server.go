package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Zereker/nlu/pkg/log"
)

const protocolVersion = "2024-11-05"

// JSON-RPC error codes
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Server 通过 stdio 以 MCP 工具的形式暴露问答机器人
type Server struct {
	logger  *slog.Logger
	handler *Handler
	info    serverInfo
	methods map[string]method
}

// ServerConfig contains server configuration
type ServerConfig struct {
	Name    string
	Version string
}

// method 返回 nil 表示通知，不写应答
type method func(ctx context.Context, req *request) *response

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      serverInfo `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type toolsListResult struct {
	Tools []Tool `json:"tools"`
}

// NewServer creates a new MCP server
func NewServer(robot Robot, config ServerConfig) *Server {
	s := &Server{
		logger:  log.Logger("mcp"),
		handler: NewHandler(robot),
		info:    serverInfo{Name: config.Name, Version: config.Version},
	}

	s.methods = map[string]method{
		"initialize":                s.initialize,
		"initialized":               s.notified,
		"notifications/initialized": s.notified,
		"tools/list":                s.toolsList,
		"tools/call":                s.toolsCall,
		"ping":                      s.ping,
	}
	return s
}

// RunStdio runs the MCP server using stdio transport
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, os.Stdin, os.Stdout)
}

// Run 逐行读取 JSON-RPC 消息直到 EOF 或 ctx 结束，每条消息的应答按顺序写出
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	s.logger.Info("starting stdio server", "name", s.info.Name, "version", s.info.Version)

	reader := bufio.NewReader(r)
	writer := bufio.NewWriter(w)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if werr := s.write(writer, s.serve(ctx, line)); werr != nil {
				return fmt.Errorf("write error: %w", werr)
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("stdin closed")
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
	}
}

// serve 处理一条消息，panic 转为内部错误
func (s *Server) serve(ctx context.Context, line []byte) (resp *response) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return failure(nil, codeParseError, "Parse error", err.Error())
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while handling message", "method", req.Method, "panic", r)
			resp = failure(req.ID, codeInternalError, "Internal error", fmt.Sprint(r))
		}
	}()

	m, ok := s.methods[req.Method]
	if !ok {
		return failure(req.ID, codeMethodNotFound, "Method not found", req.Method)
	}
	return m(ctx, &req)
}

func (s *Server) initialize(_ context.Context, req *request) *response {
	var params initializeParams
	if req.Params != nil {
		_ = json.Unmarshal(req.Params, &params)
	}

	s.logger.Info("initialize",
		"client", params.ClientInfo.Name,
		"clientVersion", params.ClientInfo.Version,
		"protocol", params.ProtocolVersion,
	)

	return success(req.ID, initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ServerInfo:      s.info,
	})
}

func (s *Server) notified(context.Context, *request) *response {
	s.logger.Info("initialized")
	return nil
}

func (s *Server) toolsList(_ context.Context, req *request) *response {
	return success(req.ID, toolsListResult{Tools: RobotTools})
}

func (s *Server) toolsCall(ctx context.Context, req *request) *response {
	var call ToolCallRequest
	if err := json.Unmarshal(req.Params, &call); err != nil {
		return failure(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	s.logger.Info("tools/call", "tool", call.Name)
	return success(req.ID, s.handler.HandleToolCall(ctx, call))
}

func (s *Server) ping(_ context.Context, req *request) *response {
	return success(req.ID, map[string]any{})
}

func (s *Server) write(w *bufio.Writer, resp *response) error {
	if resp == nil {
		return nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	if _, err := w.Write(append(data, '\n')); err != nil {
		return err
	}
	return w.Flush()
}

func success(id, result any) *response {
	return &response{JSONRPC: "2.0", ID: id, Result: result}
}

func failure(id any, code int, message string, data any) *response {
	return &response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message, Data: data},
	}
}
