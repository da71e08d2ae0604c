package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Zereker/nlu/internal/domain"
)

// Robot 问答引擎
type Robot interface {
	Search(ctx context.Context, userID, question string) domain.MatchResult
	Configure(ctx context.Context, userID, content string) (*domain.ConfigResult, error)
}

// Handler handles MCP tool calls
type Handler struct {
	robot Robot
}

// NewHandler creates a new MCP handler
func NewHandler(robot Robot) *Handler {
	return &Handler{
		robot: robot,
	}
}

// ToolCallRequest represents an MCP tool call request
type ToolCallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCallResponse represents an MCP tool call response
type ToolCallResponse struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock represents a content block in the response
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolArgs struct {
	UserID   string `json:"userid"`
	Question string `json:"question"`
	Topics   string `json:"topics"`
}

// HandleToolCall handles an MCP tool call
func (h *Handler) HandleToolCall(ctx context.Context, req ToolCallRequest) ToolCallResponse {
	var args toolArgs
	if len(req.Arguments) > 0 {
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			return errorResponse(fmt.Sprintf("invalid arguments: %v", err))
		}
	}

	switch req.Name {
	case ToolAsk:
		return h.handleAsk(ctx, args)
	case ToolTopics:
		return h.handleConfigure(ctx, args.UserID, "")
	case ToolConfigure:
		if strings.TrimSpace(args.Topics) == "" {
			return errorResponse("topics is required")
		}
		return h.handleConfigure(ctx, args.UserID, args.Topics)
	default:
		return errorResponse(fmt.Sprintf("unknown tool: %s", req.Name))
	}
}

func (h *Handler) handleAsk(ctx context.Context, args toolArgs) ToolCallResponse {
	if strings.TrimSpace(args.Question) == "" {
		return errorResponse("question is required")
	}

	result := h.robot.Search(ctx, args.UserID, args.Question)
	return successResponse(formatResult(result))
}

func (h *Handler) handleConfigure(ctx context.Context, userID, content string) ToolCallResponse {
	result, err := h.robot.Configure(ctx, userID, content)
	if err != nil {
		return errorResponse(fmt.Sprintf("configure failed: %v", err))
	}

	if result.Listing {
		if len(result.Databases) == 0 {
			return successResponse("没有可配置的知识库。")
		}

		parts := make([]string, 0, len(result.Databases))
		for _, db := range result.Databases {
			mark := " "
			if db.Selected == 1 {
				mark = "x"
			}
			parts = append(parts, fmt.Sprintf("- [%s] %s", mark, db.Name))
		}
		return successResponse(strings.Join(parts, "\n"))
	}

	if len(result.Topics) == 0 {
		return successResponse("当前没有启用的话题。")
	}
	return successResponse("已启用: " + strings.Join(result.Topics, ", "))
}

// formatResult 答案正文在前，其余字段以列表附后
func formatResult(r domain.MatchResult) string {
	if r.Content == "" && r.Name == "" {
		return "(无应答)"
	}

	parts := []string{r.Content}
	if r.Context != "" {
		parts = append(parts, fmt.Sprintf("- 话题: %s", r.Context))
	}
	if r.TID.IsSet() {
		parts = append(parts, fmt.Sprintf("- 步骤: %s", r.TID))
	}
	if r.URL != "" {
		parts = append(parts, fmt.Sprintf("- 链接: %s", r.URL))
	}
	if r.Behavior != 0 {
		parts = append(parts, fmt.Sprintf("- 行为: 0x%04X", r.Behavior))
	}
	return strings.Join(parts, "\n")
}

// Helper functions

func successResponse(text string) ToolCallResponse {
	return ToolCallResponse{
		Content: []ContentBlock{
			{Type: "text", Text: text},
		},
	}
}

func errorResponse(text string) ToolCallResponse {
	return ToolCallResponse{
		Content: []ContentBlock{
			{Type: "text", Text: text},
		},
		IsError: true,
	}
}
