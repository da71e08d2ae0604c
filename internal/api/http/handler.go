package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/Zereker/nlu/internal/domain"
	"github.com/Zereker/nlu/pkg/log"
)

// Robot 问答引擎
type Robot interface {
	Search(ctx context.Context, userID, question string) domain.MatchResult
	Configure(ctx context.Context, userID, content string) (*domain.ConfigResult, error)
	Stages() []string
}

// Handler handles HTTP API requests
type Handler struct {
	logger *slog.Logger
	robot  Robot
}

// NewHandler creates a new HTTP handler
func NewHandler(robot Robot) *Handler {
	return &Handler{
		logger: log.Logger("http.handler"),
		robot:  robot,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AskRequest 与 TCP 帧字段一致
type AskRequest struct {
	UserID     string `json:"userid"`
	AskContent string `json:"ask_content"`
}

// ConfigRequest 与 TCP 帧字段一致
type ConfigRequest struct {
	UserID        string `json:"userid"`
	ConfigContent string `json:"config_content"`
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(r route.IRoutes) {
	r.POST("/api/v1/ask", h.Ask)
	r.POST("/api/v1/config", h.Config)
	r.GET("/api/v1/topics", h.Topics)

	r.GET("/health", h.Health)
	r.GET("/api/v1/health", h.Health)
}

// Ask handles POST /api/v1/ask
func (h *Handler) Ask(ctx context.Context, c *app.RequestContext) {
	var req AskRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		h.writeError(c, consts.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if strings.TrimSpace(req.AskContent) == "" {
		h.writeError(c, consts.StatusBadRequest, "ask_content is required")
		return
	}

	c.JSON(consts.StatusOK, Response{
		Success: true,
		Data:    h.robot.Search(ctx, req.UserID, req.AskContent),
	})
}

// Config handles POST /api/v1/config
func (h *Handler) Config(ctx context.Context, c *app.RequestContext) {
	var req ConfigRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		h.writeError(c, consts.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	h.configure(ctx, c, req.UserID, req.ConfigContent)
}

// Topics handles GET /api/v1/topics?userid=
func (h *Handler) Topics(ctx context.Context, c *app.RequestContext) {
	h.configure(ctx, c, c.Query("userid"), "")
}

func (h *Handler) configure(ctx context.Context, c *app.RequestContext, userID, content string) {
	result, err := h.robot.Configure(ctx, userID, content)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidUser) {
			h.writeError(c, consts.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("configure failed", "user_id", userID, "error", err)
		h.writeError(c, consts.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(consts.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// Health handles GET /health
func (h *Handler) Health(_ context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, Response{
		Success: true,
		Data: map[string]any{
			"status": "healthy",
			"stages": h.robot.Stages(),
		},
	})
}

// writeError writes an error response
func (h *Handler) writeError(c *app.RequestContext, status int, message string) {
	c.JSON(status, Response{
		Success: false,
		Error:   message,
	})
}
