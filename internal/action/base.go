package action

import (
	"log/slog"
	"math/rand/v2"

	"github.com/Zereker/nlu/internal/domain"
	"github.com/Zereker/nlu/pkg/log"
)

// BaseAction 提供阶段的公共能力
type BaseAction struct {
	name   string
	logger *slog.Logger
}

// NewBaseAction 创建 BaseAction
func NewBaseAction(name string) *BaseAction {
	return &BaseAction{
		name:   name,
		logger: log.Logger(name),
	}
}

// Name 返回阶段名
func (b *BaseAction) Name() string {
	return b.name
}

// ============================================================================
// Responder - 应答构造
// ============================================================================

// Responder 把知识条目渲染为应答，并生成各种兜底应答
type Responder struct {
	tables Tables
	apis   *APIRegistry
	intn   func(n int) int
	logger *slog.Logger
}

// NewResponder 创建 Responder
func NewResponder(tables Tables, apis *APIRegistry) *Responder {
	return &Responder{
		tables: tables,
		apis:   apis,
		intn:   rand.IntN,
		logger: log.Logger("responder"),
	}
}

// Build 由知识条目构造应答：name 与 content 经过用户模板，content/url 随机挑选一个候选。
// 条目带 api 时对 content 做后处理，失败时保留原内容。
func (r *Responder) Build(c *domain.QueryContext, e domain.KnowledgeEntry) domain.MatchResult {
	result := domain.NewResult(c.Question)
	result.Name = c.User.Format(e.Name)
	result.Content = c.User.Format(r.pick(e.Content))
	result.Context = e.Topic
	result.TID = e.TID
	result.URL = r.pick(e.URL)
	result.Behavior = int(e.Behavior)
	result.Parameter = e.Parameter
	result.Txt = e.Txt
	result.Img = e.Img
	result.Button = e.Button

	if e.API != "" && r.apis != nil {
		content, err := r.apis.Apply(c, e.API, result.Content, c.User)
		if err != nil {
			r.logger.Warn("api post-process failed", "api", e.API, "name", e.Name, "error", err)
		} else {
			result.Content = content
		}
	}

	return result
}

// Silent 空内容的不知道，用于敏感词、空记忆的重复指令等策略性短路
func (r *Responder) Silent(c *domain.QueryContext) domain.MatchResult {
	return domain.NewResult(c.Question)
}

// DoNotKnow 随机挑选一条模板化的兜底话术
func (r *Responder) DoNotKnow(c *domain.QueryContext) domain.MatchResult {
	result := domain.NewResult(c.Question)
	result.Content = c.User.Format(r.pick(r.tables.Fillers))
	return result
}

// ErrorPage 场景内的统一错误页
func (r *Responder) ErrorPage(c *domain.QueryContext) domain.MatchResult {
	result := domain.NewResult(c.Question)
	result.Content = c.User.ErrorPage
	result.Behavior = domain.BehaviorErrorPage
	result.Valid = domain.ValidDegraded
	return result
}

func (r *Responder) pick(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return items[r.intn(len(items))]
	}
}
