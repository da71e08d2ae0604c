package action

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Zereker/nlu/internal/domain"
	"github.com/Zereker/nlu/pkg/log"
	"github.com/Zereker/nlu/pkg/metrics"
)

// Options 机器人的依赖
type Options struct {
	Store     KnowledgeStore
	Tokenizer Tokenizer
	Sessions  SessionStore
	Enricher  Enricher     // 可选，为空时在线意图只支持点歌
	Recorder  Recorder     // 可选
	APIs      *APIRegistry // 可选，为空时使用内置函数
	Locations []string     // 导航地点表
}

// Robot 问答与知识库配置的统一入口
type Robot struct {
	logger    *slog.Logger
	tables    Tables
	store     KnowledgeStore
	sessions  SessionStore
	recorder  Recorder
	responder *Responder
	cascade   *domain.Cascade
}

// NewRobot 创建机器人并组装匹配级联
func NewRobot(tables Tables, opts Options) *Robot {
	apis := opts.APIs
	if apis == nil {
		apis = NewAPIRegistry()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	responder := NewResponder(tables, apis)
	finder := NewFinder(opts.Store, opts.Tokenizer, tables)
	navigator := NewSceneNavigator(opts.Store, responder, tables.LookupTimeout)

	// 级联顺序即优先级，第一个命中的阶段胜出
	cascade := domain.NewCascade()
	cascade.Use(NewSensitiveAction(opts.Tokenizer, responder))               // 1. 敏感词
	cascade.Use(NewAddressingAction(tables))                                 // 2. 称呼过滤
	cascade.Use(NewNavigationAction(opts.Locations))                         // 3. 导航
	cascade.Use(NewRepeatAction(tables, responder))                          // 4. 重复
	cascade.Use(NewEndSceneAction(tables))                                   // 5. 退出场景
	cascade.Use(NewSceneAction(tables, finder, navigator, responder))        // 6. 场景内
	cascade.Use(NewKnowledgeAction(finder, responder))                       // 7. 场景外
	cascade.Use(NewOnlineAction(tables, opts.Enricher, recorder, responder)) // 8. 在线语义

	return &Robot{
		logger:    log.Logger("robot"),
		tables:    tables,
		store:     opts.Store,
		sessions:  opts.Sessions,
		recorder:  recorder,
		responder: responder,
		cascade:   cascade,
	}
}

// Stages 级联阶段名
func (r *Robot) Stages() []string {
	return r.cascade.Stages()
}

// Search 回答一个问题。总是返回一个可序列化的应答，内部错误被降级为兜底应答。
func (r *Robot) Search(ctx context.Context, userID, question string) domain.MatchResult {
	start := time.Now()

	user := r.resolveUser(ctx, userID)
	topics := r.userTopics(ctx, user.UserID)

	sessionKey := userID
	if sessionKey == "" {
		sessionKey = user.UserID
	}

	var qc *domain.QueryContext
	r.sessions.Do(sessionKey, func(s *domain.Session) {
		qc = domain.NewQueryContext(ctx, user.UserID, question)
		qc.User = user
		qc.Session = s
		qc.Topics = topics

		r.cascade.Run(qc)

		if qc.ResolvedBy == "" {
			qc.Resolve("default", r.responder.DoNotKnow(qc))
		}
	})

	result := qc.Result
	outcome := outcomeOf(result)

	metrics.SearchTotal.WithLabelValues(qc.ResolvedBy, outcome).Inc()
	metrics.SearchSeconds.WithLabelValues(qc.ResolvedBy).Observe(time.Since(start).Seconds())

	if result.Matched() {
		if err := r.recorder.RecordTurn(ctx, sessionKey, qc.ResolvedBy, result); err != nil {
			r.logger.Warn("record turn failed", "user_id", sessionKey, "error", err)
		}
	}

	strategy, _ := qc.Get(metaStrategy)
	r.logger.Info("search",
		"user_id", sessionKey,
		"question", question,
		"stage", qc.ResolvedBy,
		"strategy", strategy,
		"outcome", outcome,
		"name", result.Name,
		"context", result.Context,
		"degraded", qc.Degraded,
		"duration", time.Since(start),
	)

	return result
}

// Configure 查询或更新用户启用的知识库。
// content 为空时返回所有可配置的知识库；否则以空白分隔的名字为启用列表，其余全部禁用，返回新的话题列表。
func (r *Robot) Configure(ctx context.Context, userID, content string) (*domain.ConfigResult, error) {
	if strings.TrimSpace(userID) == "" {
		metrics.ConfigTotal.WithLabelValues("invalid", "error").Inc()
		return nil, domain.ErrInvalidUser
	}

	user := r.resolveUser(ctx, userID)

	names := strings.Fields(content)
	if len(names) == 0 {
		return r.listTopics(ctx, user.UserID)
	}
	return r.selectTopics(ctx, user.UserID, names)
}

func (r *Robot) listTopics(ctx context.Context, userID string) (*domain.ConfigResult, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	databases, err := r.store.ListTopicSelections(ctx, userID)
	if err != nil {
		metrics.ConfigTotal.WithLabelValues("list", "error").Inc()
		return nil, errors.Wrap(err, "list topic selections")
	}

	metrics.ConfigTotal.WithLabelValues("list", "ok").Inc()
	return &domain.ConfigResult{Listing: true, Databases: databases}, nil
}

func (r *Robot) selectTopics(ctx context.Context, userID string, names []string) (*domain.ConfigResult, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	all, err := r.store.ListAllTopics(ctx)
	if err != nil {
		metrics.ConfigTotal.WithLabelValues("update", "error").Inc()
		return nil, errors.Wrap(err, "list all topics")
	}

	selections := make(map[string]bool, len(all)+len(names))
	for _, name := range all {
		selections[name] = false
	}
	for _, name := range names {
		selections[name] = true
	}

	if err := r.store.SetTopicSelection(ctx, userID, selections); err != nil {
		metrics.ConfigTotal.WithLabelValues("update", "error").Inc()
		return nil, errors.Wrap(err, "set topic selection")
	}

	topics, err := r.store.GetUserTopics(ctx, userID)
	if err != nil {
		metrics.ConfigTotal.WithLabelValues("update", "error").Inc()
		return nil, errors.Wrap(err, "get user topics")
	}

	r.logger.Info("topics configured", "user_id", userID, "selected", names, "topics", topics)
	metrics.ConfigTotal.WithLabelValues("update", "ok").Inc()
	return &domain.ConfigResult{Topics: topics}, nil
}

// resolveUser 查找用户配置，未知用户回落到默认用户，知识库不可用时使用内置配置
func (r *Robot) resolveUser(ctx context.Context, userID string) domain.User {
	for _, id := range []string{userID, r.tables.DefaultUser} {
		if id == "" {
			continue
		}

		lookupCtx, cancel := r.withTimeout(ctx)
		user, err := r.store.GetUser(lookupCtx, id)
		cancel()
		if err != nil {
			r.logger.Warn("get user failed", "user_id", id, "error", err)
			break
		}
		if user == nil {
			continue
		}

		if id != userID {
			r.logger.Warn("unknown user, using default", "user_id", userID, "default", id)
		}
		return r.withFallback(*user)
	}

	return r.tables.Fallback
}

func (r *Robot) withFallback(user domain.User) domain.User {
	if user.RobotName == "" {
		user.RobotName = r.tables.Fallback.RobotName
	}
	if user.ErrorPage == "" {
		user.ErrorPage = r.tables.Fallback.ErrorPage
	}
	return user
}

func (r *Robot) userTopics(ctx context.Context, userID string) []string {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	topics, err := r.store.GetUserTopics(ctx, userID)
	if err != nil {
		r.logger.Warn("get user topics failed", "user_id", userID, "error", err)
		return nil
	}
	return topics
}

func (r *Robot) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.tables.LookupTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.tables.LookupTimeout)
}

func outcomeOf(result domain.MatchResult) string {
	switch {
	case result.Valid == domain.ValidDegraded:
		return "degraded"
	case result.Matched():
		return "matched"
	default:
		return "miss"
	}
}
