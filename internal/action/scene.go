package action

import (
	"context"
	"slices"
	"time"

	"github.com/Zereker/nlu/internal/domain"
)

// ============================================================================
// SceneNavigator - 下一步跳转
// ============================================================================

// SceneNavigator 沿上一条应答按钮中的 next 链接找到场景的下一个节点
type SceneNavigator struct {
	store     KnowledgeStore
	responder *Responder
	timeout   time.Duration
}

func NewSceneNavigator(store KnowledgeStore, responder *Responder, timeout time.Duration) *SceneNavigator {
	return &SceneNavigator{store: store, responder: responder, timeout: timeout}
}

// ResolveNext 没有 next 链接或目标不存在时返回 nil
func (n *SceneNavigator) ResolveNext(c *domain.QueryContext, topic string, prev domain.MatchResult) (*domain.MatchResult, error) {
	button, err := domain.ParseButton(prev.Button)
	if err != nil || button.Next == nil {
		return nil, nil
	}

	tid, ok := button.Next.URL.TID()
	if !ok {
		return nil, nil
	}

	ctx := context.Context(c)
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(c, n.timeout)
		defer cancel()
	}

	entry, err := n.store.FindEntry(ctx, topic, tid, button.Next.Content)
	if err != nil || entry == nil {
		return nil, err
	}

	result := n.responder.Build(c, *entry)
	return &result, nil
}

// ============================================================================
// SceneAction - 场景内对话
// ============================================================================

// SceneAction 处理场景内的问题：上一步、下一步、当前场景内可达节点。
// 场景内任何匹配失败都返回错误页，不会落到后续阶段。
type SceneAction struct {
	*BaseAction
	tables    Tables
	finder    *Finder
	navigator *SceneNavigator
	responder *Responder
}

func NewSceneAction(tables Tables, finder *Finder, navigator *SceneNavigator, responder *Responder) *SceneAction {
	return &SceneAction{
		BaseAction: NewBaseAction("scene"),
		tables:     tables,
		finder:     finder,
		navigator:  navigator,
		responder:  responder,
	}
}

func (a *SceneAction) Handle(c *domain.QueryContext) {
	s := c.Session
	if !s.InScene {
		return
	}

	switch {
	case a.tables.IsPreviousStep(c.Question):
		a.previous(c)
	case a.tables.IsNextStep(c.Question):
		a.next(c)
	default:
		a.match(c)
	}
}

func (a *SceneAction) previous(c *domain.QueryContext) {
	if prev, ok := c.Session.StepBack(); ok {
		c.Resolve(a.name, prev)
		return
	}
	a.fail(c, domain.ErrSceneLinkBroken)
}

func (a *SceneAction) next(c *domain.QueryContext) {
	s := c.Session

	last, ok := s.Answers.Last()
	if !ok {
		a.fail(c, domain.ErrSceneLinkBroken)
		return
	}

	result, err := a.navigator.ResolveNext(c, s.Topic, last)
	if err != nil {
		a.fail(c, err)
		return
	}
	if result == nil {
		a.fail(c, domain.ErrSceneLinkBroken)
		return
	}

	s.Advance(last, *result)
	c.Resolve(a.name, *result)
}

func (a *SceneAction) match(c *domain.QueryContext) {
	s := c.Session

	if !slices.Contains(c.Topics, s.Topic) {
		a.logger.Debug("scene topic disabled", "user_id", c.UserID, "topic", s.Topic)
		a.fail(c, domain.ErrSceneLinkBroken)
		return
	}

	hit, err := a.finder.FindInScene(c, []string{s.Topic})
	if err != nil {
		a.fail(c, err)
		return
	}
	if hit == nil || !hit.Entry.TID.IsSet() {
		a.fail(c, domain.ErrSceneLinkBroken)
		return
	}

	last, ok := s.Answers.Last()
	if !ok {
		a.fail(c, domain.ErrSceneLinkBroken)
		return
	}
	if _, reachable := domain.ReachableTIDs(last)[hit.Entry.TID.Value()]; !reachable {
		a.logger.Debug("scene node not reachable", "topic", s.Topic, "tid", hit.Entry.TID.String())
		a.fail(c, domain.ErrSceneLinkBroken)
		return
	}

	result := a.responder.Build(c, hit.Entry)
	s.Advance(last, result)
	c.Set(metaStrategy, hit.Strategy)
	c.Resolve(a.name, result)
}

func (a *SceneAction) fail(c *domain.QueryContext, err error) {
	a.logger.Debug("scene fallback to error page", "user_id", c.UserID, "topic", c.Session.Topic, "error", err)
	c.Degrade(err)
	c.Resolve(a.name, a.responder.ErrorPage(c))
}
