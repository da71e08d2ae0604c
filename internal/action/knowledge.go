package action

import "github.com/Zereker/nlu/internal/domain"

const metaStrategy = "strategy"

// KnowledgeAction 场景外的知识匹配，只在用户已启用的话题内查找。
//   - 命中场景根节点：进入场景
//   - 命中场景内部节点：场景必须从根节点进入，返回空内容
//   - 命中普通节点：记住话题
type KnowledgeAction struct {
	*BaseAction
	finder    *Finder
	responder *Responder
}

func NewKnowledgeAction(finder *Finder, responder *Responder) *KnowledgeAction {
	return &KnowledgeAction{
		BaseAction: NewBaseAction("knowledge"),
		finder:     finder,
		responder:  responder,
	}
}

func (a *KnowledgeAction) Handle(c *domain.QueryContext) {
	s := c.Session
	if s.InScene {
		return
	}

	hit, err := a.finder.Find(c, c.Topics)
	if err != nil {
		a.logger.Warn("knowledge lookup failed", "user_id", c.UserID, "error", err)
		c.Degrade(err)
		c.Resolve(a.name, a.responder.DoNotKnow(c))
		return
	}
	if hit == nil {
		return
	}

	c.Set(metaStrategy, hit.Strategy)
	result := a.responder.Build(c, hit.Entry)

	switch tid := hit.Entry.TID; {
	case tid.IsRoot():
		a.logger.Info("scene entered", "user_id", c.UserID, "topic", hit.Entry.Topic)
		s.EnterScene(hit.Entry.Topic, result)
		c.Resolve(a.name, result)
	case tid.IsSet():
		a.logger.Debug("scene interior reached out of order", "topic", hit.Entry.Topic, "tid", tid.String())
		c.Degrade(domain.ErrNoMatch)
		c.Resolve(a.name, a.responder.Silent(c))
	case result.Context != "":
		s.Topic = result.Context
		s.Remember(result)
		c.Resolve(a.name, result)
	}
}
