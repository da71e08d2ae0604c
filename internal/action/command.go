package action

import "github.com/Zereker/nlu/internal/domain"

// ExitSceneName 退出场景应答的名称
const ExitSceneName = "退出"

// RepeatAction 重复指令：返回上一条应答，记忆为空时返回空内容。不改变状态。
type RepeatAction struct {
	*BaseAction
	tables    Tables
	responder *Responder
}

func NewRepeatAction(tables Tables, responder *Responder) *RepeatAction {
	return &RepeatAction{
		BaseAction: NewBaseAction("repeat"),
		tables:     tables,
		responder:  responder,
	}
}

func (a *RepeatAction) Handle(c *domain.QueryContext) {
	if !a.tables.IsRepeat(c.Question) {
		return
	}

	if last, ok := c.Session.Answers.Last(); ok {
		c.Resolve(a.name, last)
		return
	}
	c.Resolve(a.name, a.responder.Silent(c))
}

// EndSceneAction 退出指令：离开场景，清空话题与两条记忆流
type EndSceneAction struct {
	*BaseAction
	tables Tables
}

func NewEndSceneAction(tables Tables) *EndSceneAction {
	return &EndSceneAction{
		BaseAction: NewBaseAction("end_scene"),
		tables:     tables,
	}
}

func (a *EndSceneAction) Handle(c *domain.QueryContext) {
	if !a.tables.IsEndScene(c.Question) {
		return
	}

	if c.Session.InScene {
		a.logger.Info("scene exited", "user_id", c.UserID, "topic", c.Session.Topic)
	}
	c.Session.ExitScene()

	result := domain.NewResult(c.Question)
	result.Name = ExitSceneName
	result.Behavior = domain.BehaviorNone
	c.Resolve(a.name, result)
}
