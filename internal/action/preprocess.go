package action

import (
	"strings"
	"unicode/utf8"

	"github.com/Zereker/nlu/internal/domain"
)

// StripAddressing 去掉问题开头对机器人的称呼。
// 只有两个字且以尊称开头时视为在叫机器人名字；以名字变体开头、至少四个字且不含在线标记时去掉变体前缀；
// 去掉后为空时返回机器人名字。
func StripAddressing(question, robotName string, t Tables) string {
	if t.Honorific != "" && strings.HasPrefix(question, t.Honorific) && utf8.RuneCountInString(question) == 2 {
		question = robotName
	}

	for _, variant := range t.NameVariants {
		if variant == "" {
			continue
		}
		if strings.HasPrefix(question, variant) &&
			utf8.RuneCountInString(question) >= 4 &&
			!strings.Contains(question, t.OnlineMarker) {
			question = strings.TrimPrefix(question, variant)
		}
	}

	if question == "" {
		return robotName
	}
	return question
}

// ============================================================================
// SensitiveAction - 敏感词拦截
// ============================================================================

// SensitiveAction 问题包含敏感词时返回空内容的应答
type SensitiveAction struct {
	*BaseAction
	tok       Tokenizer
	responder *Responder
}

func NewSensitiveAction(tok Tokenizer, responder *Responder) *SensitiveAction {
	return &SensitiveAction{
		BaseAction: NewBaseAction("sensitive"),
		tok:        tok,
		responder:  responder,
	}
}

func (a *SensitiveAction) Handle(c *domain.QueryContext) {
	if !a.tok.Sensitive(c.Question) {
		return
	}

	a.logger.Info("sensitive question blocked", "user_id", c.UserID)
	c.Degrade(domain.ErrSensitiveContent)
	c.Resolve(a.name, a.responder.Silent(c))
}

// ============================================================================
// AddressingAction - 称呼过滤
// ============================================================================

// AddressingAction 改写问题，去掉称呼，从不终止级联
type AddressingAction struct {
	*BaseAction
	tables Tables
}

func NewAddressingAction(tables Tables) *AddressingAction {
	return &AddressingAction{
		BaseAction: NewBaseAction("addressing"),
		tables:     tables,
	}
}

func (a *AddressingAction) Handle(c *domain.QueryContext) {
	stripped := StripAddressing(c.Question, c.User.RobotName, a.tables)
	if stripped != c.Question {
		a.logger.Debug("addressing stripped", "from", c.Question, "to", stripped)
	}
	c.Question = stripped
}
