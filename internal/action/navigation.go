package action

import (
	"strings"

	"github.com/Zereker/nlu/internal/domain"
)

// NavigationPrefix 导航指令前缀
const NavigationPrefix = "去"

// MatchLocation 问题包含 "去<地点>" 时返回导航应答，按地点表顺序第一个命中的胜出
func MatchLocation(question string, locations []string) (domain.MatchResult, bool) {
	for _, location := range locations {
		if location == "" {
			continue
		}

		keyword := NavigationPrefix + location
		if !strings.Contains(question, keyword) {
			continue
		}

		result := domain.NewResult(question)
		result.Name = keyword
		result.Content = location
		result.Context = domain.ContextNavigation
		result.Behavior = domain.BehaviorNavigation
		return result, true
	}

	return domain.MatchResult{}, false
}

// NavigationAction 导航匹配。命中的应答写入两条记忆流，不改变场景状态。
type NavigationAction struct {
	*BaseAction
	locations []string
}

func NewNavigationAction(locations []string) *NavigationAction {
	return &NavigationAction{
		BaseAction: NewBaseAction("navigation"),
		locations:  append([]string(nil), locations...),
	}
}

func (a *NavigationAction) Handle(c *domain.QueryContext) {
	result, ok := MatchLocation(c.Question, a.locations)
	if !ok {
		return
	}

	c.Session.Remember(result)
	c.Resolve(a.name, result)
}
