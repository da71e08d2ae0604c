package action

import (
	"context"
	"sort"
	"time"

	"github.com/Zereker/nlu/internal/domain"
	"github.com/Zereker/nlu/pkg/metrics"
)

// 在线意图
const (
	IntentMusic   = "music"
	IntentNearby  = "nearby"
	IntentWeather = "weather"
)

// IntentRule 在线意图规则：问题包含任一关键词即命中
type IntentRule struct {
	Name     string
	Keywords []string
	Priority int // 越小越优先
	Answer   func(c *domain.QueryContext) (domain.MatchResult, error)
}

// Matches 问题是否包含关键词
func (r *IntentRule) Matches(question string) bool {
	return containsAny(question, r.Keywords)
}

// OnlineAction 级联的最后一个阶段，总会给出应答。
// 没有记住的话题时尝试在线意图，识别不出时记录为未回答问题并返回兜底话术。
type OnlineAction struct {
	*BaseAction
	rules     []*IntentRule
	enricher  Enricher
	recorder  Recorder
	responder *Responder
	timeout   time.Duration
}

func NewOnlineAction(tables Tables, enricher Enricher, recorder Recorder, responder *Responder) *OnlineAction {
	if recorder == nil {
		recorder = nopRecorder{}
	}

	a := &OnlineAction{
		BaseAction: NewBaseAction("online"),
		enricher:   enricher,
		recorder:   recorder,
		responder:  responder,
		timeout:    tables.EnrichTimeout,
	}
	a.initDefaultRules(tables)
	return a
}

func (a *OnlineAction) initDefaultRules(t Tables) {
	a.AddRule(&IntentRule{
		Name:     IntentMusic,
		Keywords: t.MusicKeywords,
		Priority: 10,
		Answer: func(c *domain.QueryContext) (domain.MatchResult, error) {
			result := domain.NewResult(c.Question)
			result.Behavior = domain.BehaviorMusic
			result.Content = c.User.Format(t.MusicReply)
			return result, nil
		},
	})

	a.AddRule(&IntentRule{
		Name:     IntentNearby,
		Keywords: t.NearbyKeywords,
		Priority: 20,
		Answer: func(c *domain.QueryContext) (domain.MatchResult, error) {
			ctx, cancel := a.withTimeout(c)
			defer cancel()

			address, err := a.enricher.DefaultAddress(ctx)
			if err != nil {
				return domain.MatchResult{}, err
			}

			result := domain.NewResult(c.Question)
			result.Behavior = domain.BehaviorNearby
			result.Content = address
			return result, nil
		},
	})

	a.AddRule(&IntentRule{
		Name:     IntentWeather,
		Keywords: t.WeatherKeywords,
		Priority: 30,
		Answer: func(c *domain.QueryContext) (domain.MatchResult, error) {
			ctx, cancel := a.withTimeout(c)
			defer cancel()

			report, err := a.enricher.WeatherReport(ctx, c.Question)
			if err != nil {
				return domain.MatchResult{}, err
			}

			result := domain.NewResult(c.Question)
			result.Content = report
			result.Context = domain.ContextWeather
			return result, nil
		},
	})
}

// AddRule 添加规则并按优先级排序
func (a *OnlineAction) AddRule(rule *IntentRule) {
	a.rules = append(a.rules, rule)
	sort.SliceStable(a.rules, func(i, j int) bool {
		return a.rules[i].Priority < a.rules[j].Priority
	})
}

// Recognize 返回第一个命中的规则
func (a *OnlineAction) Recognize(question string) *IntentRule {
	for _, rule := range a.rules {
		if rule.Matches(question) {
			return rule
		}
	}
	return nil
}

func (a *OnlineAction) Handle(c *domain.QueryContext) {
	if c.Session.Topic != "" {
		c.Resolve(a.name, a.responder.DoNotKnow(c))
		return
	}

	rule := a.Recognize(c.Question)
	if rule == nil {
		if err := a.recorder.RecordUnanswered(c, c.UserID, c.Question); err != nil {
			a.logger.Warn("record unanswered failed", "user_id", c.UserID, "error", err)
		}
		c.Degrade(domain.ErrNoMatch)
		c.Resolve(a.name, a.responder.DoNotKnow(c))
		return
	}

	if a.enricher == nil && rule.Name != IntentMusic {
		c.Resolve(a.name, a.responder.DoNotKnow(c))
		return
	}

	result, err := rule.Answer(c)
	if err != nil {
		metrics.EnrichTotal.WithLabelValues(rule.Name, "error").Inc()
		a.logger.Warn("online intent failed", "intent", rule.Name, "error", err)
		c.Degrade(err)
		c.Resolve(a.name, a.responder.DoNotKnow(c))
		return
	}

	metrics.EnrichTotal.WithLabelValues(rule.Name, "ok").Inc()
	c.Set(metaStrategy, rule.Name)
	c.Session.Answers.Push(result)
	c.Resolve(a.name, result)
}

func (a *OnlineAction) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}
