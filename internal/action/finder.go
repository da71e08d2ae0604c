package action

import (
	"context"
	"log/slog"
	"time"

	"github.com/Zereker/nlu/internal/domain"
	"github.com/Zereker/nlu/pkg/log"
)

// 匹配策略
const (
	StrategyTag         = "tag"
	StrategyPinyin      = "pinyin"
	StrategyKeySentence = "keysentence"
)

// Hit 命中的知识条目
type Hit struct {
	Entry    domain.KnowledgeEntry
	Strategy string
	Score    float64
}

// Finder 在给定话题内为问题查找知识条目：先按检索标签取候选做相似度匹配，再做关键句匹配，
// 场景外开启拼音时最后做拼音匹配
type Finder struct {
	store   KnowledgeStore
	tok     Tokenizer
	tag     *SetMatcher
	pinyin  *SetMatcher // 未开启时为 nil
	timeout time.Duration
	logger  *slog.Logger
}

// NewFinder 创建 Finder
func NewFinder(store KnowledgeStore, tok Tokenizer, tables Tables) *Finder {
	f := &Finder{
		store:   store,
		tok:     tok,
		tag:     NewTagMatcher(tok, tables.TagThreshold),
		timeout: tables.LookupTimeout,
		logger:  log.Logger("finder"),
	}
	if tables.PinyinFallback {
		f.pinyin = NewPinyinMatcher(tok, tables.PinyinThreshold)
	}
	return f
}

// Find 场景外查找：标签、关键句，最后是拼音。没有命中时返回 nil, nil；知识库不可用时返回错误
func (f *Finder) Find(c *domain.QueryContext, topics []string) (*Hit, error) {
	return f.find(c, topics, f.pinyin)
}

// FindInScene 场景内查找，只做标签与关键句匹配
func (f *Finder) FindInScene(c *domain.QueryContext, topics []string) (*Hit, error) {
	return f.find(c, topics, nil)
}

func (f *Finder) find(c *domain.QueryContext, topics []string, fallback *SetMatcher) (*Hit, error) {
	if len(topics) == 0 {
		return nil, nil
	}

	tag := f.tok.ExtractTag(c.Question, c.User.RobotName)

	ctx, cancel := f.withTimeout(c)
	candidates, err := f.store.FindEntriesByTag(ctx, tag, topics)
	cancel()
	if err != nil {
		return nil, err
	}

	if hit := f.match(f.tag, c, candidates); hit != nil {
		return hit, nil
	}

	ctx, cancel = f.withTimeout(c)
	entry, err := f.store.FindEntryContaining(ctx, c.Question, topics)
	cancel()
	if err != nil {
		return nil, err
	}
	if entry != nil {
		f.logger.Debug("matched", "strategy", StrategyKeySentence, "name", entry.Name)
		return &Hit{Entry: *entry, Strategy: StrategyKeySentence, Score: ExactScore}, nil
	}

	if fallback != nil {
		return f.match(fallback, c, candidates), nil
	}
	return nil, nil
}

func (f *Finder) match(m *SetMatcher, c *domain.QueryContext, candidates []domain.KnowledgeEntry) *Hit {
	entry, score := m.Match(c.Question, c.User, candidates)
	if entry == nil {
		return nil
	}

	f.logger.Debug("matched", "strategy", m.Name(), "name", entry.Name, "score", score)
	return &Hit{Entry: *entry, Strategy: m.Name(), Score: score}
}

func (f *Finder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}
