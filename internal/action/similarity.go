package action

import (
	"github.com/Zereker/nlu/internal/domain"
	"github.com/Zereker/nlu/pkg/nlp"
)

// ExactScore 问题与条目名称完全相同时的得分
const ExactScore = 1.0

// SetMatcher 基于词集合 Jaccard 相似度的候选匹配。
// 按存储顺序扫描，第一个严格超过阈值的候选胜出。
type SetMatcher struct {
	name      string
	threshold float64
	tokens    func(string) nlp.Set
}

// NewTagMatcher 同义词标签匹配
func NewTagMatcher(tok Tokenizer, threshold float64) *SetMatcher {
	return &SetMatcher{name: "tag", threshold: threshold, tokens: tok.SynonymTags}
}

// NewPinyinMatcher 拼音匹配，容忍同音错字
func NewPinyinMatcher(tok Tokenizer, threshold float64) *SetMatcher {
	return &SetMatcher{name: "pinyin", threshold: threshold, tokens: tok.Pinyin}
}

func (m *SetMatcher) Name() string { return m.name }

// Match 返回命中的候选与得分，没有命中时返回 nil
func (m *SetMatcher) Match(question string, user domain.User, candidates []domain.KnowledgeEntry) (*domain.KnowledgeEntry, float64) {
	qs := m.tokens(question)
	if len(qs) == 0 {
		return nil, 0
	}

	for i := range candidates {
		name := user.Format(candidates[i].Name)
		if name == question {
			return &candidates[i], ExactScore
		}

		if score := nlp.Jaccard(qs, m.tokens(name)); score > m.threshold {
			return &candidates[i], score
		}
	}

	return nil, 0
}
