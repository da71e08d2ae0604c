package action

import (
	"context"

	"github.com/Zereker/nlu/internal/domain"
	"github.com/Zereker/nlu/pkg/nlp"
)

// KnowledgeStore 知识库访问接口
// 实现 knowledge.Neo4jStore
type KnowledgeStore interface {
	FindEntriesByTag(ctx context.Context, tag string, topics []string) ([]domain.KnowledgeEntry, error)
	FindEntryContaining(ctx context.Context, question string, topics []string) (*domain.KnowledgeEntry, error)
	FindEntry(ctx context.Context, topic string, tid domain.TID, name string) (*domain.KnowledgeEntry, error)
	ListAPIs(ctx context.Context) ([]string, error)

	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUserTopics(ctx context.Context, userID string) ([]string, error)
	ListTopicSelections(ctx context.Context, userID string) ([]domain.TopicSelection, error)
	SetTopicSelection(ctx context.Context, userID string, selections map[string]bool) error
	ListAllTopics(ctx context.Context) ([]string, error)
}

// Tokenizer 分词与标签提取
// 实现 nlp.Tokenizer
type Tokenizer interface {
	SynonymTags(text string) nlp.Set
	Pinyin(text string) nlp.Set
	Sensitive(text string) bool
	ExtractTag(text, robotName string) string
}

// Enricher 在线语义数据源
// 实现 online.Service
type Enricher interface {
	DefaultAddress(ctx context.Context) (string, error)
	WeatherReport(ctx context.Context, question string) (string, error)
}

// Recorder 对话记录
// 实现 history.Publisher
type Recorder interface {
	RecordTurn(ctx context.Context, userID, stage string, result domain.MatchResult) error
	RecordUnanswered(ctx context.Context, userID, question string) error
}

// SessionStore 会话存储
// 实现 session.Store
type SessionStore interface {
	Do(userID string, fn func(*domain.Session))
}

type nopRecorder struct{}

func (nopRecorder) RecordTurn(context.Context, string, string, domain.MatchResult) error {
	return nil
}

func (nopRecorder) RecordUnanswered(context.Context, string, string) error {
	return nil
}
