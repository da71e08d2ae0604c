package action

import (
	"context"
	"strings"
	"sync"

	"github.com/Zereker/nlu/internal/domain"
	"github.com/Zereker/nlu/pkg/nlp"
)

// MockKnowledgeStore 用于测试的知识库 mock
// 实现 KnowledgeStore 接口，默认行为基于内存中的条目
type MockKnowledgeStore struct {
	Entries []domain.KnowledgeEntry
	Users   map[string]domain.User
	Topics  map[string][]string

	FindEntriesByTagFunc    func(ctx context.Context, tag string, topics []string) ([]domain.KnowledgeEntry, error)
	FindEntryContainingFunc func(ctx context.Context, question string, topics []string) (*domain.KnowledgeEntry, error)
	FindEntryFunc           func(ctx context.Context, topic string, tid domain.TID, name string) (*domain.KnowledgeEntry, error)
	GetUserFunc             func(ctx context.Context, userID string) (*domain.User, error)
	GetUserTopicsFunc       func(ctx context.Context, userID string) ([]string, error)
	ListSelectionsFunc      func(ctx context.Context, userID string) ([]domain.TopicSelection, error)
	SetSelectionFunc        func(ctx context.Context, userID string, selections map[string]bool) error
	ListAllTopicsFunc       func(ctx context.Context) ([]string, error)

	mu                 sync.Mutex
	FindEntriesCalls   []string
	FindEntryCalls     []struct{ Topic, TID, Name string }
	GetUserCalls       []string
	SetSelectionCalls  []map[string]bool
	KeySentenceCalls   []string
	GetUserTopicsCalls []string
}

func NewMockKnowledgeStore(entries ...domain.KnowledgeEntry) *MockKnowledgeStore {
	m := &MockKnowledgeStore{
		Entries: entries,
		Users:   map[string]domain.User{testUser.UserID: testUser},
		Topics:  map[string][]string{testUser.UserID: {"campus", "chat"}},
	}

	m.FindEntriesByTagFunc = func(ctx context.Context, tag string, topics []string) ([]domain.KnowledgeEntry, error) {
		var out []domain.KnowledgeEntry
		for _, e := range m.Entries {
			if contains(topics, e.Topic) {
				out = append(out, e)
			}
		}
		return out, nil
	}
	m.FindEntryContainingFunc = func(ctx context.Context, question string, topics []string) (*domain.KnowledgeEntry, error) {
		for _, e := range m.Entries {
			if e.Name != "" && strings.Contains(question, e.Name) && contains(topics, e.Topic) {
				entry := e
				return &entry, nil
			}
		}
		return nil, nil
	}
	m.FindEntryFunc = func(ctx context.Context, topic string, tid domain.TID, name string) (*domain.KnowledgeEntry, error) {
		for _, e := range m.Entries {
			if e.Topic == topic && e.Name == name && e.TID == tid {
				entry := e
				return &entry, nil
			}
		}
		return nil, nil
	}
	m.GetUserFunc = func(ctx context.Context, userID string) (*domain.User, error) {
		if u, ok := m.Users[userID]; ok {
			return &u, nil
		}
		return nil, nil
	}
	m.GetUserTopicsFunc = func(ctx context.Context, userID string) ([]string, error) {
		return m.Topics[userID], nil
	}
	m.ListSelectionsFunc = func(ctx context.Context, userID string) ([]domain.TopicSelection, error) {
		return nil, nil
	}
	m.SetSelectionFunc = func(ctx context.Context, userID string, selections map[string]bool) error {
		return nil
	}
	m.ListAllTopicsFunc = func(ctx context.Context) ([]string, error) {
		return nil, nil
	}

	return m
}

func (m *MockKnowledgeStore) FindEntriesByTag(ctx context.Context, tag string, topics []string) ([]domain.KnowledgeEntry, error) {
	m.mu.Lock()
	m.FindEntriesCalls = append(m.FindEntriesCalls, tag)
	m.mu.Unlock()
	return m.FindEntriesByTagFunc(ctx, tag, topics)
}

func (m *MockKnowledgeStore) FindEntryContaining(ctx context.Context, question string, topics []string) (*domain.KnowledgeEntry, error) {
	m.mu.Lock()
	m.KeySentenceCalls = append(m.KeySentenceCalls, question)
	m.mu.Unlock()
	return m.FindEntryContainingFunc(ctx, question, topics)
}

func (m *MockKnowledgeStore) FindEntry(ctx context.Context, topic string, tid domain.TID, name string) (*domain.KnowledgeEntry, error) {
	m.mu.Lock()
	m.FindEntryCalls = append(m.FindEntryCalls, struct{ Topic, TID, Name string }{topic, tid.String(), name})
	m.mu.Unlock()
	return m.FindEntryFunc(ctx, topic, tid, name)
}

func (m *MockKnowledgeStore) ListAPIs(ctx context.Context) ([]string, error) {
	var names []string
	for _, e := range m.Entries {
		if e.API != "" {
			names = append(names, e.API)
		}
	}
	return names, nil
}

func (m *MockKnowledgeStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	m.GetUserCalls = append(m.GetUserCalls, userID)
	m.mu.Unlock()
	return m.GetUserFunc(ctx, userID)
}

func (m *MockKnowledgeStore) GetUserTopics(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	m.GetUserTopicsCalls = append(m.GetUserTopicsCalls, userID)
	m.mu.Unlock()
	return m.GetUserTopicsFunc(ctx, userID)
}

func (m *MockKnowledgeStore) ListTopicSelections(ctx context.Context, userID string) ([]domain.TopicSelection, error) {
	return m.ListSelectionsFunc(ctx, userID)
}

func (m *MockKnowledgeStore) SetTopicSelection(ctx context.Context, userID string, selections map[string]bool) error {
	m.mu.Lock()
	m.SetSelectionCalls = append(m.SetSelectionCalls, selections)
	m.mu.Unlock()
	return m.SetSelectionFunc(ctx, userID, selections)
}

func (m *MockKnowledgeStore) ListAllTopics(ctx context.Context) ([]string, error) {
	return m.ListAllTopicsFunc(ctx)
}

// MockTokenizer 用于测试的分词器 mock
// 默认按字切分，每个字即一个标签
type MockTokenizer struct {
	SynonymTagsFunc func(text string) nlp.Set
	PinyinFunc      func(text string) nlp.Set
	SensitiveFunc   func(text string) bool

	mu              sync.Mutex
	ExtractTagCalls []string
}

func NewMockTokenizer() *MockTokenizer {
	return &MockTokenizer{
		SynonymTagsFunc: runeSet,
		PinyinFunc:      runeSet,
		SensitiveFunc: func(text string) bool {
			return strings.Contains(text, "敏感词")
		},
	}
}

func (m *MockTokenizer) SynonymTags(text string) nlp.Set { return m.SynonymTagsFunc(text) }
func (m *MockTokenizer) Pinyin(text string) nlp.Set      { return m.PinyinFunc(text) }
func (m *MockTokenizer) Sensitive(text string) bool      { return m.SensitiveFunc(text) }

func (m *MockTokenizer) ExtractTag(text, robotName string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExtractTagCalls = append(m.ExtractTagCalls, text)
	return "tag"
}

// MockEnricher 用于测试的在线数据源 mock
type MockEnricher struct {
	DefaultAddressFunc func(ctx context.Context) (string, error)
	WeatherReportFunc  func(ctx context.Context, question string) (string, error)

	mu           sync.Mutex
	WeatherCalls []string
	AddressCalls int
}

func NewMockEnricher() *MockEnricher {
	return &MockEnricher{
		DefaultAddressFunc: func(ctx context.Context) (string, error) {
			return "上海市浦东新区", nil
		},
		WeatherReportFunc: func(ctx context.Context, question string) (string, error) {
			return "上海 晴 25℃", nil
		},
	}
}

func (m *MockEnricher) DefaultAddress(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.AddressCalls++
	m.mu.Unlock()
	return m.DefaultAddressFunc(ctx)
}

func (m *MockEnricher) WeatherReport(ctx context.Context, question string) (string, error) {
	m.mu.Lock()
	m.WeatherCalls = append(m.WeatherCalls, question)
	m.mu.Unlock()
	return m.WeatherReportFunc(ctx, question)
}

// MockRecorder 用于测试的对话记录 mock
type MockRecorder struct {
	mu         sync.Mutex
	Turns      []domain.MatchResult
	Stages     []string
	Unanswered []string
}

func (m *MockRecorder) RecordTurn(ctx context.Context, userID, stage string, result domain.MatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Turns = append(m.Turns, result)
	m.Stages = append(m.Stages, stage)
	return nil
}

func (m *MockRecorder) RecordUnanswered(ctx context.Context, userID, question string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Unanswered = append(m.Unanswered, question)
	return nil
}

func runeSet(text string) nlp.Set {
	s := make(nlp.Set)
	for _, r := range text {
		if r == ' ' {
			continue
		}
		s[string(r)] = struct{}{}
	}
	return s
}

func contains(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
