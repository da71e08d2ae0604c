package domain

import (
	"sync"
	"time"
)

// MemorySize 每条记忆流的容量
const MemorySize = 10

// ============================================================================
// Memory - 有界记忆流
// ============================================================================

// Memory 有界双端序列，超出容量时淘汰最旧的记录
type Memory struct {
	items []MatchResult
	size  int
}

// NewMemory 创建记忆流，size <= 0 时使用 MemorySize
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = MemorySize
	}
	return &Memory{items: make([]MatchResult, 0, size), size: size}
}

// Push 追加记录
func (m *Memory) Push(r MatchResult) {
	if len(m.items) >= m.size {
		copy(m.items, m.items[1:])
		m.items = m.items[:len(m.items)-1]
	}
	m.items = append(m.items, r)
}

// PopBack 弹出最新记录
func (m *Memory) PopBack() (MatchResult, bool) {
	if len(m.items) == 0 {
		return MatchResult{}, false
	}

	last := m.items[len(m.items)-1]
	m.items = m.items[:len(m.items)-1]
	return last, true
}

// Last 查看最新记录
func (m *Memory) Last() (MatchResult, bool) {
	if len(m.items) == 0 {
		return MatchResult{}, false
	}
	return m.items[len(m.items)-1], true
}

func (m *Memory) Len() int { return len(m.items) }

func (m *Memory) Clear() { m.items = m.items[:0] }

// Items 返回副本
func (m *Memory) Items() []MatchResult {
	out := make([]MatchResult, len(m.items))
	copy(out, m.items)
	return out
}

// ============================================================================
// Session - 单个用户的对话状态
// ============================================================================

// Session 用户会话状态，所有读写都应在 Do 中完成
type Session struct {
	mu sync.Mutex

	UserID     string
	InScene    bool
	Topic      string
	Answers    *Memory // 应答记忆
	Previous   *Memory // 场景回退记忆
	LastActive time.Time
}

// NewSession 创建会话
func NewSession(userID string) *Session {
	return &Session{
		UserID:     userID,
		Answers:    NewMemory(MemorySize),
		Previous:   NewMemory(MemorySize),
		LastActive: time.Now(),
	}
}

// Do 独占执行，串行化同一用户的并发请求
func (s *Session) Do(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastActive = time.Now()
	fn(s)
}

// Remember 同时写入两条记忆流
func (s *Session) Remember(r MatchResult) {
	s.Answers.Push(r)
	s.Previous.Push(r)
}

// EnterScene 进入场景：清空记忆后以根节点开始
func (s *Session) EnterScene(topic string, root MatchResult) {
	s.InScene = true
	s.Topic = topic
	s.Answers.Clear()
	s.Previous.Clear()
	s.Remember(root)
}

// ExitScene 退出场景并清空记忆
func (s *Session) ExitScene() {
	s.InScene = false
	s.Topic = ""
	s.Answers.Clear()
	s.Previous.Clear()
}

// Advance 场景下一步：上一轮应答入回退流，新应答入应答流
func (s *Session) Advance(last, next MatchResult) {
	s.Previous.Push(last)
	s.Answers.Push(next)
}

// StepBack 场景上一步。
// 回退流多于一条时丢弃最新应答并弹出回退记录返回；只有一条时原样返回；为空时失败。
func (s *Session) StepBack() (MatchResult, bool) {
	switch n := s.Previous.Len(); {
	case n > 1:
		s.Answers.PopBack()
		return s.Previous.PopBack()
	case n == 1:
		return s.Previous.Last()
	default:
		return MatchResult{}, false
	}
}
