package session

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Zereker/nlu/internal/domain"
	"github.com/Zereker/nlu/pkg/metrics"
)

// Config 会话配置
type Config struct {
	TTL             string `toml:"ttl"`              // 闲置多久后丢弃会话
	CleanupInterval string `toml:"cleanup_interval"` // 过期清理周期
}

// Validate 填充默认值并校验
func (c *Config) Validate() error {
	if c.TTL == "" {
		c.TTL = "30m"
	}
	if c.CleanupInterval == "" {
		c.CleanupInterval = "5m"
	}
	if _, err := time.ParseDuration(c.TTL); err != nil {
		return err
	}
	if _, err := time.ParseDuration(c.CleanupInterval); err != nil {
		return err
	}
	return nil
}

// Store 按 userid 保存会话，闲置超时后自动过期
type Store struct {
	mu    sync.Mutex // 保证同一 userid 只创建一个会话
	cache *cache.Cache
}

// NewStore 创建会话存储
func NewStore(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ttl, _ := time.ParseDuration(cfg.TTL)
	cleanup, _ := time.ParseDuration(cfg.CleanupInterval)

	return &Store{cache: cache.New(ttl, cleanup)}, nil
}

// Get 获取会话，不存在时创建，并刷新过期时间
func (s *Store) Get(userID string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if x, found := s.cache.Get(userID); found {
		sess := x.(*domain.Session)
		s.cache.Set(userID, sess, cache.DefaultExpiration)
		return sess
	}

	sess := domain.NewSession(userID)
	s.cache.Set(userID, sess, cache.DefaultExpiration)
	metrics.ActiveSessions.Set(float64(s.cache.ItemCount()))
	return sess
}

// Do 在会话锁内执行 fn，同一用户的请求因此串行
func (s *Store) Do(userID string, fn func(*domain.Session)) {
	s.Get(userID).Do(fn)
}

// Delete 丢弃会话
func (s *Store) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Delete(userID)
	metrics.ActiveSessions.Set(float64(s.cache.ItemCount()))
}

// Count 当前会话数
func (s *Store) Count() int {
	return s.cache.ItemCount()
}

// Flush 清空所有会话
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Flush()
	metrics.ActiveSessions.Set(0)
}
