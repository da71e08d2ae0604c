package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/nlu/internal/domain"
)

func newTestStore(t *testing.T, ttl string) *Store {
	t.Helper()

	s, err := NewStore(Config{TTL: ttl, CleanupInterval: "1m"})
	require.NoError(t, err)
	return s
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "30m", cfg.TTL)

	bad := Config{TTL: "forever"}
	assert.Error(t, bad.Validate())
}

func TestStoreGetCreatesOnce(t *testing.T) {
	s := newTestStore(t, "1m")

	a := s.Get("A0001")
	b := s.Get("A0001")
	c := s.Get("B0002")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, s.Count())
}

func TestStoreIsolatesUsers(t *testing.T) {
	s := newTestStore(t, "1m")

	s.Do("A0001", func(sess *domain.Session) {
		sess.EnterScene("银行", domain.MatchResult{Name: "root"})
	})

	s.Do("B0002", func(sess *domain.Session) {
		assert.False(t, sess.InScene)
		assert.Equal(t, 0, sess.Answers.Len())
	})
}

func TestStoreSerializesSameUser(t *testing.T) {
	s := newTestStore(t, "1m")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Do("A0001", func(sess *domain.Session) {
				sess.Answers.Push(domain.MatchResult{Name: fmt.Sprint(i)})
			})
		}(i)
	}
	wg.Wait()

	s.Do("A0001", func(sess *domain.Session) {
		assert.Equal(t, domain.MemorySize, sess.Answers.Len())
	})
}

func TestStoreExpiry(t *testing.T) {
	s := newTestStore(t, "20ms")

	first := s.Get("A0001")
	time.Sleep(50 * time.Millisecond)

	assert.NotSame(t, first, s.Get("A0001"), "expired session is replaced")
}

func TestStoreDeleteAndFlush(t *testing.T) {
	s := newTestStore(t, "1m")

	s.Get("A0001")
	s.Get("B0002")
	s.Delete("A0001")
	assert.Equal(t, 1, s.Count())

	s.Flush()
	assert.Equal(t, 0, s.Count())
}
