package review

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCloser struct{ bytes.Buffer }

func (n *nopCloser) Close() error { return nil }

func TestPostgresConfig(t *testing.T) {
	t.Run("dsn defaults ssl mode", func(t *testing.T) {
		cfg := PostgresConfig{User: "u", Password: "p", Host: "db", Port: 5432, Database: "nlu"}
		assert.Equal(t, "postgres://u:p@db:5432/nlu?sslmode=disable", cfg.DSN())
	})

	t.Run("validate", func(t *testing.T) {
		disabled := PostgresConfig{}
		assert.NoError(t, disabled.Validate())

		noHost := PostgresConfig{Enabled: true, Port: 5432, Database: "nlu"}
		assert.Error(t, noHost.Validate())

		badPort := PostgresConfig{Enabled: true, Host: "db", Port: 70000, Database: "nlu"}
		assert.Error(t, badPort.Validate())

		noDB := PostgresConfig{Enabled: true, Host: "db", Port: 5432}
		assert.Error(t, noDB.Validate())
	})
}

func TestFileStoreAppendsJSONLines(t *testing.T) {
	turns, unanswered := &nopCloser{}, &nopCloser{}
	store := newFileStore(turns, unanswered)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveTurn(ctx, Turn{ID: "t1", UserID: "A0001", Question: "你好", Answer: "你好呀", CreatedAt: now}))
	require.NoError(t, store.SaveTurn(ctx, Turn{ID: "t2", UserID: "A0001", Question: "再见", CreatedAt: now}))
	require.NoError(t, store.SaveUnanswered(ctx, Unanswered{ID: "u1", UserID: "A0001", Question: "火星几点了", CreatedAt: now}))

	lines := strings.Split(strings.TrimSpace(turns.String()), "\n")
	require.Len(t, lines, 2)

	var first Turn
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "你好呀", first.Answer)

	var q Unanswered
	require.NoError(t, json.Unmarshal(unanswered.Bytes(), &q))
	assert.Equal(t, "火星几点了", q.Question)

	assert.NoError(t, store.Close(ctx))
}

func TestNewFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "review")

	store, err := NewFileStore(FileConfig{Path: dir})
	require.NoError(t, err)

	require.NoError(t, store.SaveUnanswered(context.Background(), Unanswered{ID: "u1", Question: "q"}))
	require.NoError(t, store.Close(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
