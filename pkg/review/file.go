package review

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/Zereker/nlu/pkg/log"
)

// FileStore 以 JSON 行追加写入按天切分的文件
type FileStore struct {
	mu         sync.Mutex
	turns      io.WriteCloser
	unanswered io.WriteCloser
}

var _ Store = (*FileStore)(nil)

// NewFileStore 创建文件存储
func NewFileStore(cfg FileConfig) (*FileStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	turns, err := log.NewRotatingWriter(cfg.Path, "turns-%Y-%m-%d.jsonl", cfg.RotationTime, cfg.MaxAge)
	if err != nil {
		return nil, fmt.Errorf("open turn log: %w", err)
	}

	unanswered, err := log.NewRotatingWriter(cfg.Path, "unanswered-%Y-%m-%d.jsonl", cfg.RotationTime, cfg.MaxAge)
	if err != nil {
		_ = turns.Close()
		return nil, fmt.Errorf("open unanswered log: %w", err)
	}

	return newFileStore(turns, unanswered), nil
}

func newFileStore(turns, unanswered io.WriteCloser) *FileStore {
	return &FileStore{turns: turns, unanswered: unanswered}
}

func (s *FileStore) SaveTurn(_ context.Context, turn Turn) error {
	return s.appendLine(s.turns, turn)
}

func (s *FileStore) SaveUnanswered(_ context.Context, q Unanswered) error {
	return s.appendLine(s.unanswered, q)
}

func (s *FileStore) appendLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal review record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write review record: %w", err)
	}
	return nil
}

// Close 关闭底层文件
func (s *FileStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err1 := s.turns.Close()
	err2 := s.unanswered.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
