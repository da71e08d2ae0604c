package review

import (
	"context"
	"time"
)

// Turn 一轮已应答的对话
type Turn struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userid"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Topic     string    `json:"topic"`
	TID       string    `json:"tid"`
	Behavior  int       `json:"behavior"`
	Stage     string    `json:"stage"`
	CreatedAt time.Time `json:"created_at"`
}

// Unanswered 无法回答、留待人工补充知识的问题
type Unanswered struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userid"`
	Question  string    `json:"question"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the interface for dialogue review storage.
type Store interface {
	// SaveTurn persists an answered turn. Saving the same ID twice is a no-op.
	SaveTurn(ctx context.Context, turn Turn) error

	// SaveUnanswered persists an unanswered question. Saving the same ID twice is a no-op.
	SaveUnanswered(ctx context.Context, q Unanswered) error

	// Close releases resources held by the store.
	Close(ctx context.Context) error
}
