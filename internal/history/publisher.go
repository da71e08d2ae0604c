package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Zereker/nlu/internal/domain"
	"github.com/Zereker/nlu/pkg/log"
	"github.com/Zereker/nlu/pkg/metrics"
	"github.com/Zereker/nlu/pkg/mq"
	"github.com/Zereker/nlu/pkg/review"
)

// 对话记录的消息主题
const (
	TopicTurns      = "nlu.dialogue.turns"
	TopicUnanswered = "nlu.dialogue.unanswered"
)

// Publisher 把对话记录发布到消息队列，由消费者异步落库。
// 以 userid 作为消息 key，同一用户的记录保持顺序。
type Publisher struct {
	queue  mq.MessageQueue
	now    func() time.Time
	logger *slog.Logger
}

// NewPublisher 创建发布者
func NewPublisher(queue mq.MessageQueue) *Publisher {
	return &Publisher{
		queue:  queue,
		now:    time.Now,
		logger: log.Logger("history"),
	}
}

// RecordTurn 记录一轮已应答的对话
func (p *Publisher) RecordTurn(_ context.Context, userID, stage string, result domain.MatchResult) error {
	turn := review.Turn{
		ID:        uuid.NewString(),
		UserID:    userID,
		Question:  result.Question,
		Answer:    result.Content,
		Topic:     result.Context,
		TID:       result.TID.String(),
		Behavior:  result.Behavior,
		Stage:     stage,
		CreatedAt: p.now(),
	}
	return p.publish(TopicTurns, "turn", userID, turn)
}

// RecordUnanswered 记录无法回答的问题
func (p *Publisher) RecordUnanswered(_ context.Context, userID, question string) error {
	q := review.Unanswered{
		ID:        uuid.NewString(),
		UserID:    userID,
		Question:  question,
		CreatedAt: p.now(),
	}
	return p.publish(TopicUnanswered, "unanswered", userID, q)
}

func (p *Publisher) publish(topic, kind, key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		metrics.RecordsTotal.WithLabelValues(kind, "error").Inc()
		return errors.Wrapf(err, "marshal %s record", kind)
	}

	if err := p.queue.Publish(topic, key, data); err != nil {
		metrics.RecordsTotal.WithLabelValues(kind, "error").Inc()
		return errors.Wrapf(err, "publish %s record", kind)
	}

	metrics.RecordsTotal.WithLabelValues(kind, "published").Inc()
	p.logger.Debug("record published", "topic", topic, "user_id", key)
	return nil
}
