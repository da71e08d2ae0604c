package history

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/nlu/internal/domain"
	"github.com/Zereker/nlu/pkg/mq"
	"github.com/Zereker/nlu/pkg/review"
)

var fixedNow = time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)

func newTestPublisher(queue mq.MessageQueue) *Publisher {
	p := NewPublisher(queue)
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestRecordTurn(t *testing.T) {
	queue := mq.NewInMemoryQueue(true)
	p := newTestPublisher(queue)

	result := domain.NewResult("校园导览")
	result.Content = "欢迎"
	result.Context = "campus"
	result.TID = domain.NewTID(0)
	result.Behavior = 0x0010

	require.NoError(t, p.RecordTurn(context.Background(), "A0001", "knowledge", result))

	messages := queue.GetMessages(TopicTurns)
	require.Len(t, messages, 1)

	var got review.Turn
	require.NoError(t, json.Unmarshal(messages[0], &got))
	assert.NotEmpty(t, got.ID)

	want := review.Turn{
		UserID:    "A0001",
		Question:  "校园导览",
		Answer:    "欢迎",
		Topic:     "campus",
		TID:       "0",
		Behavior:  0x0010,
		Stage:     "knowledge",
		CreatedAt: fixedNow,
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(review.Turn{}, "ID")); diff != "" {
		t.Errorf("turn mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordUnanswered(t *testing.T) {
	queue := mq.NewInMemoryQueue(true)
	p := newTestPublisher(queue)

	require.NoError(t, p.RecordUnanswered(context.Background(), "A0001", "今天吃什么"))
	require.NoError(t, p.RecordUnanswered(context.Background(), "A0001", "今天吃什么"))

	messages := queue.GetMessages(TopicUnanswered)
	require.Len(t, messages, 2)

	var first, second review.Unanswered
	require.NoError(t, json.Unmarshal(messages[0], &first))
	require.NoError(t, json.Unmarshal(messages[1], &second))
	assert.Equal(t, "今天吃什么", first.Question)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Empty(t, queue.GetMessages(TopicTurns))
}

type failingQueue struct{ mq.MessageQueue }

func (failingQueue) Publish(string, string, []byte) error { return errors.New("broker down") }

func TestPublishFailure(t *testing.T) {
	p := newTestPublisher(failingQueue{})

	err := p.RecordUnanswered(context.Background(), "A0001", "你好")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
