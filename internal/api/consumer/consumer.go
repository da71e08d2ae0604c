package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/nlu/internal/history"
	"github.com/Zereker/nlu/pkg/log"
	"github.com/Zereker/nlu/pkg/metrics"
	"github.com/Zereker/nlu/pkg/mq"
	"github.com/Zereker/nlu/pkg/review"
)

// Consumer 对话记录消费者，把历史与未回答问题写入复盘存储
type Consumer struct {
	logger    *slog.Logger
	store     review.Store
	consumers []*mq.KafkaConsumer
}

// Config 消费者配置
type Config struct {
	Kafka mq.KafkaConfig
}

// NewConsumer 创建消费者。Kafka 未开启时不创建 Kafka 消费者，可通过 Attach 订阅内存队列。
func NewConsumer(store review.Store, cfg Config) (*Consumer, error) {
	c := &Consumer{
		logger: log.Logger("consumer"),
		store:  store,
	}

	if !cfg.Kafka.Enabled {
		c.logger.Info("kafka disabled, kafka consumers not created")
		return c, nil
	}

	for _, consumerCfg := range cfg.Kafka.Consumers {
		kc, err := mq.NewKafkaConsumer(cfg.Kafka, consumerCfg, c.Handle)
		if err != nil {
			_ = c.Stop()
			return nil, errors.Wrapf(err, "create kafka consumer %s", consumerCfg.Name)
		}
		c.consumers = append(c.consumers, kc)
	}

	return c, nil
}

// Attach 订阅进程内队列上的对话记录主题
func (c *Consumer) Attach(queue mq.MessageQueue) error {
	for _, topic := range []string{history.TopicTurns, history.TopicUnanswered} {
		topic := topic
		if err := queue.Subscribe(topic, func(message []byte) error {
			return c.Handle(context.Background(), topic, message)
		}); err != nil {
			return errors.Wrapf(err, "subscribe %s", topic)
		}
	}
	return nil
}

// Handle 按主题分发消息。无法解析的消息被丢弃，存储失败时返回错误。
func (c *Consumer) Handle(ctx context.Context, topic string, message []byte) error {
	switch topic {
	case history.TopicTurns:
		var turn review.Turn
		if err := json.Unmarshal(message, &turn); err != nil {
			c.logger.Error("drop malformed turn", "error", err)
			metrics.RecordsTotal.WithLabelValues("turn", "malformed").Inc()
			return nil
		}
		if err := c.store.SaveTurn(ctx, turn); err != nil {
			metrics.RecordsTotal.WithLabelValues("turn", "error").Inc()
			return errors.Wrapf(err, "save turn %s", turn.ID)
		}
		metrics.RecordsTotal.WithLabelValues("turn", "saved").Inc()

	case history.TopicUnanswered:
		var q review.Unanswered
		if err := json.Unmarshal(message, &q); err != nil {
			c.logger.Error("drop malformed unanswered", "error", err)
			metrics.RecordsTotal.WithLabelValues("unanswered", "malformed").Inc()
			return nil
		}
		if err := c.store.SaveUnanswered(ctx, q); err != nil {
			metrics.RecordsTotal.WithLabelValues("unanswered", "error").Inc()
			return errors.Wrapf(err, "save unanswered %s", q.ID)
		}
		metrics.RecordsTotal.WithLabelValues("unanswered", "saved").Inc()

	default:
		c.logger.Warn("unknown topic", "topic", topic)
	}

	return nil
}

// Start 启动所有 Kafka 消费者
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.consumers) == 0 {
		c.logger.Info("no kafka consumers configured, skipping start")
		return nil
	}

	c.logger.Info("starting consumers", "count", len(c.consumers))

	g, ctx := errgroup.WithContext(ctx)
	for _, consumer := range c.consumers {
		consumer := consumer
		g.Go(func() error {
			return consumer.Start(ctx)
		})
	}

	return g.Wait()
}

// Stop 停止所有消费者
func (c *Consumer) Stop() error {
	c.logger.Info("stopping consumers")

	for _, consumer := range c.consumers {
		if err := consumer.Stop(); err != nil {
			c.logger.Error("failed to stop consumer", "error", err)
		}
	}

	return nil
}
