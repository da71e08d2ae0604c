package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/Zereker/nlu/pkg/log"
)

var producerInstance *KafkaProducer

// Init 创建全局 Kafka 生产者，未开启时生产者为 nil
func Init(cfg KafkaConfig) error {
	producer, err := NewKafkaProducer(cfg)
	if err != nil {
		return err
	}
	producerInstance = producer
	return nil
}

// NewQueue 返回全局生产者，未初始化时为 nil
func NewQueue() *KafkaProducer {
	return producerInstance
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled     bool             `toml:"enabled"`
	Brokers     []string         `toml:"brokers"`
	ClientID    string           `toml:"client_id"`
	Version     string           `toml:"version"`     // broker 版本，如 "2.8.0"，为空使用 sarama 默认
	Compression string           `toml:"compression"` // none, gzip, snappy, lz4, zstd
	Consumers   []ConsumerConfig `toml:"consumers"`
}

// ConsumerConfig 单个消费组
type ConsumerConfig struct {
	Name   string   `toml:"name"`   // 仅用于日志
	Group  string   `toml:"group"`
	Topics []string `toml:"topics"`
	Offset string   `toml:"offset"` // 首次消费位置 newest 或 oldest，默认 newest
}

var compressionCodecs = map[string]sarama.CompressionCodec{
	"":       sarama.CompressionNone,
	"none":   sarama.CompressionNone,
	"gzip":   sarama.CompressionGZIP,
	"snappy": sarama.CompressionSnappy,
	"lz4":    sarama.CompressionLZ4,
	"zstd":   sarama.CompressionZSTD,
}

// Validate 验证配置
func (c *KafkaConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return fmt.Errorf("brokers is required when kafka is enabled")
	}
	if c.Version != "" {
		if _, err := sarama.ParseKafkaVersion(c.Version); err != nil {
			return fmt.Errorf("version is invalid: %w", err)
		}
	}
	if _, ok := compressionCodecs[strings.ToLower(c.Compression)]; !ok {
		return fmt.Errorf("unknown compression %q", c.Compression)
	}
	for i, consumer := range c.Consumers {
		if consumer.Group == "" {
			return fmt.Errorf("consumers[%d].group is required", i)
		}
		if len(consumer.Topics) == 0 {
			return fmt.Errorf("consumers[%d].topics is required", i)
		}
		switch consumer.Offset {
		case "", "newest", "oldest":
		default:
			return fmt.Errorf("consumers[%d].offset must be newest or oldest", i)
		}
	}
	return nil
}

// saramaConfig 生产者与消费者共用的客户端配置，调用前需先 Validate
func (c *KafkaConfig) saramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	if c.ClientID != "" {
		cfg.ClientID = c.ClientID
	}
	if c.Version != "" {
		cfg.Version, _ = sarama.ParseKafkaVersion(c.Version)
	}
	return cfg
}

func (c *KafkaConfig) producerConfig() *sarama.Config {
	cfg := c.saramaConfig()

	// 同一用户的记录落在同一分区，保持对话顺序
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Compression = compressionCodecs[strings.ToLower(c.Compression)]
	return cfg
}

func (c *KafkaConfig) consumerConfig(consumer ConsumerConfig) *sarama.Config {
	cfg := c.saramaConfig()

	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	if consumer.Offset == "oldest" {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	cfg.Consumer.Return.Errors = true
	return cfg
}

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, topic string, message []byte) error

// KafkaConsumer 一个消费组，处理失败的消息记录日志后跳过
type KafkaConsumer struct {
	logger  *slog.Logger
	topics  []string
	client  sarama.ConsumerGroup
	handler MessageHandler
	ready   chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewKafkaConsumer 创建消费组
func NewKafkaConsumer(cfg KafkaConfig, consumer ConsumerConfig, handler MessageHandler) (*KafkaConsumer, error) {
	client, err := sarama.NewConsumerGroup(cfg.Brokers, consumer.Group, cfg.consumerConfig(consumer))
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	name := consumer.Name
	if name == "" {
		name = consumer.Group
	}

	return &KafkaConsumer{
		logger:  log.Logger("kafka-consumer").With("name", name),
		topics:  consumer.Topics,
		client:  client,
		handler: handler,
		ready:   make(chan struct{}),
	}, nil
}

// Start 在后台消费，直到首次分配分区或 ctx 结束后返回
func (c *KafkaConsumer) Start(ctx context.Context) error {
	if c == nil {
		return nil
	}

	ctx, c.cancel = context.WithCancel(ctx)
	ready := c.ready

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		for err := range c.client.Errors() {
			c.logger.Warn("consumer group error", "error", err)
		}
	}()
	go func() {
		defer c.wg.Done()
		c.consume(ctx, ready)
	}()

	select {
	case <-ready:
		c.logger.Info("consumer started", "topics", c.topics)
	case <-ctx.Done():
	}

	return nil
}

// consume 每次 rebalance 后 Consume 返回，需重新加入消费组
func (c *KafkaConsumer) consume(ctx context.Context, ready chan struct{}) {
	for {
		handler := &groupHandler{
			ready:   ready,
			handler: c.handler,
			logger:  c.logger,
		}

		if err := c.client.Consume(ctx, c.topics, handler); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			c.logger.Error("consume failed", "error", err)

			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
		}

		if ctx.Err() != nil {
			return
		}

		// 只有第一轮会关闭 Start 等待的 ready
		ready = make(chan struct{})
	}
}

// Stop 停止消费并关闭消费组
func (c *KafkaConsumer) Stop() error {
	if c == nil {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	var err error
	if c.client != nil {
		// Close 会关闭 Errors 通道，错误日志协程随之退出
		err = c.client.Close()
	}

	c.wg.Wait()
	return err
}

// groupHandler 实现 sarama.ConsumerGroupHandler
type groupHandler struct {
	ready   chan struct{}
	once    sync.Once
	handler MessageHandler
	logger  *slog.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.once.Do(func() { close(h.ready) })
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			if err := h.handler(session.Context(), message.Topic, message.Value); err != nil {
				h.logger.Error("failed to handle message",
					"topic", message.Topic,
					"partition", message.Partition,
					"offset", message.Offset,
					"error", err,
				)
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// HeaderContentType 每条消息携带的内容类型
const HeaderContentType = "content-type"

// KafkaProducer 同步生产者，key 决定分区
type KafkaProducer struct {
	logger *slog.Logger
	client sarama.SyncProducer
}

var _ MessageQueue = (*KafkaProducer)(nil)

// NewKafkaProducer 创建生产者，未开启时返回 nil
func NewKafkaProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client, err := sarama.NewSyncProducer(cfg.Brokers, cfg.producerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	return newKafkaProducer(client), nil
}

func newKafkaProducer(client sarama.SyncProducer) *KafkaProducer {
	return &KafkaProducer{
		logger: log.Logger("kafka-producer"),
		client: client,
	}
}

// Publish 发布一条 JSON 消息
func (p *KafkaProducer) Publish(topic, key string, message []byte) error {
	if p == nil {
		return nil
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(message),
		Headers: []sarama.RecordHeader{
			{Key: []byte(HeaderContentType), Value: []byte("application/json")},
		},
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := p.client.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send to %s: %w", topic, err)
	}

	p.logger.Debug("message sent", "topic", topic, "partition", partition, "offset", offset)
	return nil
}

// Close 关闭生产者
func (p *KafkaProducer) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Subscribe 生产者不支持订阅，消费使用 KafkaConsumer
func (p *KafkaProducer) Subscribe(string, func([]byte) error) error {
	return fmt.Errorf("kafka producer does not support subscribe, use KafkaConsumer instead")
}
