package mq

// MessageQueue 消息队列接口
type MessageQueue interface {
	// Publish 发布消息，相同 key 的消息保持顺序
	Publish(topic, key string, message []byte) error
	Subscribe(topic string, handler func(message []byte) error) error
	Close() error
}
