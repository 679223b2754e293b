package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"app/internal/domain/event"

	"github.com/segmentio/kafka-go"
)

// event.Publisher のKafka実装。
// トピックは当事者ごとに分かれるのでWriter側は固定せずメッセージに載せる。
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           100 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e event.Event) error {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: e.Topic,
		Key:   []byte(e.Name),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(e.Name)},
		},
	}

	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
