package notify

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes SMS requests to a topic keyed by user id, so one
// user's messages stay ordered within a partition.
type KafkaSender struct {
	writer MessageWriter
}

func NewKafkaSender(writer MessageWriter) *KafkaSender {
	return &KafkaSender{writer: writer}
}

// NewKafkaWriter creates a writer for topic on brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func (s *KafkaSender) SendSMS(ctx context.Context, userID, text string) (Receipt, error) {
	msg := newMessage(userID, text)
	body, err := msg.encode()
	if err != nil {
		return Receipt{}, fmt.Errorf("encode sms: %w", err)
	}
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(userID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("sms")},
		},
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("publish sms to kafka: %w", err)
	}
	return Receipt{ID: msg.ID, Transport: "kafka", QueuedAt: msg.CreatedAt}, nil
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
