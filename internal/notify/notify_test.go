package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	id := "sqs-msg-1"
	return &sqs.SendMessageOutput{MessageId: &id}, nil
}

func TestSQSSender_SendSMS(t *testing.T) {
	fake := &fakeSQS{}
	s := NewSQSSender(fake, "https://sqs.local/queue/sms")

	receipt, err := s.SendSMS(context.Background(), "user-1", "Your appointment is confirmed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.ID != "sqs-msg-1" || receipt.Transport != "sqs" {
		t.Errorf("unexpected receipt %+v", receipt)
	}
	if *fake.input.QueueUrl != "https://sqs.local/queue/sms" {
		t.Errorf("unexpected queue %s", *fake.input.QueueUrl)
	}

	var msg SMSMessage
	if err := json.Unmarshal([]byte(*fake.input.MessageBody), &msg); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if msg.UserID != "user-1" || msg.Body != "Your appointment is confirmed" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestSQSSender_Error(t *testing.T) {
	s := NewSQSSender(&fakeSQS{err: errors.New("throttled")}, "q")
	if _, err := s.SendSMS(context.Background(), "u", "x"); err == nil {
		t.Error("expected error")
	}
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSender_SendSMS(t *testing.T) {
	w := &fakeWriter{}
	s := NewKafkaSender(w)

	receipt, err := s.SendSMS(context.Background(), "user-7", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Transport != "kafka" || receipt.ID == "" {
		t.Errorf("unexpected receipt %+v", receipt)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "user-7" {
		t.Errorf("expected key user-7, got %s", w.msgs[0].Key)
	}
	if !strings.Contains(string(w.msgs[0].Value), `"body":"hello"`) {
		t.Errorf("unexpected value %s", w.msgs[0].Value)
	}

	s.Close()
	if !w.closed {
		t.Error("expected writer to be closed")
	}
}

func TestKafkaSender_Error(t *testing.T) {
	s := NewKafkaSender(&fakeWriter{err: errors.New("no brokers")})
	if _, err := s.SendSMS(context.Background(), "u", "x"); err == nil {
		t.Error("expected error")
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := LogSender{Logger: zerolog.New(&buf)}
	receipt, err := s.SendSMS(context.Background(), "user-1", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Transport != "log" {
		t.Errorf("unexpected transport %s", receipt.Transport)
	}
	if !strings.Contains(buf.String(), `"user_id":"user-1"`) {
		t.Errorf("expected user id in log, got %s", buf.String())
	}
}
