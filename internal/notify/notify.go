// Package notify delivers outbound SMS requests to a downstream gateway.
// Delivery is fire-and-forget: callers log failures and move on.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Receipt acknowledges that a message was handed to the transport.
type Receipt struct {
	ID        string    `json:"id"`
	Transport string    `json:"transport"`
	QueuedAt  time.Time `json:"queuedAt"`
}

type Sender interface {
	SendSMS(ctx context.Context, userID, text string) (Receipt, error)
}

// SMSMessage is the payload placed on the queue or topic.
type SMSMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

func newMessage(userID, text string) SMSMessage {
	return SMSMessage{
		ID:        uuid.New().String(),
		UserID:    userID,
		Body:      text,
		CreatedAt: time.Now().UTC(),
	}
}

func (m SMSMessage) encode() ([]byte, error) {
	return json.Marshal(m)
}

// LogSender only logs messages. Used in development when no transport is set.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) SendSMS(_ context.Context, userID, text string) (Receipt, error) {
	msg := newMessage(userID, text)
	s.Logger.Info().
		Str("sms_id", msg.ID).
		Str("user_id", userID).
		Str("body", text).
		Msg("sms not sent: no transport configured")
	return Receipt{ID: msg.ID, Transport: "log", QueuedAt: msg.CreatedAt}, nil
}
