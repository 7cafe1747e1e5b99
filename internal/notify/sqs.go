package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// MessageSender is the subset of the SQS client used here.
type MessageSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSender enqueues SMS requests on an SQS queue read by the SMS gateway.
type SQSSender struct {
	client   MessageSender
	queueURL string
}

func NewSQSSender(client MessageSender, queueURL string) *SQSSender {
	return &SQSSender{client: client, queueURL: queueURL}
}

// NewSQSSenderFromQueueName loads AWS config and resolves the queue URL.
func NewSQSSenderFromQueueName(ctx context.Context, region, endpoint, queueName string) (*SQSSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	resp, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(queueName)})
	if err != nil {
		return nil, fmt.Errorf("get SQS queue URL for %s: %w", queueName, err)
	}
	return NewSQSSender(client, aws.ToString(resp.QueueUrl)), nil
}

func (s *SQSSender) SendSMS(ctx context.Context, userID, text string) (Receipt, error) {
	msg := newMessage(userID, text)
	body, err := msg.encode()
	if err != nil {
		return Receipt{}, fmt.Errorf("encode sms: %w", err)
	}
	out, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("send sms to SQS: %w", err)
	}
	id := msg.ID
	if out != nil && out.MessageId != nil {
		id = *out.MessageId
	}
	return Receipt{ID: id, Transport: "sqs", QueuedAt: msg.CreatedAt}, nil
}
