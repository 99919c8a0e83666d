// Package deadletter records outbound Bot API calls that failed after all
// retries so they can be inspected or replayed.
package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/wolfman30/operator-relay/pkg/logging"
)

// FailedSend describes one outbound call that was given up on.
type FailedSend struct {
	Method   string    `json:"method"`
	ChatID   int64     `json:"chat_id"`
	FileID   string    `json:"file_id,omitempty"`
	Text     string    `json:"text,omitempty"`
	Attempts int       `json:"attempts"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// Sink receives failed sends.
type Sink interface {
	Record(ctx context.Context, failed FailedSend) error
}

// LogSink writes failed sends to the structured log only.
type LogSink struct {
	logger *logging.Logger
}

func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(_ context.Context, failed FailedSend) error {
	s.logger.Error("outbound send dead-lettered",
		"method", failed.Method,
		"chat_id", failed.ChatID,
		"attempts", failed.Attempts,
		"error", failed.Error,
	)
	return nil
}

type sqsAPI interface {
	SendMessage(context.Context, *sqs.SendMessageInput, ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink publishes failed sends as JSON messages to an SQS queue.
type SQSSink struct {
	client   sqsAPI
	queueURL string
}

// NewSQSSink creates a sink around the provided SQS client.
func NewSQSSink(client sqsAPI, queueURL string) *SQSSink {
	if client == nil {
		panic("deadletter: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("deadletter: SQS queueURL cannot be empty")
	}
	return &SQSSink{client: client, queueURL: queueURL}
}

func (s *SQSSink) Record(ctx context.Context, failed FailedSend) error {
	if failed.FailedAt.IsZero() {
		failed.FailedAt = time.Now().UTC()
	}
	body, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("deadletter: marshal failed send: %w", err)
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"method": {DataType: aws.String("String"), StringValue: aws.String(failed.Method)},
		},
	})
	if err != nil {
		return fmt.Errorf("deadletter: failed to send SQS message: %w", err)
	}
	return nil
}

// Multi fans a failed send out to every sink, joining their errors.
type Multi []Sink

func (m Multi) Record(ctx context.Context, failed FailedSend) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, failed); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
