package aws

import (
	"context"
	"fmt"
	"time"

	"speech-to-text/internal/domain/ports/adapter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
)

// SQS caps long polling at 20 seconds and batches at 10 messages.
const (
	maxWaitSeconds = 20
	maxBatch       = 10
)

// SQSAPI is the subset of *sqs.Client the queue uses.
type SQSAPI interface {
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

var _ adapter.Queue = (*SQSQueue)(nil)

type SQSQueue struct {
	api  SQSAPI
	name string
	url  string
	log  *zerolog.Logger
}

func NewSQSClient(cfg aws.Config) *sqs.Client { return sqs.NewFromConfig(cfg) }

// NewSQSQueue looks the queue up by name.
func NewSQSQueue(ctx context.Context, api SQSAPI, name string, logger *zerolog.Logger) (*SQSQueue, error) {
	out, err := api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return nil, fmt.Errorf("get queue url %s: %w", name, err)
	}
	l := logger.With().Str("component", "SQSQueue").Str("queue", name).Logger()
	return &SQSQueue{api: api, name: name, url: aws.ToString(out.QueueUrl), log: &l}, nil
}

func (q *SQSQueue) Name() string { return q.name }

func (q *SQSQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]adapter.Message, error) {
	if max < 1 {
		max = 1
	}
	if max > maxBatch {
		max = maxBatch
	}
	secs := int32(wait / time.Second)
	if secs > maxWaitSeconds {
		secs = maxWaitSeconds
	}
	out, err := q.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     secs,
	})
	if err != nil {
		return nil, err
	}
	msgs := make([]adapter.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, adapter.Message{
			ID:      aws.ToString(m.MessageId),
			Body:    []byte(aws.ToString(m.Body)),
			Receipt: aws.ToString(m.ReceiptHandle),
		})
	}
	q.log.Debug().Int("count", len(msgs)).Msg("received")
	return msgs, nil
}

func (q *SQSQueue) Delete(ctx context.Context, msg adapter.Message) error {
	_, err := q.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(msg.Receipt),
	})
	return err
}

func (q *SQSQueue) Send(ctx context.Context, body []byte) error {
	out, err := q.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return err
	}
	q.log.Debug().Str("message_id", aws.ToString(out.MessageId)).Msg("sent")
	return nil
}
