package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// ReportJob asks the worker to build one weekly report and email it.
type ReportJob struct {
	ClientID        string    `json:"client_id"`
	TherapistUserID string    `json:"therapist_user_id"`
	Week            string    `json:"week"`
	Recipient       string    `json:"recipient"`
	RequestedAt     time.Time `json:"requested_at"`
}

func (j ReportJob) validate() error {
	if j.ClientID == "" || j.TherapistUserID == "" || j.Week == "" || j.Recipient == "" {
		return errors.New("report job is missing fields")
	}
	return nil
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type SQSQueue struct {
	client sqsAPI
	URL    string
	// Backoff after a failed receive.
	Backoff time.Duration
	// MaxReceives drops a job that has failed this many deliveries. Zero
	// leaves it to the queue's redrive policy.
	MaxReceives int
}

func NewSQS(ctx context.Context, queueURL string) (*SQSQueue, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SQSQueue{client: sqs.NewFromConfig(cfg), URL: queueURL, Backoff: 5 * time.Second, MaxReceives: 5}, nil
}

func (q *SQSQueue) EnqueueReport(ctx context.Context, job ReportJob) error {
	if err := job.validate(); err != nil {
		return err
	}
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.URL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("enqueue report job: %w", err)
	}
	return nil
}

type Handler func(ctx context.Context, job ReportJob) error

// Consume long-polls the queue until ctx is cancelled. Jobs that fail are
// left on the queue so SQS redelivers them after the visibility timeout,
// until MaxReceives is reached. Undecodable messages are deleted.
func (q *SQSQueue) Consume(ctx context.Context, handle Handler) {
	for ctx.Err() == nil {
		if err := q.poll(ctx, handle); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("queue receive error: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(q.Backoff):
			}
		}
	}
}

func (q *SQSQueue) poll(ctx context.Context, handle Handler) error {
	resp, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.URL),
		MaxNumberOfMessages: 5,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   180,
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
			sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return err
	}
	for _, m := range resp.Messages {
		if m.Body == nil {
			q.delete(ctx, m)
			continue
		}
		var job ReportJob
		if err := json.Unmarshal([]byte(*m.Body), &job); err != nil || job.validate() != nil {
			log.Printf("dropping malformed report job: %s", aws.ToString(m.MessageId))
			q.delete(ctx, m)
			continue
		}
		jobCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		err := handle(jobCtx, job)
		cancel()
		if err != nil {
			log.Printf("report job client=%s week=%s failed: %v", job.ClientID, job.Week, err)
			if n := receiveCount(m); q.MaxReceives > 0 && n >= q.MaxReceives {
				log.Printf("giving up on report job %s after %d deliveries", aws.ToString(m.MessageId), n)
				q.delete(ctx, m)
			}
			continue
		}
		q.delete(ctx, m)
	}
	return nil
}

func receiveCount(m sqstypes.Message) int {
	n, err := strconv.Atoi(m.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)])
	if err != nil {
		return 0
	}
	return n
}

func (q *SQSQueue) delete(ctx context.Context, m sqstypes.Message) {
	if m.ReceiptHandle == nil {
		return
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.URL),
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		log.Printf("failed to delete SQS message: %v", err)
	}
}
