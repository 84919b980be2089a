package sqsqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type Consumer struct {
	SQS      API
	QueueURL string

	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
}

type Handler func(ctx context.Context, job PushJob) error

func (c *Consumer) receiver() receiver {
	return receiver{
		sqs: c.SQS, queueURL: c.QueueURL,
		waitTime: c.WaitTimeSeconds, maxMsgs: c.MaxMessages, visibility: c.VisibilityTimeout,
	}
}

func (c *Consumer) Poll(ctx context.Context, handler Handler) error {
	return c.PollConcurrent(ctx, 1, handler)
}

// PollConcurrent processes messages with a worker pool. Messages are deleted only after handler completes.
func (c *Consumer) PollConcurrent(ctx context.Context, workers int, handler Handler) error {
	return pollConcurrent(ctx, c.receiver(), workers, func(ctx context.Context, job PushJob) error {
		err := handler(ctx, job)
		if err != nil {
			slog.Error("sqs push handler error", "err", err, "notification_id", job.NotificationID)
		}
		return err
	})
}

type receiver struct {
	sqs        API
	queueURL   string
	waitTime   int32
	maxMsgs    int32
	visibility int32
}

func (r receiver) delete(ctx context.Context, m types.Message) {
	_, _ = r.sqs.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &r.queueURL,
		ReceiptHandle: m.ReceiptHandle,
	})
}

// pollConcurrent fans received messages out to workers. Undecodable bodies are deleted
// to avoid endless redrive; handler errors leave the message for SQS redrive/DLQ.
func pollConcurrent[T any](ctx context.Context, r receiver, workers int, handle func(context.Context, T) error) error {
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan types.Message, workers*2)
	errCh := make(chan error, 1)

	sendErr := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if m.Body == nil {
					r.delete(ctx, m)
					continue
				}

				var job T
				if err := json.Unmarshal([]byte(*m.Body), &job); err != nil {
					r.delete(ctx, m)
					continue
				}

				if err := handle(ctx, job); err == nil {
					r.delete(ctx, m)
				}
			}
		}()
	}

	// Producer: fetch messages and enqueue for workers
	go func() {
		defer close(jobs)

		for {
			if ctx.Err() != nil {
				sendErr(ctx.Err())
				return
			}

			out, err := r.sqs.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            &r.queueURL,
				MaxNumberOfMessages: r.maxMsgs,
				WaitTimeSeconds:     r.waitTime,
				VisibilityTimeout:   r.visibility,
			})
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				slog.Error("sqs receive message failed", "err", err, "queue_url", r.queueURL)
				select {
				case <-time.After(500 * time.Millisecond):
				case <-ctx.Done():
				}
				continue
			}

			for _, m := range out.Messages {
				select {
				case jobs <- m:
				case <-ctx.Done():
					sendErr(ctx.Err())
					return
				}
			}
		}
	}()

	// Wait for shutdown signal (ctx canceled) or producer signals error
	err := <-errCh

	// Let workers finish whatever is already in `jobs` (channel will be closed by producer)
	wg.Wait()
	return err
}
