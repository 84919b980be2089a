package sqsqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// WebhookEvent is an internal envelope for provider callbacks.
// Keep it small; SQS has a 256KB message size limit.
type WebhookEvent struct {
	Provider      string         `json:"provider"`
	ProviderMsgID string         `json:"providerMsgId"`
	Event         string         `json:"event"`
	ReceiverID    string         `json:"receiverId,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	OccurredAt    *time.Time     `json:"occurredAt,omitempty"`
	ReceivedAt    time.Time      `json:"receivedAt"`
}

type WebhookProducer struct {
	SQS      API
	QueueURL string
}

func (p *WebhookProducer) Enqueue(ctx context.Context, ev WebhookEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: str(string(body)),
	})
	return err
}

type WebhookHandler func(ctx context.Context, ev WebhookEvent) error

type WebhookConsumer struct {
	SQS      API
	QueueURL string

	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
}

// PollConcurrent processes webhook events with a worker pool. Messages are deleted only after handler completes.
func (c *WebhookConsumer) PollConcurrent(ctx context.Context, workers int, handler WebhookHandler) error {
	r := receiver{
		sqs: c.SQS, queueURL: c.QueueURL,
		waitTime: c.WaitTimeSeconds, maxMsgs: c.MaxMessages, visibility: c.VisibilityTimeout,
	}
	return pollConcurrent(ctx, r, workers, func(ctx context.Context, ev WebhookEvent) error {
		err := handler(ctx, ev)
		if err != nil {
			slog.Error("sqs webhook handler error", "err", err, "provider", ev.Provider, "event", ev.Event, "provider_msg_id", ev.ProviderMsgID)
		}
		return err
	})
}
