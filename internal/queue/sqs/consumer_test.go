package sqsqueue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type fakeSQS struct {
	mu      sync.Mutex
	sent    []*sqs.SendMessageInput
	batches [][]types.Message
	deleted []string
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	if len(f.batches) > 0 {
		b := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return &sqs.ReceiveMessageOutput{Messages: b}, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) deletedHandles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.deleted...)
	sort.Strings(out)
	return out
}

func msg(handle, body string) types.Message {
	return types.Message{ReceiptHandle: aws.String(handle), Body: aws.String(body)}
}

func TestPollConcurrentDeletesOnlyHandledMessages(t *testing.T) {
	fake := &fakeSQS{batches: [][]types.Message{{
		msg("ok", `{"notificationId":"ntf_1","receiverId":"u1"}`),
		msg("fail", `{"notificationId":"ntf_2","receiverId":"u2"}`),
		msg("garbage", `{not json`),
		{ReceiptHandle: aws.String("empty")},
	}}}
	c := &Consumer{SQS: fake, QueueURL: "q"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	done := make(chan error, 1)
	go func() {
		done <- c.PollConcurrent(ctx, 2, func(ctx context.Context, job PushJob) error {
			mu.Lock()
			seen = append(seen, job.NotificationID)
			mu.Unlock()
			if job.NotificationID == "ntf_2" {
				return errors.New("transient")
			}
			return nil
		})
	}()

	deadline := time.After(2 * time.Second)
	for len(fake.deletedHandles()) < 3 {
		select {
		case <-deadline:
			t.Fatalf("timed out, deleted %v", fake.deletedHandles())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	got := fake.deletedHandles()
	want := []string{"empty", "garbage", "ok"}
	if len(got) != len(want) {
		t.Fatalf("expected deletes %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected deletes %v, got %v", want, got)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected two handled jobs, got %v", seen)
	}
}

func TestWebhookProducerAndConsumer(t *testing.T) {
	fake := &fakeSQS{}
	p := &WebhookProducer{SQS: fake, QueueURL: "events"}
	ev := WebhookEvent{Provider: "onesignal", ProviderMsgID: "os_1", Event: "notification.clicked", ReceiverID: "u1",
		Data: map[string]any{"route": map[string]any{"screen": "tab", "tab": "INVITES"}}, ReceivedAt: time.Unix(1700000000, 0).UTC()}
	if err := p.Enqueue(context.Background(), ev); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	fake.batches = [][]types.Message{{msg("h1", *fake.sent[0].MessageBody)}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan WebhookEvent, 1)
	c := &WebhookConsumer{SQS: fake, QueueURL: "events"}
	go func() {
		_ = c.PollConcurrent(ctx, 1, func(ctx context.Context, ev WebhookEvent) error {
			got <- ev
			return nil
		})
	}()

	select {
	case e := <-got:
		if e.ProviderMsgID != "os_1" || e.ReceiverID != "u1" || e.Data["route"] == nil {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event not consumed")
	}
}
