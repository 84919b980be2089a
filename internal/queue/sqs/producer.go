package sqsqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// API is the subset of *sqs.Client used by producers and consumers.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

const defaultGroupBuckets = 2000

type Producer struct {
	SQS      API
	QueueURL string

	// GroupBuckets bounds the number of FIFO message groups; <=0 uses the default.
	GroupBuckets int
}

type PushJob struct {
	NotificationID string `json:"notificationId"`
	ReceiverID     string `json:"receiverId"`
	IdempotencyKey string `json:"idempotencyKey"`
}

func (p *Producer) EnqueuePush(ctx context.Context, notificationID, receiverID, idempotencyKey string) error {
	job := PushJob{NotificationID: notificationID, ReceiverID: receiverID, IdempotencyKey: idempotencyKey}
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	// FIFO ordering per receiver without one group per user
	groupID := messageGroupIDBucketed(receiverID, p.GroupBuckets)
	_, err = p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               &p.QueueURL,
		MessageBody:            str(string(body)),
		MessageGroupId:         str(groupID),
		MessageDeduplicationId: str(idempotencyKey),
	})
	return err
}

func messageGroupIDBucketed(receiverID string, buckets int) string {
	if buckets <= 0 {
		buckets = defaultGroupBuckets
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(receiverID))
	return fmt.Sprintf("push-%d", h.Sum32()%uint32(buckets))
}

func str(s string) *string { return &s }
