package webhook

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"eventpush/internal/domain"
	"eventpush/internal/observability"
	"eventpush/internal/pending"
	"eventpush/internal/providers/onesignal"
	sqsqueue "eventpush/internal/queue/sqs"
	"eventpush/internal/route"
	"eventpush/internal/store"
	"eventpush/internal/util"
)

var ErrUnknownNotification = errors.New("notification not found for provider_msg_id")

type Store interface {
	UpdateByProviderMsgID(ctx context.Context, in store.ProviderMsgUpdate) (bool, error)
	ProviderMsgExists(ctx context.Context, provider, providerMsgID string) (bool, error)
	InsertDeliveryEvent(ctx context.Context, in store.DeliveryEvent) error
}

// Processor applies OneSignal events pulled off the webhook queue.
type Processor struct {
	Store   Store
	Pending pending.Store
}

func (p *Processor) Handle(ctx context.Context, ev sqsqueue.WebhookEvent) error {
	// Make DB work bounded. Errors cause SQS redrive.
	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		newState  domain.NotificationState
		keep      []string
		lastError string
	)
	switch ev.Event {
	case onesignal.EventClicked:
		newState = domain.StateOpened
		keep = []string{string(domain.StateOpened)}
	case onesignal.EventDisplayed, onesignal.EventDelivered:
		newState = domain.StateDelivered
		keep = []string{string(domain.StateDelivered), string(domain.StateOpened)}
	case onesignal.EventFailed:
		newState = domain.StateFailed
		keep = []string{string(domain.StateDelivered), string(domain.StateOpened), string(domain.StateFailed)}
		lastError = "onesignal_delivery_failed"
	default:
		slog.Info("webhook event ignored", "event", ev.Event, "provider_msg_id", ev.ProviderMsgID)
	}

	if newState != "" {
		updated, err := p.Store.UpdateByProviderMsgID(dbCtx, store.ProviderMsgUpdate{
			Provider:      ev.Provider,
			ProviderMsgID: ev.ProviderMsgID,
			NewState:      string(newState),
			KeepStates:    keep,
			LastError:     lastError,
			Now:           util.NowUTC(),
		})
		if err != nil {
			return err
		}
		if !updated {
			// Either a replay against a row already past this state, or the worker has not
			// stored provider_msg_id yet. Only the latter is retried.
			exists, err := p.Store.ProviderMsgExists(dbCtx, ev.Provider, ev.ProviderMsgID)
			if err != nil {
				return err
			}
			if !exists {
				return ErrUnknownNotification
			}
		}
		// Only the first click for a notification queues navigation.
		if updated && newState == domain.StateOpened {
			if err := p.storePendingRoute(dbCtx, ev); err != nil {
				return err
			}
		}
	}

	return p.Store.InsertDeliveryEvent(dbCtx, store.DeliveryEvent{
		Provider:      ev.Provider,
		ProviderMsgID: ev.ProviderMsgID,
		Event:         ev.Event,
		ReceiverID:    receiverID(ev),
		Payload:       ev.Data,
		OccurredAt:    ev.OccurredAt,
	})
}

func (p *Processor) storePendingRoute(ctx context.Context, ev sqsqueue.WebhookEvent) error {
	receiver := receiverID(ev)
	d, ok := route.Parse(ev.Data)
	if !ok || receiver == "" || p.Pending == nil {
		observability.RouteParses.WithLabelValues("none").Inc()
		return nil
	}
	observability.RouteParses.WithLabelValues("ok").Inc()
	return p.Pending.Set(ctx, receiver, d)
}

// receiverID prefers the external id OneSignal reports, then the id the worker put in data.
func receiverID(ev sqsqueue.WebhookEvent) string {
	if ev.ReceiverID != "" {
		return ev.ReceiverID
	}
	if s, ok := ev.Data["receiverId"].(string); ok {
		return s
	}
	return ""
}
