package service

import (
	"context"
	"log/slog"
	"time"

	"eventpush/internal/domain"
	"eventpush/internal/observability"
	"eventpush/internal/route"
	"eventpush/internal/store"
)

type Store interface {
	FindByIdempotency(ctx context.Context, idemKey string) (store.IdempotencyResult, error)
	InsertNotification(ctx context.Context, in store.NotificationInsert) error
	MarkState(ctx context.Context, in store.StateUpdate) error
	GetNotification(ctx context.Context, id string) (store.Notification, bool, error)
	IsOptedOut(ctx context.Context, receiverID string) (bool, error)
}

type Queue interface {
	EnqueuePush(ctx context.Context, notificationID, receiverID, idempotencyKey string) error
}

type NotificationService struct {
	Store Store
	Queue Queue
}

func (s *NotificationService) CreateAndEnqueuePush(ctx context.Context, req domain.CreatePushRequest, notificationID string, now time.Time) (domain.CreateResponse, error) {
	dest, err := req.Destination.ToDestination()
	if err != nil {
		return domain.CreateResponse{}, err
	}

	// 1) idempotency
	if res, err := s.Store.FindByIdempotency(ctx, req.IdempotencyKey); err != nil {
		return domain.CreateResponse{}, err
	} else if res.Found {
		return domain.CreateResponse{NotificationID: res.NotificationID, State: res.State}, nil
	}

	// 2) create row with the wire route
	if err := s.Store.InsertNotification(ctx, store.NotificationInsert{
		ID:         notificationID,
		ReceiverID: req.ReceiverID,
		IdemKey:    req.IdempotencyKey,
		TemplateID: req.TemplateID,
		Vars:       req.Vars,
		Route:      route.Build(dest),
		State:      string(domain.StateQueued),
		Now:        now,
	}); err != nil {
		return domain.CreateResponse{}, err
	}

	// 3) receiver opted out of pushes
	if out, err := s.Store.IsOptedOut(ctx, req.ReceiverID); err != nil {
		return domain.CreateResponse{}, err
	} else if out {
		observability.Suppressed.WithLabelValues("opted_out").Inc()
		s.markState(ctx, notificationID, domain.StateSuppressed, "opted_out", now)
		return domain.CreateResponse{NotificationID: notificationID, State: string(domain.StateSuppressed)}, nil
	}

	// 4) enqueue
	if err := s.Queue.EnqueuePush(ctx, notificationID, req.ReceiverID, req.IdempotencyKey); err != nil {
		observability.Enqueues.WithLabelValues("error").Inc()
		s.markState(ctx, notificationID, domain.StateFailed, "enqueue_failed", now)
		return domain.CreateResponse{}, err
	}
	observability.Enqueues.WithLabelValues("ok").Inc()

	return domain.CreateResponse{NotificationID: notificationID, State: string(domain.StateQueued)}, nil
}

func (s *NotificationService) markState(ctx context.Context, id string, state domain.NotificationState, reason string, now time.Time) {
	if err := s.Store.MarkState(ctx, store.StateUpdate{ID: id, State: string(state), LastError: reason, Now: now}); err != nil {
		slog.Error("mark notification state failed", "err", err, "notification_id", id, "state", state)
	}
}

func (s *NotificationService) GetNotification(ctx context.Context, id string) (store.Notification, bool, error) {
	return s.Store.GetNotification(ctx, id)
}
