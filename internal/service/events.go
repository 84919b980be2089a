package service

import (
	"context"
	"time"

	"eventpush/internal/domain"
	"eventpush/internal/phone"
	"eventpush/internal/store"
	"eventpush/internal/util"
)

type EventStore interface {
	SetEventInvites(ctx context.Context, in store.EventInvites, now time.Time) error
}

type EventService struct {
	Store EventStore
	Now   func() time.Time
}

// SetInvites replaces an event's invite list with the normalized, de-duplicated numbers.
func (s *EventService) SetInvites(ctx context.Context, eventID string, req domain.SetInvitesRequest) (domain.InvitesResponse, error) {
	if eventID == "" {
		return domain.InvitesResponse{}, domain.ErrMissingFields
	}
	phones := phone.Dedupe(req.Phones)

	now := util.NowUTC()
	if s.Now != nil {
		now = s.Now()
	}
	if err := s.Store.SetEventInvites(ctx, store.EventInvites{EventID: eventID, Title: req.Title, Phones: phones}, now); err != nil {
		return domain.InvitesResponse{}, err
	}
	return domain.InvitesResponse{EventID: eventID, Phones: phones}, nil
}
