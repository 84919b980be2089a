package service

import (
	"context"
	"time"

	"eventpush/internal/domain"
	"eventpush/internal/phone"
	"eventpush/internal/store"
	"eventpush/internal/util"
)

type UserStore interface {
	SetUserPhone(ctx context.Context, userID, e164, canonical string, now time.Time) error
	GetUserPhone(ctx context.Context, userID string) (string, bool, error)
	ListEventInvites(ctx context.Context) ([]store.EventInvites, error)
}

type UserService struct {
	Store UserStore
	Now   func() time.Time
}

func (s *UserService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return util.NowUTC()
}

// SetPhone normalizes and persists a user's number. The stored value is always E.164.
func (s *UserService) SetPhone(ctx context.Context, userID string, req domain.SetPhoneRequest) (domain.PhoneResponse, error) {
	var e164 string
	if req.CountryCode != "" || req.Number != "" {
		e164 = phone.E164WithCountry(req.CountryCode, req.Number)
	} else {
		e164 = phone.E164(req.Phone)
	}
	if e164 == "" || !phone.Valid(e164) {
		return domain.PhoneResponse{}, domain.ErrInvalidPhone
	}

	canonical := phone.Canonical(e164)
	if err := s.Store.SetUserPhone(ctx, userID, e164, canonical, s.now()); err != nil {
		return domain.PhoneResponse{}, err
	}
	return domain.PhoneResponse{
		UserID:    userID,
		Phone:     e164,
		Canonical: canonical,
		Region:    phone.Region(e164),
	}, nil
}

// InvitedEvents lists events whose invite list holds a number matching the user's phone.
func (s *UserService) InvitedEvents(ctx context.Context, userID string) ([]domain.InvitedEvent, error) {
	p, found, err := s.Store.GetUserPhone(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrNotFound
	}

	events, err := s.Store.ListEventInvites(ctx)
	if err != nil {
		return nil, err
	}
	out := []domain.InvitedEvent{}
	for _, ev := range events {
		for _, invited := range ev.Phones {
			if phone.NumbersMatch(p, invited) {
				out = append(out, domain.InvitedEvent{EventID: ev.EventID, Title: ev.Title})
				break
			}
		}
	}
	return out, nil
}
