package service

import (
	"context"
	"time"

	"eventpush/internal/observability"
	"eventpush/internal/pending"
	"eventpush/internal/route"
)

type BadgeResetter interface {
	Reset(ctx context.Context, receiverID string) error
}

type RouteService struct {
	Pending pending.Store
	Badges  BadgeResetter
}

// Resolve parses a raw notification payload and returns the route in wire form.
func (s *RouteService) Resolve(raw map[string]any) (route.Payload, bool) {
	d, ok := route.Parse(raw)
	if !ok {
		observability.RouteParses.WithLabelValues("none").Inc()
		return nil, false
	}
	observability.RouteParses.WithLabelValues("ok").Inc()
	return route.Build(d), true
}

// PendingRoute consumes the receiver's pending route. With wait > 0 and a store that
// supports it, it blocks up to wait for one to arrive.
func (s *RouteService) PendingRoute(ctx context.Context, receiverID string, wait time.Duration) (route.Payload, bool, error) {
	var (
		d   route.Destination
		ok  bool
		err error
	)
	if w, canWait := s.Pending.(pending.Waiter); canWait && wait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		d, ok, err = w.Wait(waitCtx, receiverID)
	} else {
		d, ok, err = s.Pending.Take(ctx, receiverID)
	}
	if err != nil || !ok {
		return nil, false, err
	}
	return route.Build(d), true, nil
}

func (s *RouteService) ResetBadge(ctx context.Context, receiverID string) error {
	if s.Badges == nil {
		return nil
	}
	return s.Badges.Reset(ctx, receiverID)
}
