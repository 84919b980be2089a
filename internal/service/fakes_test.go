package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"eventpush/internal/store"
)

type fakeStore struct {
	mu        sync.Mutex
	byIdem    map[string]store.IdempotencyResult
	inserted  []store.NotificationInsert
	states    map[string]store.StateUpdate
	optedOut  map[string]bool
	insertErr error

	phones map[string]string
	events []store.EventInvites
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byIdem:   map[string]store.IdempotencyResult{},
		states:   map[string]store.StateUpdate{},
		optedOut: map[string]bool{},
		phones:   map[string]string{},
	}
}

func (f *fakeStore) FindByIdempotency(ctx context.Context, idemKey string) (store.IdempotencyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byIdem[idemKey], nil
}

func (f *fakeStore) InsertNotification(ctx context.Context, in store.NotificationInsert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, in)
	f.byIdem[in.IdemKey] = store.IdempotencyResult{NotificationID: in.ID, State: in.State, Found: true}
	return nil
}

func (f *fakeStore) MarkState(ctx context.Context, in store.StateUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[in.ID] = in
	return nil
}

func (f *fakeStore) GetNotification(ctx context.Context, id string) (store.Notification, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.inserted {
		if n.ID == id {
			return store.Notification{ID: n.ID, ReceiverID: n.ReceiverID, TemplateID: n.TemplateID, Route: n.Route, State: n.State}, true, nil
		}
	}
	return store.Notification{}, false, nil
}

func (f *fakeStore) IsOptedOut(ctx context.Context, receiverID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.optedOut[receiverID], nil
}

func (f *fakeStore) SetUserPhone(ctx context.Context, userID, e164, canonical string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phones[userID] = e164
	return nil
}

func (f *fakeStore) GetUserPhone(ctx context.Context, userID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.phones[userID]
	return p, ok, nil
}

func (f *fakeStore) ListEventInvites(ctx context.Context) ([]store.EventInvites, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events, nil
}

func (f *fakeStore) SetEventInvites(ctx context.Context, in store.EventInvites, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, in)
	return nil
}

type fakeQueue struct {
	enqueued []string
	err      error
}

func (q *fakeQueue) EnqueuePush(ctx context.Context, notificationID, receiverID, idempotencyKey string) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, notificationID)
	return nil
}

var errBoom = errors.New("boom")
