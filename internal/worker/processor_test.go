package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventpush/internal/providers/onesignal"
	sqsqueue "eventpush/internal/queue/sqs"
	"eventpush/internal/store"
)

type fakeStore struct {
	mu       sync.Mutex
	n        store.NotificationForWorker
	getErr   error
	busy     bool
	claims   int
	attempts []store.ProviderAttempt
	details  []store.ProviderDetailsUpdate
	marked   []store.StateUpdate
}

func (f *fakeStore) GetNotificationForWorker(ctx context.Context, id string) (store.NotificationForWorker, error) {
	return f.n, f.getErr
}

func (f *fakeStore) ClaimNotification(ctx context.Context, id string, now time.Time, staleAfter time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims++
	return !f.busy, nil
}

func (f *fakeStore) InsertAttempt(ctx context.Context, in store.ProviderAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, in)
	return nil
}

func (f *fakeStore) SetProviderDetails(ctx context.Context, in store.ProviderDetailsUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details = append(f.details, in)
	return nil
}

func (f *fakeStore) MarkState(ctx context.Context, in store.StateUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, in)
	return nil
}

type fakeResult struct {
	resp   onesignal.SendResponse
	status int
	err    error
}

type fakeSender struct {
	results []fakeResult
	reqs    []onesignal.SendRequest
}

func (f *fakeSender) SendPush(ctx context.Context, req onesignal.SendRequest) (onesignal.SendResponse, int, []byte, error) {
	f.reqs = append(f.reqs, req)
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r.resp, r.status, []byte(`{}`), r.err
}

type fakeBadges struct{ n int64 }

func (f *fakeBadges) Increment(ctx context.Context, receiverID string) (int64, error) {
	f.n++
	return f.n, nil
}

func (f *fakeBadges) Decrement(ctx context.Context, receiverID string) (int64, error) {
	if f.n > 0 {
		f.n--
	}
	return f.n, nil
}

func queuedNotification() store.NotificationForWorker {
	return store.NotificationForWorker{
		ReceiverID: "u1",
		TemplateID: "event_invite_v1",
		State:      "queued",
		Vars:       map[string]string{"host": "Ana", "event": "Picnic"},
		Route:      map[string]any{"screen": "tab", "tab": "INVITES"},
	}
}

func newProcessor(st *fakeStore, sender *fakeSender, badges BadgeCounter) *Processor {
	return &Processor{
		Store:  st,
		Sender: sender,
		Templates: map[string]Template{
			"event_invite_v1": {Heading: "New invite", Content: "{host} invited you to {event}"},
		},
		Badges: badges,
		Sleep:  func(context.Context, time.Duration) {},
	}
}

var job = sqsqueue.PushJob{NotificationID: "ntf_1", ReceiverID: "u1", IdempotencyKey: "k1"}

func TestProcessSubmits(t *testing.T) {
	st := &fakeStore{n: queuedNotification()}
	sender := &fakeSender{results: []fakeResult{{resp: onesignal.SendResponse{ID: "os_1"}, status: 200}}}
	p := newProcessor(st, sender, &fakeBadges{n: 2})

	require.NoError(t, p.Process(context.Background(), job))

	require.Len(t, sender.reqs, 1)
	req := sender.reqs[0]
	assert.Equal(t, "u1", req.ReceiverID)
	assert.Equal(t, "New invite", req.Heading)
	assert.Equal(t, "Ana invited you to Picnic", req.Content)
	assert.Equal(t, int64(3), req.BadgeCount)
	assert.Equal(t, "ntf_1", req.IdempotencyKey)
	assert.Equal(t, map[string]any{"screen": "tab", "tab": "INVITES"}, req.Data["route"])

	require.Len(t, st.details, 1)
	assert.Equal(t, "os_1", st.details[0].ProviderMsgID)
	assert.Equal(t, "submitted", st.details[0].State)
	assert.Equal(t, int64(3), st.details[0].BadgeCount)
	assert.Len(t, st.attempts, 1)
	assert.Empty(t, st.marked)
}

func TestProcessSkipsTerminalAndSubmitted(t *testing.T) {
	for _, n := range []store.NotificationForWorker{
		{State: "delivered"},
		{State: "suppressed"},
		{State: "submitted", ProviderMsgID: "os_1"},
	} {
		st := &fakeStore{n: n}
		sender := &fakeSender{}
		require.NoError(t, newProcessor(st, sender, nil).Process(context.Background(), job))
		assert.Empty(t, sender.reqs, "state %s", n.State)
		assert.Zero(t, st.claims, "state %s", n.State)
	}
}

func TestProcessRetriesTransientErrors(t *testing.T) {
	st := &fakeStore{n: queuedNotification()}
	sender := &fakeSender{results: []fakeResult{
		{status: 503, err: errors.New("unavailable")},
		{status: 429, err: errors.New("rate limited")},
		{resp: onesignal.SendResponse{ID: "os_2"}, status: 200},
	}}
	p := newProcessor(st, sender, nil)

	require.NoError(t, p.Process(context.Background(), job))
	assert.Len(t, sender.reqs, 3)
	assert.Len(t, st.attempts, 3)
	require.Len(t, st.details, 1)
	assert.Equal(t, "os_2", st.details[0].ProviderMsgID)
	assert.Equal(t, int64(0), sender.reqs[0].BadgeCount)
}

func TestProcessRetryExhausted(t *testing.T) {
	st := &fakeStore{n: queuedNotification()}
	sender := &fakeSender{results: []fakeResult{{status: 500, err: errors.New("boom")}}}
	p := newProcessor(st, sender, nil)

	err := p.Process(context.Background(), job)
	require.Error(t, err)
	assert.Len(t, sender.reqs, 3)
	require.Len(t, st.marked, 1)
	assert.Equal(t, "failed", st.marked[0].State)
	assert.Equal(t, "onesignal_retry_exhausted", st.marked[0].LastError)
}

func TestProcessNoRecipientsFailsWithoutRetry(t *testing.T) {
	st := &fakeStore{n: queuedNotification()}
	sender := &fakeSender{results: []fakeResult{{status: 200, err: &onesignal.NoRecipientsError{Detail: "All included players are not subscribed"}}}}
	p := newProcessor(st, sender, nil)

	require.NoError(t, p.Process(context.Background(), job))
	assert.Len(t, sender.reqs, 1)
	require.Len(t, st.marked, 1)
	assert.Equal(t, "no_recipients", st.marked[0].LastError)
}

func TestProcessUnknownTemplate(t *testing.T) {
	n := queuedNotification()
	n.TemplateID = "missing_v1"
	st := &fakeStore{n: n}
	sender := &fakeSender{}

	require.NoError(t, newProcessor(st, sender, nil).Process(context.Background(), job))
	assert.Empty(t, sender.reqs)
	require.Len(t, st.marked, 1)
	assert.Equal(t, "template_not_found", st.marked[0].LastError)
}

func TestProcessLoadError(t *testing.T) {
	st := &fakeStore{getErr: errors.New("db down")}
	assert.Error(t, newProcessor(st, &fakeSender{}, nil).Process(context.Background(), job))
}

func TestProcessClaimedElsewhere(t *testing.T) {
	st := &fakeStore{n: queuedNotification(), busy: true}
	sender := &fakeSender{}

	err := newProcessor(st, sender, nil).Process(context.Background(), job)
	require.ErrorIs(t, err, ErrClaimed)
	assert.Empty(t, sender.reqs)
	assert.Empty(t, st.marked)
}

func TestProcessBreakerOpenReleasesClaim(t *testing.T) {
	st := &fakeStore{n: queuedNotification()}
	sender := &fakeSender{results: []fakeResult{{status: 503, err: errors.New("unavailable")}}}
	p := newProcessor(st, sender, nil)
	p.Breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "test",
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	err := p.Process(context.Background(), job)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, sender.reqs, 1)
	require.Len(t, st.marked, 1)
	assert.Equal(t, "queued", st.marked[0].State)
	assert.Equal(t, "cb_open", st.marked[0].LastError)
}

func TestProcessBreakerOpenKeepsBadgeCount(t *testing.T) {
	st := &fakeStore{n: queuedNotification()}
	sender := &fakeSender{results: []fakeResult{{status: 503, err: errors.New("unavailable")}}}
	badges := &fakeBadges{n: 2}
	p := newProcessor(st, sender, badges)
	p.Breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "test",
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	// SQS redelivers the released job while the breaker stays open
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, p.Process(context.Background(), job), gobreaker.ErrOpenState)
	}
	assert.Len(t, sender.reqs, 1)
	assert.Equal(t, int64(2), badges.n)
}

func TestProcessUndeliveredKeepsBadgeCount(t *testing.T) {
	cases := map[string]fakeResult{
		"retry exhausted": {status: 500, err: errors.New("boom")},
		"no recipients":   {status: 200, err: &onesignal.NoRecipientsError{Detail: "All included players are not subscribed"}},
	}
	for name, res := range cases {
		t.Run(name, func(t *testing.T) {
			st := &fakeStore{n: queuedNotification()}
			badges := &fakeBadges{n: 4}
			p := newProcessor(st, &fakeSender{results: []fakeResult{res}}, badges)

			_ = p.Process(context.Background(), job)
			require.Len(t, st.marked, 1)
			assert.Equal(t, "failed", st.marked[0].State)
			assert.Equal(t, int64(4), badges.n)
		})
	}
}
