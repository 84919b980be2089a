package worker

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"eventpush/internal/domain"
	"eventpush/internal/observability"
	"eventpush/internal/providers/onesignal"
	sqsqueue "eventpush/internal/queue/sqs"
	"eventpush/internal/store"
	"eventpush/internal/util"
)

const (
	providerName           = "onesignal"
	defaultClaimStaleAfter = 2 * time.Minute
)

// ErrClaimed means another worker holds a fresh claim on the notification. The job is
// left on the queue and skipped once that worker finishes.
var ErrClaimed = errors.New("notification claimed by another worker")

type Store interface {
	GetNotificationForWorker(ctx context.Context, id string) (store.NotificationForWorker, error)
	ClaimNotification(ctx context.Context, id string, now time.Time, staleAfter time.Duration) (bool, error)
	InsertAttempt(ctx context.Context, in store.ProviderAttempt) error
	SetProviderDetails(ctx context.Context, in store.ProviderDetailsUpdate) error
	MarkState(ctx context.Context, in store.StateUpdate) error
}

type PushSender interface {
	SendPush(ctx context.Context, req onesignal.SendRequest) (onesignal.SendResponse, int, []byte, error)
}

type BadgeCounter interface {
	Increment(ctx context.Context, receiverID string) (int64, error)
	Decrement(ctx context.Context, receiverID string) (int64, error)
}

type Template struct {
	Heading string
	Content string
}

type Processor struct {
	Store     Store
	Sender    PushSender
	Templates map[string]Template
	Limiter   *rate.Limiter
	Breaker   *gobreaker.CircuitBreaker

	// ClaimStaleAfter bounds how long a processing claim blocks other workers.
	ClaimStaleAfter time.Duration

	// Badges is optional; without it pushes carry no badge count.
	Badges BadgeCounter

	// Sleep waits between retries; tests replace it.
	Sleep func(ctx context.Context, d time.Duration)
}

func (p *Processor) Process(ctx context.Context, job sqsqueue.PushJob) error {
	n, err := p.Store.GetNotificationForWorker(ctx, job.NotificationID)
	if err != nil {
		return err
	}

	// Idempotent consumer: skip final or already submitted with an id
	state := domain.NotificationState(n.State)
	if state.Terminal() {
		return nil
	}
	if n.ProviderMsgID != "" && state == domain.StateSubmitted {
		return nil
	}

	staleAfter := p.ClaimStaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultClaimStaleAfter
	}
	claimed, err := p.Store.ClaimNotification(ctx, job.NotificationID, util.NowUTC(), staleAfter)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrClaimed
	}

	tmpl, ok := p.Templates[n.TemplateID]
	if !ok || tmpl.Content == "" {
		p.markFailed(ctx, job.NotificationID, "template_not_found")
		slog.Error("push template not found", "notification_id", job.NotificationID, "template_id", n.TemplateID)
		return nil
	}

	// The count has to be in the request, so it is taken up front and handed back on
	// every path that ends without a submitted push.
	var badgeCount int64
	counted := false
	if p.Badges != nil {
		badgeCount, err = p.Badges.Increment(ctx, n.ReceiverID)
		if err != nil {
			slog.Error("badge increment failed", "err", err, "receiver_id", n.ReceiverID)
			badgeCount = 0
		} else {
			counted = true
		}
	}
	refund := func() {
		if counted {
			p.refundBadge(ctx, n.ReceiverID)
		}
	}

	req := onesignal.SendRequest{
		ReceiverID: n.ReceiverID,
		Heading:    util.RenderTemplate(tmpl.Heading, n.Vars),
		Content:    util.RenderTemplate(tmpl.Content, n.Vars),
		Data: map[string]any{
			"route":          n.Route,
			"receiverId":     n.ReceiverID,
			"notificationId": job.NotificationID,
		},
		BadgeCount:     badgeCount,
		IdempotencyKey: job.NotificationID,
	}
	attemptMeta := map[string]any{"receiverId": n.ReceiverID, "templateId": n.TemplateID, "route": n.Route}

	var lastErr error
	start := time.Now()

	for attempt := 0; attempt < 3; attempt++ {
		// 1) Rate limit before calling OneSignal (per pod)
		if p.Limiter != nil {
			waitCtx, cancelWait := context.WithTimeout(ctx, 2*time.Second)
			err := p.Limiter.Wait(waitCtx)
			cancelWait()
			if err != nil {
				observability.OneSignalSend.WithLabelValues("rate_limited_local", "0").Inc()
				lastErr = err
				p.sleep(ctx, 200*time.Millisecond)
				continue
			}
		}

		// 2) Circuit breaker wraps the OneSignal call
		res, err := p.executeWithBreaker(ctx, req)

		// 3) Breaker open: fail fast, hand the row back to the queue and let SQS redrive later
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.OneSignalSend.WithLabelValues("cb_open", "0").Inc()
			refund()
			p.release(ctx, job.NotificationID, "cb_open")
			return err
		}

		if err == nil {
			observability.OneSignalSend.WithLabelValues("ok", strconv.Itoa(res.httpStatus)).Inc()
			observability.OneSignalLatency.Observe(time.Since(start).Seconds())

			_ = p.Store.InsertAttempt(ctx, store.ProviderAttempt{
				NotificationID: job.NotificationID,
				Provider:       providerName,
				ProviderMsgID:  res.resp.ID,
				HTTPStatus:     res.httpStatus,
				RequestJSON:    attemptMeta,
				ResponseJSON:   jsonRaw(res.raw),
			})
			return p.Store.SetProviderDetails(ctx, store.ProviderDetailsUpdate{
				ID:            job.NotificationID,
				Provider:      providerName,
				ProviderMsgID: res.resp.ID,
				State:         string(domain.StateSubmitted),
				BadgeCount:    badgeCount,
				Now:           util.NowUTC(),
			})
		}

		lastErr = err
		var httpStatus int
		var raw []byte
		var sce sendCallError
		if errors.As(err, &sce) {
			httpStatus = sce.httpStatus
			raw = sce.raw
		}

		observability.OneSignalSend.WithLabelValues("error", strconv.Itoa(httpStatus)).Inc()

		_ = p.Store.InsertAttempt(ctx, store.ProviderAttempt{
			NotificationID: job.NotificationID,
			Provider:       providerName,
			HTTPStatus:     httpStatus,
			ErrorMsg:       err.Error(),
			RequestJSON:    attemptMeta,
			ResponseJSON:   jsonRaw(raw),
		})

		if !onesignal.ShouldRetry(err, httpStatus) {
			reason := "onesignal_non_retryable"
			var nre *onesignal.NoRecipientsError
			if errors.As(err, &nre) {
				reason = "no_recipients"
			}
			refund()
			p.markFailed(ctx, job.NotificationID, reason)
			return nil
		}

		p.sleep(ctx, onesignal.Backoff(attempt))
	}

	refund()
	p.markFailed(ctx, job.NotificationID, "onesignal_retry_exhausted")
	return lastErr
}

func (p *Processor) markFailed(ctx context.Context, id, reason string) {
	if err := p.Store.MarkState(ctx, store.StateUpdate{ID: id, State: string(domain.StateFailed), LastError: reason, Now: util.NowUTC()}); err != nil {
		slog.Error("mark notification failed", "err", err, "notification_id", id, "reason", reason)
	}
}

func (p *Processor) release(ctx context.Context, id, reason string) {
	if err := p.Store.MarkState(ctx, store.StateUpdate{ID: id, State: string(domain.StateQueued), LastError: reason, Now: util.NowUTC()}); err != nil {
		slog.Error("release notification claim failed", "err", err, "notification_id", id)
	}
}

func (p *Processor) refundBadge(ctx context.Context, receiverID string) {
	if _, err := p.Badges.Decrement(context.WithoutCancel(ctx), receiverID); err != nil {
		slog.Error("badge decrement failed", "err", err, "receiver_id", receiverID)
	}
}

func (p *Processor) sleep(ctx context.Context, d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(ctx, d)
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func (p *Processor) executeWithBreaker(ctx context.Context, req onesignal.SendRequest) (sendResult, error) {
	call := func() (any, error) {
		reqCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
		defer cancel()

		resp, httpStatus, raw, callErr := p.Sender.SendPush(reqCtx, req)
		if callErr != nil {
			return nil, sendCallError{err: callErr, httpStatus: httpStatus, raw: raw}
		}
		return sendResult{resp: resp, httpStatus: httpStatus, raw: raw}, nil
	}

	var (
		out any
		err error
	)
	if p.Breaker == nil {
		out, err = call()
	} else {
		out, err = p.Breaker.Execute(call)
	}
	if err != nil {
		return sendResult{}, err
	}
	return out.(sendResult), nil
}

func jsonRaw(b []byte) any { return map[string]any{"raw": string(b)} }

type sendResult struct {
	resp       onesignal.SendResponse
	httpStatus int
	raw        []byte
}

type sendCallError struct {
	err        error
	httpStatus int
	raw        []byte
}

func (e sendCallError) Error() string { return e.err.Error() }
func (e sendCallError) Unwrap() error { return e.err }
