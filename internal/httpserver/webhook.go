package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"eventpush/internal/observability"
	"eventpush/internal/providers/onesignal"
	sqsqueue "eventpush/internal/queue/sqs"
	"eventpush/internal/util"
)

const maxWebhookBody = 1 << 20

type WebhookQueue interface {
	Enqueue(ctx context.Context, ev sqsqueue.WebhookEvent) error
}

// Webhook verifies OneSignal event callbacks and hands them to the processor queue.
// The request only acks once the event is durably queued.
type Webhook struct {
	Queue  WebhookQueue
	Secret string
}

func (w *Webhook) Register(mux *mux.Router) {
	mux.HandleFunc("/v1/webhooks/onesignal", w.handleOneSignalEvent).Methods(http.MethodPost)
}

func (w *Webhook) handleOneSignalEvent(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(rw, ErrInvalidEvent, http.StatusBadRequest)
		return
	}
	if !onesignal.VerifySignature(w.Secret, body, r.Header.Get(onesignal.SignatureHeader)) {
		http.Error(rw, ErrInvalidSignature, http.StatusUnauthorized)
		return
	}
	ev, err := onesignal.ParseEvent(body)
	if err != nil {
		http.Error(rw, ErrInvalidEvent, http.StatusBadRequest)
		return
	}

	observability.WebhookEvents.WithLabelValues(ev.Event).Inc()

	if err := w.Queue.Enqueue(r.Context(), sqsqueue.WebhookEvent{
		Provider:      "onesignal",
		ProviderMsgID: ev.NotificationID,
		Event:         ev.Event,
		ReceiverID:    ev.ExternalID,
		Data:          ev.Data,
		OccurredAt:    ev.OccurredAt(),
		ReceivedAt:    util.NowUTC(),
	}); err != nil {
		slog.Error("webhook enqueue failed", "err", err, "provider_msg_id", ev.NotificationID, "event", ev.Event)
		http.Error(rw, ErrDependency, http.StatusInternalServerError)
		return
	}
	rw.WriteHeader(http.StatusOK)
}
