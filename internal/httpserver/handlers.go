package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"eventpush/internal/domain"
	"eventpush/internal/service"
	"eventpush/internal/util"

	"github.com/gorilla/mux"
)

// MaxPendingWait caps the long-poll on the pending-route endpoint.
const MaxPendingWait = 30 * time.Second

type API struct {
	Notifications *service.NotificationService
	Users         *service.UserService
	Events        *service.EventService
	Routes        *service.RouteService
	IDGen         func() string
}

func (a *API) Register(mux *mux.Router) {
	mux.HandleFunc("/v1/push/notifications", a.handleCreatePush).Methods(http.MethodPost)
	mux.HandleFunc("/v1/notifications/{id}", a.handleGetNotification).Methods(http.MethodGet)

	mux.HandleFunc("/v1/users/{id}/phone", a.handleSetPhone).Methods(http.MethodPut)
	mux.HandleFunc("/v1/users/{id}/invited-events", a.handleInvitedEvents).Methods(http.MethodGet)
	mux.HandleFunc("/v1/users/{id}/pending-route", a.handlePendingRoute).Methods(http.MethodGet)
	mux.HandleFunc("/v1/users/{id}/badge/reset", a.handleResetBadge).Methods(http.MethodPost)

	mux.HandleFunc("/v1/events/{id}/invites", a.handleSetInvites).Methods(http.MethodPut)

	mux.HandleFunc("/v1/routes/resolve", a.handleResolveRoute).Methods(http.MethodPost)
}

func (a *API) handleCreatePush(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	idGen := a.IDGen
	if idGen == nil {
		idGen = util.NewNotificationID
	}
	resp, err := a.Notifications.CreateAndEnqueuePush(r.Context(), req, idGen(), util.NowUTC())
	if err != nil {
		if statusFor(err) == http.StatusBadGateway {
			slog.Error("create and enqueue push failed",
				"err", err,
				"idempotency_key", req.IdempotencyKey,
				"receiver_id", req.ReceiverID,
				"template_id", req.TemplateID,
			)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

func (a *API) handleGetNotification(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}
	n, found, err := a.Notifications.GetNotification(r.Context(), id)
	if err != nil {
		slog.Error("get notification failed", "err", err, "id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	if !found {
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (a *API) handleSetPhone(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req domain.SetPhoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	resp, err := a.Users.SetPhone(r.Context(), id, req)
	if err != nil {
		if statusFor(err) == http.StatusBadGateway {
			slog.Error("set user phone failed", "err", err, "user_id", id)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleInvitedEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	events, err := a.Users.InvitedEvents(r.Context(), id)
	if err != nil {
		if statusFor(err) == http.StatusBadGateway {
			slog.Error("list invited events failed", "err", err, "user_id", id)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (a *API) handleSetInvites(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req domain.SetInvitesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	resp, err := a.Events.SetInvites(r.Context(), id, req)
	if err != nil {
		if statusFor(err) == http.StatusBadGateway {
			slog.Error("set event invites failed", "err", err, "event_id", id)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleResolveRoute(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	p, ok := a.Routes.Resolve(raw)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, domain.RouteResponse{Route: p})
}

func (a *API) handlePendingRoute(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	wait, err := parseWait(r.URL.Query().Get("wait"))
	if err != nil {
		http.Error(w, ErrInvalidWait, http.StatusBadRequest)
		return
	}
	p, ok, err := a.Routes.PendingRoute(r.Context(), id, wait)
	if err != nil {
		slog.Error("take pending route failed", "err", err, "user_id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, domain.RouteResponse{Route: p})
}

func (a *API) handleResetBadge(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.Routes.ResetBadge(r.Context(), id); err != nil {
		slog.Error("reset badge failed", "err", err, "user_id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseWait accepts a Go duration ("10s") or whole seconds ("10").
func parseWait(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		secs, convErr := strconv.Atoi(v)
		if convErr != nil {
			return 0, err
		}
		if limit := int(MaxPendingWait / time.Second); secs > limit {
			secs = limit
		}
		d = time.Duration(secs) * time.Second
	}
	if d < 0 {
		return 0, errors.New("negative wait")
	}
	if d > MaxPendingWait {
		d = MaxPendingWait
	}
	return d, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
