package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	mrand "math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/kelseyhightower/envconfig"
	"github.com/oklog/ulid/v2"

	"eventpush/internal/logging"
	"eventpush/internal/providers/onesignal"
)

type config struct {
	RESTAPIKey  string `envconfig:"ONESIGNAL_REST_API_KEY" default:"mock_key"`
	Port        string `envconfig:"PORT" default:"8080"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	OutcomeMode string `envconfig:"MOCK_OUTCOME_MODE" default:"fixed"`
	OutcomesRaw string `envconfig:"MOCK_OUTCOMES" default:"clicked"`
	DelayMs     int    `envconfig:"MOCK_DELAY_MS" default:"0"`

	// Event webhook target; empty disables callbacks.
	WebhookURL         string `envconfig:"MOCK_WEBHOOK_URL" default:""`
	WebhookSecret      string `envconfig:"MOCK_WEBHOOK_SECRET" default:""`
	WebhookDelayMs     int    `envconfig:"MOCK_WEBHOOK_DELAY_MS" default:"500"`
	ClickDelayMs       int    `envconfig:"MOCK_CLICK_DELAY_MS" default:"1500"`
	WebhookMaxRetries  int    `envconfig:"MOCK_WEBHOOK_MAX_RETRIES" default:"5"`
	WebhookRetryBaseMs int    `envconfig:"MOCK_WEBHOOK_RETRY_BASE_MS" default:"250"`

	Outcomes       []string
	Delay          time.Duration
	WebhookDelay   time.Duration
	ClickDelay     time.Duration
	WebhookBackoff time.Duration
}

// notificationRequest is the subset of the create-notification body the mock reads.
type notificationRequest struct {
	AppID          string              `json:"app_id"`
	IncludeAliases map[string][]string `json:"include_aliases"`
	Contents       map[string]string   `json:"contents"`
	Data           map[string]any      `json:"data"`
	IdempotencyKey string              `json:"idempotency_key"`
}

type server struct {
	cfg    config
	idx    uint64
	rng    *mrand.Rand
	rngMu  sync.Mutex
	client *http.Client

	// idempotency_key -> notification id
	seenMu sync.Mutex
	seen   map[string]string
}

func main() {
	cfg := loadConfig()
	logging.Init("mock-provider", cfg.LogFormat)

	s := newServer(cfg)

	slog.Info("mock provider listening", "port", cfg.Port, "webhook_url", cfg.WebhookURL)
	if err := http.ListenAndServe(":"+cfg.Port, loggingMiddleware(s.router())); err != nil {
		slog.Error("mock provider server failed", "err", err)
		os.Exit(1)
	}
}

func newServer(cfg config) *server {
	return &server{
		cfg:    cfg,
		rng:    mrand.New(mrand.NewSource(time.Now().UnixNano())),
		client: &http.Client{Timeout: 5 * time.Second},
		seen:   map[string]string{},
	}
}

func (s *server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/notifications", s.handleSend).Methods(http.MethodPost)
	return r
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Info("mock provider request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func loadConfig() config {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Error("mock provider config load failed", "err", err)
		os.Exit(1)
	}
	cfg.OutcomeMode = strings.ToLower(cfg.OutcomeMode)
	cfg.Outcomes = parseCSV(cfg.OutcomesRaw)
	cfg.WebhookURL = strings.TrimSpace(cfg.WebhookURL)
	cfg.Delay = time.Duration(cfg.DelayMs) * time.Millisecond
	cfg.WebhookDelay = time.Duration(cfg.WebhookDelayMs) * time.Millisecond
	cfg.ClickDelay = time.Duration(cfg.ClickDelayMs) * time.Millisecond
	if cfg.WebhookMaxRetries < 0 {
		cfg.WebhookMaxRetries = 0
	}
	if cfg.WebhookRetryBaseMs <= 0 {
		cfg.WebhookRetryBaseMs = 250
	}
	cfg.WebhookBackoff = time.Duration(cfg.WebhookRetryBaseMs) * time.Millisecond
	return cfg
}

func (s *server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Key "+s.cfg.RESTAPIKey {
		writeErrors(w, http.StatusUnauthorized, "Access denied.  Please include an 'Authorization: Key' header with a valid API key")
		return
	}
	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	externalIDs := req.IncludeAliases["external_id"]
	if req.AppID == "" || len(externalIDs) == 0 || req.Contents["en"] == "" {
		writeErrors(w, http.StatusBadRequest, "app_id, include_aliases.external_id and contents are required")
		return
	}

	if s.cfg.Delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(s.cfg.Delay):
		}
	}

	if id, ok := s.idempotent(req.IdempotencyKey); ok {
		writeJSON(w, http.StatusOK, map[string]any{"id": id})
		return
	}

	o, err := classifyOutcome(s.nextOutcome())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			time.Sleep(10 * time.Second)
		}
		writeErrors(w, o.httpStatus, err.Error())
		return
	}
	if o.noRecipients {
		writeJSON(w, http.StatusOK, map[string]any{"id": "", "errors": []string{"All included players are not subscribed"}})
		return
	}

	id := s.newID()
	s.remember(req.IdempotencyKey, id)
	writeJSON(w, http.StatusOK, map[string]any{"id": id})

	s.maybeEventSequence(id, externalIDs[0], req.Data, o.events)
}

func (s *server) idempotent(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	id, ok := s.seen[key]
	return id, ok
}

func (s *server) remember(key, id string) {
	if key == "" {
		return
	}
	s.seenMu.Lock()
	s.seen[key] = id
	s.seenMu.Unlock()
}

func (s *server) newID() string {
	return strings.ToLower(ulid.MustNew(ulid.Now(), rand.Reader).String())
}

// maybeEventSequence posts the outcome's events to the webhook, in order, in the background.
func (s *server) maybeEventSequence(notificationID, externalID string, data map[string]any, events []string) {
	if s.cfg.WebhookURL == "" || len(events) == 0 {
		return
	}
	go func() {
		for i, kind := range events {
			delay := s.cfg.WebhookDelay
			if kind == onesignal.EventClicked && i > 0 {
				delay = s.cfg.ClickDelay
			}
			time.Sleep(delay)

			body, _ := json.Marshal(onesignal.Event{
				Event:          kind,
				NotificationID: notificationID,
				ExternalID:     externalID,
				Timestamp:      time.Now().Unix(),
				Data:           data,
			})
			if err := s.postWebhookWithRetry(context.Background(), body); err != nil {
				return
			}
		}
	}()
}

func (s *server) postWebhookWithRetry(ctx context.Context, body []byte) error {
	maxAttempts := s.cfg.WebhookMaxRetries + 1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if s.cfg.WebhookSecret != "" {
			req.Header.Set(onesignal.SignatureHeader, onesignal.Sign(s.cfg.WebhookSecret, body))
		}

		resp, err := s.client.Do(req)
		status := 0
		retryAfter := time.Duration(0)
		if resp != nil {
			status = resp.StatusCode
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			_ = resp.Body.Close()
		}
		if err == nil && status >= 200 && status < 300 {
			return nil
		}
		if attempt == maxAttempts-1 {
			slog.Error("mock webhook post failed", "attempt", attempt+1, "status", status, "err", err)
			if err != nil {
				return err
			}
			return fmt.Errorf("webhook post failed: status=%d", status)
		}
		if err == nil && !isRetryableStatus(status) {
			slog.Error("mock webhook post non-retryable", "attempt", attempt+1, "status", status)
			return fmt.Errorf("webhook post non-retryable: status=%d", status)
		}

		wait := retryAfter
		if wait <= 0 {
			wait = s.cfg.WebhookBackoff * time.Duration(1<<attempt)
		}
		slog.Warn("mock webhook post retrying", "attempt", attempt+1, "status", status, "wait_ms", wait.Milliseconds())
		time.Sleep(wait)
	}
	return nil
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func (s *server) nextOutcome() string {
	switch s.cfg.OutcomeMode {
	case "round_robin":
		idx := atomic.AddUint64(&s.idx, 1) - 1
		return s.cfg.Outcomes[int(idx)%len(s.cfg.Outcomes)]
	case "random":
		s.rngMu.Lock()
		i := s.rng.Intn(len(s.cfg.Outcomes))
		s.rngMu.Unlock()
		return s.cfg.Outcomes[i]
	default:
		return s.cfg.Outcomes[0]
	}
}

type outcome struct {
	httpStatus   int
	noRecipients bool

	// webhook events fired after a successful send
	events []string
}

func classifyOutcome(raw string) (outcome, error) {
	switch strings.TrimSpace(raw) {
	case "", "clicked", "ok":
		return outcome{httpStatus: http.StatusOK, events: []string{onesignal.EventDisplayed, onesignal.EventClicked}}, nil
	case "displayed":
		return outcome{httpStatus: http.StatusOK, events: []string{onesignal.EventDisplayed}}, nil
	case "silent":
		return outcome{httpStatus: http.StatusOK}, nil
	case "failed":
		return outcome{httpStatus: http.StatusOK, events: []string{onesignal.EventFailed}}, nil
	case "no_recipients":
		return outcome{httpStatus: http.StatusOK, noRecipients: true}, nil
	case "rate_limit", "429":
		return outcome{httpStatus: http.StatusTooManyRequests}, errors.New("API rate limit exceeded")
	case "bad_request", "400":
		return outcome{httpStatus: http.StatusBadRequest}, errors.New("bad request")
	case "server_error", "500":
		return outcome{httpStatus: http.StatusInternalServerError}, errors.New("internal server error")
	case "timeout":
		return outcome{httpStatus: http.StatusGatewayTimeout}, context.DeadlineExceeded
	default:
		return outcome{httpStatus: http.StatusInternalServerError}, errors.New("mock error: " + raw)
	}
}

func writeErrors(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"errors": []string{msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return []string{"clicked"}
	}
	return out
}

// parseRetryAfter handles the seconds form only.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
