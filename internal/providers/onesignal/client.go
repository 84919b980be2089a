package onesignal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.onesignal.com"

type Client struct {
	AppID      string
	RESTAPIKey string
	HTTP       *http.Client
	BaseURL    string
}

type SendRequest struct {
	// ReceiverID is the app user id registered as the OneSignal external_id alias.
	ReceiverID     string
	Heading        string
	Content        string
	Data           map[string]any
	BadgeCount     int64
	IdempotencyKey string
}

type SendResponse struct {
	ID     string          `json:"id"`
	Errors json.RawMessage `json:"errors,omitempty"`
}

type notificationBody struct {
	AppID          string              `json:"app_id"`
	TargetChannel  string              `json:"target_channel"`
	IncludeAliases map[string][]string `json:"include_aliases"`
	Headings       map[string]string   `json:"headings,omitempty"`
	Contents       map[string]string   `json:"contents"`
	Data           map[string]any      `json:"data,omitempty"`
	IOSBadgeType   string              `json:"ios_badgeType,omitempty"`
	IOSBadgeCount  int64               `json:"ios_badgeCount,omitempty"`
	IdempotencyKey string              `json:"idempotency_key,omitempty"`
}

func (c *Client) SendPush(ctx context.Context, req SendRequest) (SendResponse, int, []byte, error) {
	body := notificationBody{
		AppID:          c.AppID,
		TargetChannel:  "push",
		IncludeAliases: map[string][]string{"external_id": {req.ReceiverID}},
		Contents:       map[string]string{"en": req.Content},
		Data:           req.Data,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.Heading != "" {
		body.Headings = map[string]string{"en": req.Heading}
	}
	if req.BadgeCount > 0 {
		body.IOSBadgeType = "SetTo"
		body.IOSBadgeCount = req.BadgeCount
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return SendResponse{}, 0, nil, err
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/notifications", bytes.NewReader(payload))
	if err != nil {
		return SendResponse{}, 0, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Key "+c.RESTAPIKey)

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(httpReq)
	if err != nil {
		return SendResponse{}, 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	var out SendResponse
	_ = json.Unmarshal(b, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msg := errorText(out.Errors); msg != "" {
			return out, resp.StatusCode, b, errors.New(msg)
		}
		return out, resp.StatusCode, b, errors.New("onesignal send failed")
	}
	// 200 with an empty id means no subscription matched the alias
	if out.ID == "" {
		if msg := errorText(out.Errors); msg != "" {
			return out, resp.StatusCode, b, &NoRecipientsError{Detail: msg}
		}
		return out, resp.StatusCode, b, &NoRecipientsError{Detail: "no subscribed recipients"}
	}
	return out, resp.StatusCode, b, nil
}

// NoRecipientsError means the receiver has no push subscription. Never retried.
type NoRecipientsError struct {
	Detail string
}

func (e *NoRecipientsError) Error() string { return "onesignal: " + e.Detail }

// errorText flattens OneSignal's errors field, which is either a list of strings or
// an object such as {"invalid_aliases": {...}}.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return string(raw)
}

// Retry decision for transient errors
func ShouldRetry(err error, httpStatus int) bool {
	var nre *NoRecipientsError
	if errors.As(err, &nre) {
		return false
	}
	if httpStatus == 429 || httpStatus == 408 {
		return true
	}
	if httpStatus >= 500 && httpStatus <= 599 {
		return true
	}
	if err != nil && httpStatus == 0 {
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return true
		}
	}
	return false
}

func Backoff(attempt int) time.Duration {
	// 200ms, 600ms, 1400ms
	base := []time.Duration{200 * time.Millisecond, 600 * time.Millisecond, 1400 * time.Millisecond}
	if attempt <= 0 {
		return base[0]
	}
	if attempt >= len(base) {
		return base[len(base)-1]
	}
	return base[attempt]
}
