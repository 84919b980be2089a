package onesignal

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const SignatureHeader = "X-Onesignal-Signature"

// Event kinds forwarded by the OneSignal event webhook.
const (
	EventClicked   = "notification.clicked"
	EventDisplayed = "notification.displayed"
	EventDelivered = "notification.delivered"
	EventFailed    = "notification.failed"
)

// Event is the body the event webhook is configured to send. Data carries the custom
// data of the push, including the route.
type Event struct {
	Event          string         `json:"event"`
	NotificationID string         `json:"notificationId"`
	ExternalID     string         `json:"externalId"`
	Timestamp      int64          `json:"timestamp,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (e Event) OccurredAt() *time.Time {
	if e.Timestamp <= 0 {
		return nil
	}
	t := time.Unix(e.Timestamp, 0).UTC()
	return &t
}

func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, err
	}
	if ev.Event == "" || ev.NotificationID == "" {
		return Event{}, errors.New("onesignal event missing event or notificationId")
	}
	return ev, nil
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(secret string, body []byte, provided string) bool {
	if secret == "" || provided == "" {
		return false
	}
	provided = strings.TrimPrefix(strings.TrimSpace(provided), "sha256=")
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}
