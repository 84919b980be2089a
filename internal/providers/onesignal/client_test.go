package onesignal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPushBuildsRequest(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications", r.URL.Path)
		assert.Equal(t, "Key rest-key", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(b, &got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"os_123"}`))
	}))
	defer srv.Close()

	c := &Client{AppID: "app-1", RESTAPIKey: "rest-key", HTTP: srv.Client(), BaseURL: srv.URL + "/"}
	resp, status, _, err := c.SendPush(context.Background(), SendRequest{
		ReceiverID:     "u1",
		Heading:        "New invite",
		Content:        "Ana invited you",
		Data:           map[string]any{"receiverId": "u1", "route": map[string]any{"screen": "tab", "tab": "INVITES"}},
		BadgeCount:     3,
		IdempotencyKey: "ntf_1",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "os_123", resp.ID)

	assert.Equal(t, "app-1", got["app_id"])
	assert.Equal(t, "push", got["target_channel"])
	assert.Equal(t, map[string]any{"external_id": []any{"u1"}}, got["include_aliases"])
	assert.Equal(t, map[string]any{"en": "New invite"}, got["headings"])
	assert.Equal(t, "SetTo", got["ios_badgeType"])
	assert.EqualValues(t, 3, got["ios_badgeCount"])
	assert.Equal(t, "ntf_1", got["idempotency_key"])
	data := got["data"].(map[string]any)
	assert.Equal(t, map[string]any{"screen": "tab", "tab": "INVITES"}, data["route"])
}

func TestSendPushErrors(t *testing.T) {
	status := http.StatusBadRequest
	body := `{"errors":["app_id not found"]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	c := &Client{AppID: "app-1", RESTAPIKey: "k", HTTP: srv.Client(), BaseURL: srv.URL}

	_, code, _, err := c.SendPush(context.Background(), SendRequest{ReceiverID: "u1", Content: "hi"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "app_id not found", err.Error())
	assert.False(t, ShouldRetry(err, code))

	status = http.StatusOK
	body = `{"id":"","errors":{"invalid_aliases":{"external_id":["u1"]}}}`
	_, code, _, err = c.SendPush(context.Background(), SendRequest{ReceiverID: "u1", Content: "hi"})
	var nre *NoRecipientsError
	require.True(t, errors.As(err, &nre))
	assert.False(t, ShouldRetry(err, code))

	status = http.StatusServiceUnavailable
	body = `oops`
	_, code, _, err = c.SendPush(context.Background(), SendRequest{ReceiverID: "u1", Content: "hi"})
	require.Error(t, err)
	assert.True(t, ShouldRetry(err, code))
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(nil, 429))
	assert.True(t, ShouldRetry(nil, 502))
	assert.False(t, ShouldRetry(nil, 400))
	assert.True(t, ShouldRetry(context.DeadlineExceeded, 0))
	assert.False(t, ShouldRetry(errors.New("dial refused"), 0))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, Backoff(-1))
	assert.Equal(t, 600*time.Millisecond, Backoff(1))
	assert.Equal(t, 1400*time.Millisecond, Backoff(9))
}
