package store

import "time"

type Notification struct {
	ID             string         `json:"id"`
	ReceiverID     string         `json:"receiverId"`
	TemplateID     string         `json:"templateId"`
	Route          map[string]any `json:"route"`
	State          string         `json:"state"`
	Provider       string         `json:"provider,omitempty"`
	ProviderMsgID  string         `json:"providerMsgId,omitempty"`
	BadgeCount     int64          `json:"badgeCount,omitempty"`
	LastError      string         `json:"lastError,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	IdempotencyKey string         `json:"-"`
}

type IdempotencyResult struct {
	NotificationID string
	State          string
	Found          bool
}

type NotificationInsert struct {
	ID         string
	ReceiverID string
	IdemKey    string
	TemplateID string
	Vars       map[string]string
	Route      map[string]any
	State      string
	Now        time.Time
}

type StateUpdate struct {
	ID        string
	State     string
	LastError string
	Now       time.Time
}

type ProviderDetailsUpdate struct {
	ID            string
	Provider      string
	ProviderMsgID string
	State         string
	BadgeCount    int64
	Now           time.Time
}

type NotificationForWorker struct {
	ReceiverID    string
	TemplateID    string
	State         string
	ProviderMsgID string
	Vars          map[string]string
	Route         map[string]any
	CreatedAt     time.Time
}

type ProviderAttempt struct {
	NotificationID string
	Provider       string
	ProviderMsgID  string
	HTTPStatus     int
	ErrorCode      string
	ErrorMsg       string
	RequestJSON    any
	ResponseJSON   any
}

type DeliveryEvent struct {
	Provider      string
	ProviderMsgID string
	Event         string
	ReceiverID    string
	Payload       any
	OccurredAt    *time.Time
}

type ProviderMsgUpdate struct {
	Provider      string
	ProviderMsgID string
	NewState      string
	LastError     string
	Now           time.Time

	// States that must not be overwritten by this update.
	KeepStates []string
}

type EventInvites struct {
	EventID string
	Title   string
	Phones  []string
}
