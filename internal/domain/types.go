package domain

import (
	"errors"

	"eventpush/internal/route"
)

type NotificationState string

const (
	StateQueued     NotificationState = "queued"
	StateSuppressed NotificationState = "suppressed"
	StateProcessing NotificationState = "processing"
	StateSubmitted  NotificationState = "submitted"
	StateDelivered  NotificationState = "delivered"
	StateOpened     NotificationState = "opened"
	StateFailed     NotificationState = "failed"
)

// Terminal reports whether a worker should stop touching a notification in state s.
func (s NotificationState) Terminal() bool {
	switch s {
	case StateSuppressed, StateDelivered, StateOpened, StateFailed:
		return true
	}
	return false
}

var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidDestination = errors.New("invalid destination")
	ErrInvalidPhone       = errors.New("invalid phone number")
	ErrNotFound           = errors.New("not found")
)

// Destination kinds accepted by the API.
const (
	KindEventDetail   = "event_detail"
	KindTab           = "tab"
	KindFriendSection = "friend_section"
)

// DestinationSpec is the JSON form of a route.Destination on the API.
type DestinationSpec struct {
	Kind       string `json:"kind"`
	EventID    string `json:"eventId,omitempty"`
	InviteView bool   `json:"inviteView,omitempty"`
	Tab        string `json:"tab,omitempty"`
	OpenChat   bool   `json:"openChat,omitempty"`
	Section    string `json:"section,omitempty"`
}

func (d DestinationSpec) ToDestination() (route.Destination, error) {
	switch d.Kind {
	case KindEventDetail:
		if d.EventID == "" {
			return nil, ErrInvalidDestination
		}
		out := route.EventDetail{EventID: d.EventID, InviteView: d.InviteView, OpenChat: d.OpenChat}
		if d.Tab != "" {
			t, ok := route.ParseTab(d.Tab)
			if !ok {
				return nil, ErrInvalidDestination
			}
			out.PreferredTab = t
		}
		return out, nil
	case KindTab:
		t, ok := route.ParseTab(d.Tab)
		if !ok {
			return nil, ErrInvalidDestination
		}
		return route.TabDestination{Tab: t}, nil
	case KindFriendSection:
		if d.Section == "" {
			return route.FriendSection{Section: route.SectionRequests}, nil
		}
		s, ok := route.ParseFriendSection(d.Section)
		if !ok {
			return nil, ErrInvalidDestination
		}
		return route.FriendSection{Section: s}, nil
	default:
		return nil, ErrInvalidDestination
	}
}

type CreatePushRequest struct {
	IdempotencyKey string            `json:"idempotencyKey"`
	ReceiverID     string            `json:"receiverId"`
	TemplateID     string            `json:"templateId"`
	Vars           map[string]string `json:"vars"`
	Destination    DestinationSpec   `json:"destination"`
}

func (r CreatePushRequest) Validate() error {
	if r.IdempotencyKey == "" || r.ReceiverID == "" || r.TemplateID == "" || r.Destination.Kind == "" {
		return ErrMissingFields
	}
	return nil
}

type CreateResponse struct {
	NotificationID string `json:"notificationId"`
	State          string `json:"state"`
}

// SetPhoneRequest accepts either a free-form number or a country code plus subscriber number.
type SetPhoneRequest struct {
	Phone       string `json:"phone,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
	Number      string `json:"number,omitempty"`
}

type PhoneResponse struct {
	UserID    string `json:"userId"`
	Phone     string `json:"phone"`
	Canonical string `json:"canonical"`
	Region    string `json:"region,omitempty"`
}

type SetInvitesRequest struct {
	Title  string   `json:"title"`
	Phones []string `json:"phones"`
}

type InvitesResponse struct {
	EventID string   `json:"eventId"`
	Phones  []string `json:"phones"`
}

type InvitedEvent struct {
	EventID string `json:"eventId"`
	Title   string `json:"title"`
}

// RouteResponse carries a resolved destination in its wire form.
type RouteResponse struct {
	Route route.Payload `json:"route"`
}
