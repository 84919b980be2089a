// Package route maps in-app destinations to the flat key/value payload carried in
// push notification custom data, and parses that payload back when a notification
// is opened.
package route

import "strings"

type Tab string

const (
	TabMyEvents Tab = "MY_EVENTS"
	TabInvites  Tab = "INVITES"
	TabNewEvent Tab = "NEW_EVENT"
	TabFriends  Tab = "FRIENDS"
	TabSettings Tab = "SETTINGS"
)

type FriendSectionShortcut string

const (
	SectionFriends  FriendSectionShortcut = "FRIENDS"
	SectionRequests FriendSectionShortcut = "REQUESTS"
	SectionSent     FriendSectionShortcut = "SENT"
)

var tabsByName = map[string]Tab{
	"my_events": TabMyEvents,
	"invites":   TabInvites,
	"new_event": TabNewEvent,
	"friends":   TabFriends,
	"settings":  TabSettings,
}

var sectionsByName = map[string]FriendSectionShortcut{
	"friends":  SectionFriends,
	"requests": SectionRequests,
	"sent":     SectionSent,
}

// ParseTab resolves a tab name case-insensitively.
func ParseTab(name string) (Tab, bool) {
	t, ok := tabsByName[strings.ToLower(name)]
	return t, ok
}

// ParseFriendSection resolves a friend section name case-insensitively.
func ParseFriendSection(name string) (FriendSectionShortcut, bool) {
	s, ok := sectionsByName[strings.ToLower(name)]
	return s, ok
}

// Destination is one of EventDetail, TabDestination or FriendSection.
type Destination interface {
	isDestination()
}

type EventDetail struct {
	EventID    string
	InviteView bool
	OpenChat   bool

	// PreferredTab is empty when the sender did not ask for a tab.
	PreferredTab Tab
}

type TabDestination struct {
	Tab Tab
}

type FriendSection struct {
	Section FriendSectionShortcut
}

func (EventDetail) isDestination()    {}
func (TabDestination) isDestination() {}
func (FriendSection) isDestination()  {}
