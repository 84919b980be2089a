package route

// Wire keys and screen values of a route payload.
const (
	KeyScreen     = "screen"
	KeyEventID    = "eventId"
	KeyInviteView = "inviteView"
	KeyTab        = "tab"
	KeySection    = "section"
	KeyOpenChat   = "openChat"

	ScreenEventDetail    = "event_detail"
	ScreenFriendRequests = "friend_requests"
	ScreenTab            = "tab"
)

// Payload is the flat map embedded under data.route of an outbound push.
// Values are string, bool, number or nil. Treat it as read-only once built.
type Payload map[string]any

func BuildEventDetail(eventID string, inviteView bool, preferredTab Tab, openChat bool) Payload {
	p := Payload{
		KeyScreen:     ScreenEventDetail,
		KeyEventID:    eventID,
		KeyInviteView: inviteView,
	}
	if preferredTab != "" {
		p[KeyTab] = string(preferredTab)
	}
	// false is the parse default, so it is left off the wire
	if openChat {
		p[KeyOpenChat] = true
	}
	return p
}

func BuildFriendSection(section FriendSectionShortcut) Payload {
	return Payload{
		KeyScreen:  ScreenFriendRequests,
		KeySection: string(section),
		KeyTab:     string(TabFriends),
	}
}

func BuildTab(tab Tab) Payload {
	return Payload{
		KeyScreen: ScreenTab,
		KeyTab:    string(tab),
	}
}

// Build returns the payload for d, or nil for an unknown destination type.
func Build(d Destination) Payload {
	switch v := d.(type) {
	case EventDetail:
		return BuildEventDetail(v.EventID, v.InviteView, v.PreferredTab, v.OpenChat)
	case TabDestination:
		return BuildTab(v.Tab)
	case FriendSection:
		return BuildFriendSection(v.Section)
	default:
		return nil
	}
}
