package worker

// DefaultTemplates are the push bodies known to the worker, keyed by template id.
// Placeholders use {var} and are filled from the notification vars.
var DefaultTemplates = map[string]Template{
	"event_invite_v1": {
		Heading: "You're invited",
		Content: "{host} invited you to {event}.",
	},
	"event_update_v1": {
		Heading: "{event}",
		Content: "{host} updated the event details.",
	},
	"event_chat_v1": {
		Heading: "{event}",
		Content: "{sender}: {message}",
	},
	"friend_request_v1": {
		Heading: "New friend request",
		Content: "{name} wants to be friends.",
	},
	"friend_accepted_v1": {
		Heading: "Friend request accepted",
		Content: "{name} accepted your friend request.",
	},
}
