package route

import (
	"encoding/json"
	"strings"
)

// Parse extracts the route map from a raw notification payload and resolves it to a
// destination. Malformed input yields (nil, false); it never panics.
func Parse(raw map[string]any) (Destination, bool) {
	r, ok := ExtractRoute(raw)
	if !ok {
		return nil, false
	}
	return ParseRoute(r)
}

// ExtractRoute returns the first string-keyed map found at custom.a.route, route or
// data.route, in that order.
func ExtractRoute(raw map[string]any) (map[string]any, bool) {
	if raw == nil {
		return nil, false
	}
	if r, ok := lookup(raw, "custom", "a", "route"); ok {
		return r, true
	}
	if r, ok := lookup(raw, "route"); ok {
		return r, true
	}
	if r, ok := lookup(raw, "data", "route"); ok {
		return r, true
	}
	return nil, false
}

func lookup(m map[string]any, path ...string) (map[string]any, bool) {
	cur := m
	for _, key := range path {
		next, ok := asMap(cur[key])
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, m != nil
	case Payload:
		return m, m != nil
	case map[string]string:
		if m == nil {
			return nil, false
		}
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// ParseRoute resolves an already extracted route map.
func ParseRoute(r map[string]any) (Destination, bool) {
	screen, ok := r[KeyScreen].(string)
	if !ok {
		return nil, false
	}

	switch screen {
	case ScreenEventDetail:
		eventID, ok := r[KeyEventID].(string)
		if !ok {
			return nil, false
		}
		d := EventDetail{
			EventID:    eventID,
			InviteView: coerceBool(r[KeyInviteView]),
			OpenChat:   coerceBool(r[KeyOpenChat]),
		}
		if name, ok := r[KeyTab].(string); ok {
			if t, ok := ParseTab(name); ok {
				d.PreferredTab = t
			}
		}
		return d, true

	case ScreenTab:
		name, ok := r[KeyTab].(string)
		if !ok {
			return nil, false
		}
		t, ok := ParseTab(name)
		if !ok {
			return nil, false
		}
		return TabDestination{Tab: t}, true

	case ScreenFriendRequests:
		section := SectionRequests
		if name, ok := r[KeySection].(string); ok {
			if s, ok := ParseFriendSection(name); ok {
				section = s
			}
		}
		return FriendSection{Section: section}, true

	default:
		if t, ok := ParseTab(screen); ok {
			return TabDestination{Tab: t}, true
		}
		return nil, false
	}
}

// coerceBool accepts booleans, numbers (nonzero is true) and the string "true" in any case.
func coerceBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true")
	case json.Number:
		f, err := b.Float64()
		return err == nil && f != 0
	case float64:
		return b != 0
	case float32:
		return b != 0
	case int:
		return b != 0
	case int8:
		return b != 0
	case int16:
		return b != 0
	case int32:
		return b != 0
	case int64:
		return b != 0
	case uint:
		return b != 0
	case uint8:
		return b != 0
	case uint16:
		return b != 0
	case uint32:
		return b != 0
	case uint64:
		return b != 0
	default:
		return false
	}
}
