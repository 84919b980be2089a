// Package phone normalizes user-entered phone numbers into comparable forms.
//
// Every function is total: malformed input degrades to "" or false and callers
// decide what that means for the user.
package phone

import "strings"

// DefaultCountryCode is assumed for bare 10 digit national numbers.
const DefaultCountryCode = "1"

func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Canonical returns a country-code-free digits key for equality checks. It is not
// suitable for display or dialing.
func Canonical(s string) string {
	d := DigitsOnly(s)
	if len(d) == 11 && strings.HasPrefix(d, DefaultCountryCode) {
		return d[1:]
	}
	return d
}

// E164 formats raw input as +<digits>. No real-world validity check is made.
func E164(raw string) string {
	s := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		d := DigitsOnly(rest)
		if d == "" {
			return ""
		}
		return "+" + d
	}

	d := DigitsOnly(s)
	switch {
	case d == "":
		return ""
	case len(d) == 10:
		return "+" + DefaultCountryCode + d
	case len(d) == 11 && strings.HasPrefix(d, DefaultCountryCode):
		return "+" + d
	default:
		return "+" + d
	}
}

// E164WithCountry joins a country calling code and a subscriber number, dropping
// trunk zeros from the subscriber part.
func E164WithCountry(countryCode, number string) string {
	cc := DigitsOnly(countryCode)
	sub := strings.TrimLeft(DigitsOnly(number), "0")
	if sub == "" {
		return ""
	}
	return "+" + cc + sub
}

// NumbersMatch reports whether a and b likely refer to the same subscriber. Equal
// canonical forms match; otherwise the longer must end with the shorter, which
// tolerates a country code on one side only.
func NumbersMatch(a, b string) bool {
	ca, cb := Canonical(a), Canonical(b)
	if ca == "" || cb == "" {
		return false
	}
	if ca == cb {
		return true
	}
	if len(ca) >= len(cb) {
		return strings.HasSuffix(ca, cb)
	}
	return strings.HasSuffix(cb, ca)
}

// Dedupe normalizes numbers to E.164 and drops empties and numbers whose canonical
// form was already seen. Order is preserved.
func Dedupe(numbers []string) []string {
	seen := make(map[string]struct{}, len(numbers))
	out := make([]string, 0, len(numbers))
	for _, n := range numbers {
		e := E164(n)
		if e == "" {
			continue
		}
		key := Canonical(e)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}
