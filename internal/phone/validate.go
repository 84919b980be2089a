package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Valid reports whether an E.164 number is dialable according to libphonenumber
// metadata. Only input edges should call it; matching never does.
func Valid(e164 string) bool {
	if !strings.HasPrefix(e164, "+") {
		return false
	}
	num, err := phonenumbers.Parse(e164, "")
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

// Region returns the ISO region code for a valid E.164 number, or "".
func Region(e164 string) string {
	num, err := phonenumbers.Parse(e164, "")
	if err != nil {
		return ""
	}
	return phonenumbers.GetRegionCodeForNumber(num)
}
