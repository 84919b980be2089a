package phone

import (
	"reflect"
	"testing"
)

func TestDigitsOnly(t *testing.T) {
	if got := DigitsOnly("+1 (555) 123-4567 ext"); got != "15551234567" {
		t.Fatalf("unexpected digits %q", got)
	}
	if got := DigitsOnly("abc"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"+1 555-123-4567":  "5551234567",
		"5551234567":       "5551234567",
		"15551234567":      "5551234567",
		"25551234567":      "25551234567",
		"+44 20 7946 0958": "442079460958",
		"":                 "",
	}
	for in, want := range cases {
		if got := Canonical(in); got != want {
			t.Fatalf("Canonical(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestE164(t *testing.T) {
	cases := map[string]string{
		"5551234567":        "+15551234567",
		"(555) 123-4567":    "+15551234567",
		"15551234567":       "+15551234567",
		"+44 20 7946 0958":  "+442079460958",
		"  +1 555 123 4567": "+15551234567",
		"+":                 "",
		"+ --":              "",
		"":                  "",
		"abc":               "",
		"12345":             "+12345",
		"25551234567":       "+25551234567",
	}
	for in, want := range cases {
		if got := E164(in); got != want {
			t.Fatalf("E164(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestE164WithCountry(t *testing.T) {
	if got := E164WithCountry("44", "07946958"); got != "+447946958" {
		t.Fatalf("unexpected %q", got)
	}
	if got := E164WithCountry("+1", "(555) 123-4567"); got != "+15551234567" {
		t.Fatalf("unexpected %q", got)
	}
	if got := E164WithCountry("44", "000"); got != "" {
		t.Fatalf("expected empty for all-zero subscriber, got %q", got)
	}
	if got := E164WithCountry("44", ""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestNumbersMatch(t *testing.T) {
	if !NumbersMatch("+1 555-123-4567", "5551234567") {
		t.Fatalf("expected match across country code")
	}
	if !NumbersMatch("2079460958", "+44 20 7946 0958") {
		t.Fatalf("expected suffix match")
	}
	if NumbersMatch("5551234567", "5551234568") {
		t.Fatalf("expected mismatch")
	}
	if NumbersMatch("", "5551234567") || NumbersMatch("5551234567", "") || NumbersMatch("", "") {
		t.Fatalf("expected empty never to match")
	}
	if NumbersMatch("abc", "abc") {
		t.Fatalf("expected non-digit input never to match")
	}
	for _, x := range []string{"1", "5551234567", "+447946958"} {
		if !NumbersMatch(x, x) {
			t.Fatalf("expected %q to match itself", x)
		}
	}
}

func TestDedupe(t *testing.T) {
	got := Dedupe([]string{"555-123-4567", "+1 (555) 123 4567", "", "x", "+44 20 7946 0958", "15551234567"})
	want := []string{"+15551234567", "+442079460958"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestValid(t *testing.T) {
	if !Valid("+442070313000") || !Valid(E164("650-253-0000")) {
		t.Fatalf("expected real numbers to be valid")
	}
	if Valid("+1") || Valid("") || Valid("5551234567") {
		t.Fatalf("expected invalid numbers to be rejected")
	}
	if got := Region("+442070313000"); got != "GB" {
		t.Fatalf("expected GB, got %q", got)
	}
}
