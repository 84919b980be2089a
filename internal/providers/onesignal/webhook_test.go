package onesignal

import (
	"testing"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"notification.clicked","notificationId":"os_1"}`)
	sig := Sign("s3cret", body)

	if !VerifySignature("s3cret", body, sig) {
		t.Fatalf("expected valid signature")
	}
	if !VerifySignature("s3cret", body, "sha256="+sig) {
		t.Fatalf("expected prefixed signature to verify")
	}
	if VerifySignature("other", body, sig) {
		t.Fatalf("expected wrong secret to fail")
	}
	if VerifySignature("s3cret", append(body, ' '), sig) {
		t.Fatalf("expected tampered body to fail")
	}
	if VerifySignature("", body, Sign("", body)) {
		t.Fatalf("expected empty secret to fail")
	}
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"event":"notification.clicked","notificationId":"os_1","externalId":"u1","timestamp":1700000000,"data":{"route":{"screen":"tab","tab":"INVITES"}}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Event != EventClicked || ev.ExternalID != "u1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.OccurredAt() == nil || ev.OccurredAt().Unix() != 1700000000 {
		t.Fatalf("unexpected occurred at %v", ev.OccurredAt())
	}
	if _, err := ParseEvent([]byte(`{"event":"notification.clicked"}`)); err == nil {
		t.Fatalf("expected missing id error")
	}
	if _, err := ParseEvent([]byte(`nope`)); err == nil {
		t.Fatalf("expected json error")
	}
}
