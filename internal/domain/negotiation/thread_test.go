package negotiation

import (
	"testing"
	"time"
)

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		status  string
		expires time.Time
		want    bool
	}{
		{"open and past window", StatusAwaitingClient, now.Add(-time.Minute), true},
		{"open at deadline", StatusAwaitingCarrier, now, true},
		{"open within window", StatusAwaitingClient, now.Add(time.Hour), false},
		{"no window", StatusAwaitingClient, time.Time{}, false},
		{"approved", StatusApproved, now.Add(-time.Hour), false},
		{"rejected final", StatusRejectedFinal, now.Add(-time.Hour), false},
	}
	for _, tc := range cases {
		if got := IsExpired(tc.status, tc.expires, now); got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
		th := &Thread{Status: tc.status, ExpiresAt: tc.expires}
		if got := th.Expired(now); got != tc.want {
			t.Fatalf("%s (method): want=%v got=%v", tc.name, tc.want, got)
		}
	}
	var nilThread *Thread
	if nilThread.Expired(now) {
		t.Fatalf("nil thread must not be expired")
	}
}

func TestIsStatus(t *testing.T) {
	for _, s := range []string{StatusAwaitingClient, StatusAwaitingCarrier, StatusApproved, StatusRejectedFinal} {
		if !IsStatus(s) {
			t.Fatalf("IsStatus(%s) = false", s)
		}
	}
	if IsStatus("aguardando_cliente") || IsStatus("") {
		t.Fatalf("IsStatus accepted an unknown status")
	}
}
