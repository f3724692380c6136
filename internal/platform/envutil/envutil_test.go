package envutil

import (
	"testing"
	"time"
)

func TestDurationAcceptsSecondsAndGoSyntax(t *testing.T) {
	t.Setenv("X_DUR", "7")
	if got := Duration("X_DUR", time.Minute); got != 7*time.Second {
		t.Fatalf("bare seconds: got=%s", got)
	}
	t.Setenv("X_DUR", "250ms")
	if got := Duration("X_DUR", time.Minute); got != 250*time.Millisecond {
		t.Fatalf("go syntax: got=%s", got)
	}
	t.Setenv("X_DUR", "soon")
	if got := Duration("X_DUR", time.Minute); got != time.Minute {
		t.Fatalf("fallback: got=%s", got)
	}
}

func TestBoolAndList(t *testing.T) {
	t.Setenv("X_BOOL", "off")
	if Bool("X_BOOL", true) {
		t.Fatalf("off should be false")
	}
	t.Setenv("X_BOOL", "maybe")
	if !Bool("X_BOOL", true) {
		t.Fatalf("unparseable should fall back to default")
	}
	t.Setenv("X_LIST", " a, ,b ")
	got := List("X_LIST", nil)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("list: got=%v", got)
	}
}
