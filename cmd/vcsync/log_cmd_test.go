package main

import (
	"testing"
	"time"
)

func TestObservedAgo(t *testing.T) {
	stamp := time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339Nano)
	got := observedAgo(stamp)
	if got == "" || got == stamp {
		t.Fatalf("expected relative age, got %q", got)
	}

	// Unparseable input comes back untouched.
	if got := observedAgo("not-a-timestamp"); got != "not-a-timestamp" {
		t.Fatalf("expected raw fallback, got %q", got)
	}
}
