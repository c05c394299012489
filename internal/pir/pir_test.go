// v0
// pir_test.go
package pir

import (
	"testing"
	"time"
)

func TestHasRecentFalseForUnknownDevice(t *testing.T) {
	tr := New()
	if tr.HasRecent("LivingRoom", 15*time.Minute) {
		t.Fatalf("expected no recent detection for unknown device")
	}
}

func TestHasRecentTrueJustAfterRecord(t *testing.T) {
	tr := New()
	tr.Record("LivingRoom")
	if !tr.HasRecent("LivingRoom", 15*time.Minute) {
		t.Fatalf("expected recent detection right after Record")
	}
}

func TestHasRecentFalseAfterTimeout(t *testing.T) {
	tr := New()
	tr.Record("LivingRoom")
	if tr.HasRecent("LivingRoom", 0) {
		t.Fatalf("expected timeout of 0 to always report stale")
	}
}
