// v0
// minontime_test.go
package minontime

import "testing"

func TestCanTurnOffTrueForUnknownDevice(t *testing.T) {
	g := New()
	if !g.CanTurnOff("LivingRoom") {
		t.Fatalf("expected unknown device to permit turn-off")
	}
}

func TestCanTurnOffFalseImmediatelyAfterTurnOn(t *testing.T) {
	g := New()
	g.RecordTurnOn("LivingRoom")
	if g.CanTurnOff("LivingRoom") {
		t.Fatalf("expected hold-down veto right after turn-on")
	}
}

func TestClearBypassesHoldDown(t *testing.T) {
	g := New()
	g.RecordTurnOn("LivingRoom")
	g.Clear("LivingRoom")
	if !g.CanTurnOff("LivingRoom") {
		t.Fatalf("expected Clear to bypass the hold-down")
	}
}
