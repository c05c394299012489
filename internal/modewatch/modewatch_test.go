// v0
// modewatch_test.go
package modewatch

import "testing"

func TestIsManualDefaultsTrueForUnknownDevice(t *testing.T) {
	w := New()
	if !w.IsManual("LivingRoom") {
		t.Fatalf("expected safety default of manual for unknown device")
	}
}

func TestUpdateNeverTransitionsOnFirstUpdate(t *testing.T) {
	w := New()
	if w.Update("LivingRoom", true) {
		t.Fatalf("first update must never report a transition")
	}
}

func TestUpdateDetectsManualToAutoEdge(t *testing.T) {
	w := New()
	w.Update("LivingRoom", false)
	if transitioned := w.Update("LivingRoom", true); !transitioned {
		t.Fatalf("expected manual->auto transition to be detected")
	}
	if transitioned := w.Update("LivingRoom", true); transitioned {
		t.Fatalf("repeated auto must not re-report a transition")
	}
}

func TestUpdateDoesNotTransitionOnAutoToManual(t *testing.T) {
	w := New()
	w.Update("LivingRoom", true)
	if transitioned := w.Update("LivingRoom", false); transitioned {
		t.Fatalf("auto->manual must never report a transition")
	}
}
