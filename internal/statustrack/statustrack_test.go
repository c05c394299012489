// v0
// statustrack_test.go
package statustrack

import (
	"testing"

	"nrgchamp/ctrlcore/internal/executor"
)

func TestRecordAndFetchDeviceStatus(t *testing.T) {
	tr := New()

	if _, ok := tr.DeviceStatus("LivingRoom"); ok {
		t.Fatalf("expected no status before any Record")
	}

	tr.Record(executor.Result{Device: "LivingRoom", Terminal: "ExecuteAction", CommandSent: true, CauseReason: 5})

	st, ok := tr.DeviceStatus("LivingRoom")
	if !ok {
		t.Fatalf("expected status after Record")
	}
	if st.Terminal != "ExecuteAction" || !st.CommandSent || st.CauseReason != 5 {
		t.Fatalf("unexpected status: %+v", st)
	}

	all := tr.AllDeviceStatus()
	if len(all) != 1 {
		t.Fatalf("expected 1 device in AllDeviceStatus, got %d", len(all))
	}
}

func TestRecordOverwritesPreviousStatus(t *testing.T) {
	tr := New()
	tr.Record(executor.Result{Device: "Bedroom", Terminal: "DoNothing", CauseReason: 1})
	tr.Record(executor.Result{Device: "Bedroom", Terminal: "ExecuteAction", CommandSent: true, CauseReason: 2})

	st, _ := tr.DeviceStatus("Bedroom")
	if st.Terminal != "ExecuteAction" || st.CauseReason != 2 {
		t.Fatalf("expected latest record to win, got %+v", st)
	}
}
