// v0
// executor_test.go
package executor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nrg-champ/circuitbreaker"

	"nrgchamp/ctrlcore/internal/acclient"
	"nrgchamp/ctrlcore/internal/actionlog"
	"nrgchamp/ctrlcore/internal/devicestate"
	"nrgchamp/ctrlcore/internal/domain"
	"nrgchamp/ctrlcore/internal/graph"
	"nrgchamp/ctrlcore/internal/minontime"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCBConfig() circuitbreaker.Config {
	return circuitbreaker.Config{MaxFailures: 3, ResetTimeout: time.Second, SuccessesToClose: 1}
}

type fakeActionLogStore struct {
	appended []domain.ActionLogRecord
}

func (f *fakeActionLogStore) AppendActionLog(rec domain.ActionLogRecord) error {
	f.appended = append(f.appended, rec)
	return nil
}

func alwaysOnGraph(deviceTempValue float64) *graph.Nodeset {
	raw := map[string]any{
		"nodes": []map[string]any{
			{"id": "start", "data": map[string]any{"definition": map[string]any{"node_type": "Start"}}},
			{"id": "temp", "data": map[string]any{"definition": map[string]any{"node_type": "Float"}, "payload": map[string]any{"value": deviceTempValue}}},
			{"id": "mode", "data": map[string]any{"definition": map[string]any{"node_type": "RequestMode"}, "payload": map[string]any{"value": "Cool"}}},
			{"id": "fan", "data": map[string]any{"definition": map[string]any{"node_type": "FanSpeed"}, "payload": map[string]any{"value": "Auto"}}},
			{"id": "powerful", "data": map[string]any{"definition": map[string]any{"node_type": "Boolean"}, "payload": map[string]any{"value": false}}},
			{"id": "cause", "data": map[string]any{"definition": map[string]any{"node_type": "Integer"}, "payload": map[string]any{"value": 1}}},
			{"id": "act", "data": map[string]any{"definition": map[string]any{"node_type": "ExecuteAction"}}},
		},
		"edges": []map[string]any{
			{"source": "start", "sourceHandle": "exec", "target": "act", "targetHandle": "exec_in"},
			{"source": "temp", "sourceHandle": "value", "target": "act", "targetHandle": "temperature"},
			{"source": "mode", "sourceHandle": "value", "target": "act", "targetHandle": "mode"},
			{"source": "fan", "sourceHandle": "value", "target": "act", "targetHandle": "fan_speed"},
			{"source": "powerful", "sourceHandle": "value", "target": "act", "targetHandle": "is_powerful"},
			{"source": "cause", "sourceHandle": "value", "target": "act", "targetHandle": "cause_reason"},
		},
	}
	b, _ := json.Marshal(raw)
	ns, err := graph.Parse(b)
	if err != nil {
		panic(err)
	}
	return ns
}

func newTestACClient(t *testing.T, device string) (*acclient.Client, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{}})
	}))
	t.Cleanup(srv.Close)
	c, err := acclient.New(device, srv.URL, "k", testCBConfig(), discardLogger())
	if err != nil {
		t.Fatalf("acclient.New: %v", err)
	}
	return c, &calls
}

func TestRunCycleSendsCommandOnFirstCycle(t *testing.T) {
	client, calls := newTestACClient(t, "LivingRoom")
	devices := map[string]*acclient.Client{"LivingRoom": client}
	states := devicestate.New()
	guard := minontime.New()
	fs := &fakeActionLogStore{}
	queue := actionlog.New(fs, nil, discardLogger())
	ex := New(devices, states, guard, queue, discardLogger())

	ns := alwaysOnGraph(22.0)
	snapshot := domain.InputSnapshot{DeviceName: "LivingRoom", IsAutoMode: true}

	result, err := ex.RunCycle(context.Background(), "LivingRoom", ns, snapshot, false, nil)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if !result.CommandSent {
		t.Fatalf("expected command sent on first cycle, got %+v", result)
	}
	if *calls != 1 {
		t.Fatalf("expected exactly one device call, got %d", *calls)
	}
}

func TestRunCycleSkipsUnchangedState(t *testing.T) {
	client, calls := newTestACClient(t, "LivingRoom")
	devices := map[string]*acclient.Client{"LivingRoom": client}
	states := devicestate.New()
	guard := minontime.New()
	fs := &fakeActionLogStore{}
	queue := actionlog.New(fs, nil, discardLogger())
	ex := New(devices, states, guard, queue, discardLogger())

	ns := alwaysOnGraph(22.0)
	snapshot := domain.InputSnapshot{DeviceName: "LivingRoom", IsAutoMode: true}

	if _, err := ex.RunCycle(context.Background(), "LivingRoom", ns, snapshot, false, nil); err != nil {
		t.Fatalf("first RunCycle: %v", err)
	}
	result, err := ex.RunCycle(context.Background(), "LivingRoom", ns, snapshot, false, nil)
	if err != nil {
		t.Fatalf("second RunCycle: %v", err)
	}
	if result.CommandSent {
		t.Fatalf("expected no-op on unchanged state, got %+v", result)
	}
	if *calls != 1 {
		t.Fatalf("expected no additional device call, got %d", *calls)
	}
}

func TestRunCycleSkipsManualModeWithoutForce(t *testing.T) {
	client, calls := newTestACClient(t, "LivingRoom")
	devices := map[string]*acclient.Client{"LivingRoom": client}
	states := devicestate.New()
	guard := minontime.New()
	fs := &fakeActionLogStore{}
	queue := actionlog.New(fs, nil, discardLogger())
	ex := New(devices, states, guard, queue, discardLogger())

	ns := alwaysOnGraph(22.0)
	snapshot := domain.InputSnapshot{DeviceName: "LivingRoom", IsAutoMode: false}

	result, err := ex.RunCycle(context.Background(), "LivingRoom", ns, snapshot, false, nil)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if !result.Skipped {
		t.Fatalf("expected manual-mode skip, got %+v", result)
	}
	if *calls != 0 {
		t.Fatalf("expected no device calls, got %d", *calls)
	}
}

func offActionGraph(cause int) *graph.Nodeset {
	raw := map[string]any{
		"nodes": []map[string]any{
			{"id": "start", "data": map[string]any{"definition": map[string]any{"node_type": "Start"}}},
			{"id": "temp", "data": map[string]any{"definition": map[string]any{"node_type": "Float"}, "payload": map[string]any{"value": 0.0}}},
			{"id": "mode", "data": map[string]any{"definition": map[string]any{"node_type": "RequestMode"}, "payload": map[string]any{"value": "Off"}}},
			{"id": "fan", "data": map[string]any{"definition": map[string]any{"node_type": "FanSpeed"}, "payload": map[string]any{"value": "Auto"}}},
			{"id": "powerful", "data": map[string]any{"definition": map[string]any{"node_type": "Boolean"}, "payload": map[string]any{"value": false}}},
			{"id": "cause", "data": map[string]any{"definition": map[string]any{"node_type": "Integer"}, "payload": map[string]any{"value": cause}}},
			{"id": "act", "data": map[string]any{"definition": map[string]any{"node_type": "ExecuteAction"}}},
		},
		"edges": []map[string]any{
			{"source": "start", "sourceHandle": "exec", "target": "act", "targetHandle": "exec_in"},
			{"source": "temp", "sourceHandle": "value", "target": "act", "targetHandle": "temperature"},
			{"source": "mode", "sourceHandle": "value", "target": "act", "targetHandle": "mode"},
			{"source": "fan", "sourceHandle": "value", "target": "act", "targetHandle": "fan_speed"},
			{"source": "powerful", "sourceHandle": "value", "target": "act", "targetHandle": "is_powerful"},
			{"source": "cause", "sourceHandle": "value", "target": "act", "targetHandle": "cause_reason"},
		},
	}
	b, _ := json.Marshal(raw)
	ns, err := graph.Parse(b)
	if err != nil {
		panic(err)
	}
	return ns
}

func offGraph(cause int) *graph.Nodeset {
	raw := map[string]any{
		"nodes": []map[string]any{
			{"id": "start", "data": map[string]any{"definition": map[string]any{"node_type": "Start"}}},
			{"id": "cause", "data": map[string]any{"definition": map[string]any{"node_type": "Integer"}, "payload": map[string]any{"value": cause}}},
			{"id": "done", "data": map[string]any{"definition": map[string]any{"node_type": "DoNothing"}}},
		},
		"edges": []map[string]any{
			{"source": "start", "sourceHandle": "exec", "target": "done", "targetHandle": "exec_in"},
			{"source": "cause", "sourceHandle": "value", "target": "done", "targetHandle": "cause_reason"},
		},
	}
	b, _ := json.Marshal(raw)
	ns, err := graph.Parse(b)
	if err != nil {
		panic(err)
	}
	return ns
}

func TestRunCycleHoldDownVetoesTurnOff(t *testing.T) {
	client, calls := newTestACClient(t, "LivingRoom")
	devices := map[string]*acclient.Client{"LivingRoom": client}
	states := devicestate.New()
	states.Set("LivingRoom", domain.DeviceCommandState{IsOn: true, Mode: domain.ModeCool, FanSpeed: domain.FanAuto, SetpointCelsius: 22})
	guard := minontime.New()
	guard.RecordTurnOn("LivingRoom")
	fs := &fakeActionLogStore{}
	queue := actionlog.New(fs, nil, discardLogger())
	ex := New(devices, states, guard, queue, discardLogger())

	ns := offActionGraph(2)
	snapshot := domain.InputSnapshot{DeviceName: "LivingRoom", IsAutoMode: true}

	result, err := ex.RunCycle(context.Background(), "LivingRoom", ns, snapshot, false, nil)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if !result.VetoedByHoldDown || result.CommandSent {
		t.Fatalf("expected hold-down veto, got %+v", result)
	}
	if *calls != 0 {
		t.Fatalf("expected no device calls while vetoed, got %d", *calls)
	}
}

func TestRunCycleDoNothingSendsNoCommand(t *testing.T) {
	client, calls := newTestACClient(t, "LivingRoom")
	devices := map[string]*acclient.Client{"LivingRoom": client}
	states := devicestate.New()
	guard := minontime.New()
	fs := &fakeActionLogStore{}
	queue := actionlog.New(fs, nil, discardLogger())
	ex := New(devices, states, guard, queue, discardLogger())

	ns := offGraph(3)
	snapshot := domain.InputSnapshot{DeviceName: "LivingRoom", IsAutoMode: true}

	result, err := ex.RunCycle(context.Background(), "LivingRoom", ns, snapshot, false, nil)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.Terminal != "DoNothing" || result.CauseReason != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if *calls != 0 {
		t.Fatalf("expected no device calls for DoNothing, got %d", *calls)
	}
}

func TestRunCycleFirstCycleOffSyncSendsTurnOff(t *testing.T) {
	client, calls := newTestACClient(t, "LivingRoom")
	devices := map[string]*acclient.Client{"LivingRoom": client}
	states := devicestate.New()
	guard := minontime.New()
	fs := &fakeActionLogStore{}
	queue := actionlog.New(fs, nil, discardLogger())
	ex := New(devices, states, guard, queue, discardLogger())

	ns := offActionGraph(1)
	snapshot := domain.InputSnapshot{DeviceName: "LivingRoom", IsAutoMode: true}

	result, err := ex.RunCycle(context.Background(), "LivingRoom", ns, snapshot, false, nil)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if !result.CommandSent {
		t.Fatalf("expected the uninitialized device cache to force a first-execution sync, got %+v", result)
	}
	if result.CauseReason != 1 {
		t.Fatalf("expected cause 1 (IceException), got %d", result.CauseReason)
	}
	if *calls != 1 {
		t.Fatalf("expected exactly one turn_off call, got %d", *calls)
	}
	queue.Drain(context.Background())
	if len(fs.appended) != 1 || fs.appended[0].CauseID != 1 {
		t.Fatalf("expected one log record with cause_id 1, got %+v", fs.appended)
	}

	state, initialized := states.Get("LivingRoom")
	if !initialized || state.IsOn {
		t.Fatalf("expected device state cache to become off+initialized, got %+v initialized=%v", state, initialized)
	}
}

func TestRunCycleForcedReevaluationSendsEvenWhenUnchangedAndOverridesCause(t *testing.T) {
	client, calls := newTestACClient(t, "LivingRoom")
	devices := map[string]*acclient.Client{"LivingRoom": client}
	states := devicestate.New()
	guard := minontime.New()
	fs := &fakeActionLogStore{}
	queue := actionlog.New(fs, nil, discardLogger())
	ex := New(devices, states, guard, queue, discardLogger())

	ns := alwaysOnGraph(22.0)
	snapshot := domain.InputSnapshot{DeviceName: "LivingRoom", IsAutoMode: true}

	if _, err := ex.RunCycle(context.Background(), "LivingRoom", ns, snapshot, false, nil); err != nil {
		t.Fatalf("first RunCycle: %v", err)
	}
	if *calls != 1 {
		t.Fatalf("expected one call after priming the cache, got %d", *calls)
	}

	cause := domain.CauseManualToAutoTransition
	result, err := ex.RunCycle(context.Background(), "LivingRoom", ns, snapshot, true, &cause)
	if err != nil {
		t.Fatalf("forced RunCycle: %v", err)
	}
	if !result.CommandSent {
		t.Fatalf("expected force=true to send the command even though the desired state equals the cached one, got %+v", result)
	}
	if result.CauseReason != domain.CauseManualToAutoTransition {
		t.Fatalf("expected cause overridden to ManualToAutoTransition, got %d", result.CauseReason)
	}
	if *calls != 2 {
		t.Fatalf("expected a second device call from the forced re-evaluation, got %d", *calls)
	}
	queue.Drain(context.Background())
	if len(fs.appended) != 2 || fs.appended[1].CauseID != domain.CauseManualToAutoTransition {
		t.Fatalf("expected the second log record's cause_id to be overridden, got %+v", fs.appended)
	}
}
