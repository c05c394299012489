// v0
// executor.go
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nrgchamp/ctrlcore/internal/acclient"
	"nrgchamp/ctrlcore/internal/actionlog"
	"nrgchamp/ctrlcore/internal/devicestate"
	"nrgchamp/ctrlcore/internal/domain"
	"nrgchamp/ctrlcore/internal/graph"
	"nrgchamp/ctrlcore/internal/minontime"
)

// Executor is the Plan Executor (spec §4.8): it runs one device's nodeset
// against a fresh snapshot and, if the terminal calls for it, reconciles
// the physical device and the durable action log with the decision.
type Executor struct {
	devices   map[string]*acclient.Client
	states    *devicestate.Cache
	guard     *minontime.Guard
	log       *actionlog.Queue
	logger    *slog.Logger
}

func New(devices map[string]*acclient.Client, states *devicestate.Cache, guard *minontime.Guard, logQueue *actionlog.Queue, logger *slog.Logger) *Executor {
	return &Executor{devices: devices, states: states, guard: guard, log: logQueue, logger: logger.With(slog.String("component", "executor"))}
}

// Result describes what RunCycle actually did, for callers that want to
// report status (e.g. the HTTP status surface).
type Result struct {
	Device        string
	Skipped       bool // manual mode, no force
	Terminal      string // "ExecuteAction" | "DoNothing"
	CommandSent   bool
	VetoedByHoldDown bool
	CauseReason   int
}

// RunCycle implements the 8-step algorithm:
//  1. Manual-mode gate: a device in manual mode is skipped unless force is
//     set (the Manual/Auto Watcher sets force on the manual->auto edge).
//  2. Run the Graph Engine on the snapshot.
//  3. Honor ResetActiveCommand by clearing cached state, forcing the next
//     comparison to reconcile from scratch.
//  4. DoNothing terminals are a no-op; nothing is sent and nothing is
//     logged.
//  5. ExecuteAction terminals are translated into a target device state.
//  6. A turn-off is vetoed by the Min-On-Time Guard unless force is set.
//  7. A command is sent if force is set, or the device was never
//     initialized, or the target state is structurally distinct from the
//     cached one; otherwise nothing is sent.
//  8. A changed state is sent as a minimal command sequence, the cache and
//     guard are updated, and the outcome is appended to the action log.
//
// causeOverride, when non-nil, replaces whatever cause_reason the graph
// produced — used by the Manual/Auto Watcher's forced re-evaluation, whose
// log entries must carry the distinguished ManualToAutoTransition cause
// regardless of what the nodeset itself computed.
func (e *Executor) RunCycle(ctx context.Context, device string, ns *graph.Nodeset, snapshot domain.InputSnapshot, force bool, causeOverride *int) (Result, error) {
	result := Result{Device: device}

	if !snapshot.IsAutoMode && !force {
		result.Skipped = true
		return result, nil
	}

	term, err := graph.Execute(ns, snapshot)
	if err != nil {
		return result, fmt.Errorf("executor: device %s: graph execution: %w", device, err)
	}

	if term.ResetActiveCommandRequested {
		e.states.ClearInitialization(device)
	}

	if term.DoNothing != nil {
		result.Terminal = "DoNothing"
		result.CauseReason = term.DoNothing.CauseReason
		if causeOverride != nil {
			result.CauseReason = *causeOverride
		}
		return result, nil
	}

	result.Terminal = "ExecuteAction"
	action := term.ExecuteAction
	result.CauseReason = action.CauseReason
	if causeOverride != nil {
		result.CauseReason = *causeOverride
	}

	target := toDeviceCommandState(action)

	if !target.IsOn && !force && !e.guard.CanTurnOff(device) {
		result.VetoedByHoldDown = true
		e.logger.Debug("turn-off vetoed by min-on-time guard", slog.String("device", device))
		return result, nil
	}

	_, initialized := e.states.Get(device)
	if !force && initialized && !e.states.RequiresChange(device, target) {
		return result, nil
	}

	client, ok := e.devices[device]
	if !ok {
		return result, fmt.Errorf("executor: no AC client configured for device %s", device)
	}

	if err := e.sendCommandSequence(ctx, client, action, target); err != nil {
		return result, fmt.Errorf("executor: device %s: %w", device, err)
	}

	e.states.Set(device, target)
	e.states.MarkInitialized(device)
	if target.IsOn {
		e.guard.RecordTurnOn(device)
	} else {
		e.guard.Clear(device)
	}
	result.CommandSent = true

	e.log.Enqueue(buildActionLogRecord(device, action, snapshot, result.CauseReason))

	return result, nil
}

func toDeviceCommandState(a *domain.ExecuteAction) domain.DeviceCommandState {
	if a.Mode == domain.ActionModeOff {
		return domain.DeviceCommandState{IsOn: false}
	}
	mode := domain.ModeHeat
	if a.Mode == domain.ActionModeCool {
		mode = domain.ModeCool
	}
	return domain.DeviceCommandState{
		IsOn:            true,
		Mode:            mode,
		FanSpeed:        a.FanSpeed.ToFanSpeed(),
		SetpointCelsius: a.Temperature,
		Swing:           domain.SwingOff,
		Powerful:        a.IsPowerful,
	}
}

// sendCommandSequence issues the minimal set of device calls to reach
// target: a bare off, or an on carrying mode/fan/setpoint/swing followed by
// a powerful toggle if requested.
func (e *Executor) sendCommandSequence(ctx context.Context, client *acclient.Client, action *domain.ExecuteAction, target domain.DeviceCommandState) error {
	if !target.IsOn {
		return client.Off(ctx)
	}
	if err := client.On(ctx, target.Mode, target.FanSpeed, target.SetpointCelsius, target.Swing); err != nil {
		return err
	}
	if target.Powerful {
		return client.TogglePowerful(ctx)
	}
	return nil
}

func buildActionLogRecord(device string, action *domain.ExecuteAction, snapshot domain.InputSnapshot, causeID int) domain.ActionLogRecord {
	rec := domain.ActionLogRecord{
		Timestamp:            time.Now().Unix(),
		Device:               device,
		MeasuredIndoorTemp:   snapshot.IndoorTemp,
		MeasuredNetPowerWatt: snapshot.NetPowerWatt,
		MeasuredSolarWatt:    snapshot.RawSolarWatt,
		IsUserHome:           snapshot.IsUserHome,
		CauseID:              causeID,
	}
	if action.Mode == domain.ActionModeOff {
		rec.ActionKind = "off"
		return rec
	}
	rec.ActionKind = "on"
	if action.IsPowerful {
		rec.ActionKind = "toggle-powerful"
	}
	mode := domain.ModeHeat
	if action.Mode == domain.ActionModeCool {
		mode = domain.ModeCool
	}
	fan := action.FanSpeed.ToFanSpeed()
	temp := action.Temperature
	swing := domain.SwingOff
	rec.Mode = &mode
	rec.FanSpeed = &fan
	rec.RequestTemperature = &temp
	rec.Swing = &swing
	return rec
}
