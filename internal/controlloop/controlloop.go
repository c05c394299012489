// v0
// controlloop.go
package controlloop

import (
	"context"
	"log/slog"
	"time"

	"nrgchamp/ctrlcore/internal/executor"
	"nrgchamp/ctrlcore/internal/graph"
	"nrgchamp/ctrlcore/internal/snapshot"
)

// StatusRecorder receives the outcome of each cycle for the HTTP status
// surface. Optional: a nil StatusRecorder means cycle results are simply not
// reported anywhere else.
type StatusRecorder interface {
	Record(result executor.Result)
}

// NodesetProvider returns the currently active, already-validated nodeset.
// The control loop re-reads it every cycle so that a nodeset edit made
// through the (out-of-scope) editor UI takes effect on the next tick
// without a restart.
type NodesetProvider interface {
	ActiveNodeset() (*graph.Nodeset, error)
}

// Loop is the Control Loop (spec §4.1): on a fixed period, it samples
// every configured device plus the shared meter/solar/weather collaborators,
// assembles one InputSnapshot per device, and hands each to the Plan
// Executor.
type Loop struct {
	devices   []string
	nodesets  NodesetProvider
	executor  *executor.Executor
	snapshots *snapshot.Builder
	status    StatusRecorder
	log       *slog.Logger
}

type Config struct {
	Devices   []string
	Nodesets  NodesetProvider
	Executor  *executor.Executor
	Snapshots *snapshot.Builder
	Status    StatusRecorder // optional
	Logger    *slog.Logger
}

func New(c Config) *Loop {
	return &Loop{
		devices:   c.Devices,
		nodesets:  c.Nodesets,
		executor:  c.Executor,
		snapshots: c.Snapshots,
		status:    c.Status,
		log:       c.Logger.With(slog.String("component", "controlloop")),
	}
}

// Run blocks, ticking every period until ctx is cancelled. The first cycle
// runs immediately rather than waiting for the first tick, so the core
// starts reconciling devices as soon as it boots.
func (l *Loop) Run(ctx context.Context, period time.Duration) {
	l.runCycle(ctx)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.log.Info("control loop stopping")
			return
		case <-ticker.C:
			l.runCycle(ctx)
		}
	}
}

func (l *Loop) runCycle(ctx context.Context) {
	ns, err := l.nodesets.ActiveNodeset()
	if err != nil {
		l.log.Error("cannot load active nodeset, skipping cycle", "error", err)
		return
	}

	shared := l.snapshots.SampleShared(ctx)

	for _, device := range l.devices {
		snap, ok := l.snapshots.BuildDevice(ctx, device, shared)
		if !ok {
			continue
		}
		result, err := l.executor.RunCycle(ctx, device, ns, snap, false, nil)
		if err != nil {
			l.log.Error("plan executor failed", "device", device, "error", err)
			continue
		}
		if l.status != nil {
			l.status.Record(result)
		}
		l.log.Debug("cycle complete", "device", device, "terminal", result.Terminal, "sent", result.CommandSent, "skipped", result.Skipped, "vetoed", result.VetoedByHoldDown)
	}
}
