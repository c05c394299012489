// v0
// manualwatch.go
package manualwatch

import (
	"context"
	"log/slog"
	"time"

	"nrgchamp/ctrlcore/internal/acclient"
	"nrgchamp/ctrlcore/internal/domain"
	"nrgchamp/ctrlcore/internal/executor"
	"nrgchamp/ctrlcore/internal/graph"
	"nrgchamp/ctrlcore/internal/modewatch"
	"nrgchamp/ctrlcore/internal/snapshot"
)

// NodesetProvider mirrors controlloop.NodesetProvider; the watcher needs
// its own copy of the active nodeset to force an out-of-cycle
// re-evaluation without depending on the controlloop package.
type NodesetProvider interface {
	ActiveNodeset() (*graph.Nodeset, error)
}

// StatusRecorder mirrors controlloop.StatusRecorder so both writers can
// report into the same status tracker without an import cycle.
type StatusRecorder interface {
	Record(result executor.Result)
}

// Watcher is the Manual/Auto Watcher (spec §4.6): on a short period, it
// polls each device's remote-mode flag and, the moment a device flips from
// manual to auto, forces an immediate Plan Executor re-evaluation instead
// of waiting for the next Control Loop tick. It shares the Control Loop's
// snapshot.Builder so the forced re-evaluation sees exactly the inputs the
// next regular cycle would have produced.
type Watcher struct {
	devices   []string
	acClients map[string]*acclient.Client
	modes     *modewatch.Watcher
	snapshots *snapshot.Builder
	nodesets  NodesetProvider
	executor  *executor.Executor
	status    StatusRecorder
	log       *slog.Logger
}

func New(devices []string, acClients map[string]*acclient.Client, modes *modewatch.Watcher, snapshots *snapshot.Builder, nodesets NodesetProvider, ex *executor.Executor, status StatusRecorder, log *slog.Logger) *Watcher {
	return &Watcher{
		devices:   devices,
		acClients: acClients,
		modes:     modes,
		snapshots: snapshots,
		nodesets:  nodesets,
		executor:  ex,
		status:    status,
		log:       log.With(slog.String("component", "manualwatch")),
	}
}

// Run blocks, polling every period until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("manual watcher stopping")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	for _, device := range w.devices {
		client, ok := w.acClients[device]
		if !ok {
			continue
		}
		sensors, err := client.Sensors(ctx)
		if err != nil {
			w.log.Warn("sensors poll failed", "device", device, "error", err)
			continue
		}
		if !w.modes.Update(device, sensors.IsAutoMode) {
			continue
		}
		w.log.Info("manual-to-auto transition detected, forcing re-evaluation", "device", device)
		w.forceReevaluate(ctx, device)
	}
}

func (w *Watcher) forceReevaluate(ctx context.Context, device string) {
	ns, err := w.nodesets.ActiveNodeset()
	if err != nil {
		w.log.Error("cannot load active nodeset for forced re-evaluation", "device", device, "error", err)
		return
	}
	shared := w.snapshots.SampleShared(ctx)
	snap, ok := w.snapshots.BuildDevice(ctx, device, shared)
	if !ok {
		w.log.Error("cannot build snapshot for forced re-evaluation", "device", device)
		return
	}
	cause := domain.CauseManualToAutoTransition
	result, err := w.executor.RunCycle(ctx, device, ns, snap, true, &cause)
	if err != nil {
		w.log.Error("forced re-evaluation failed", "device", device, "error", err)
		return
	}
	if w.status != nil {
		w.status.Record(result)
	}
	w.log.Info("forced re-evaluation complete", "device", device, "terminal", result.Terminal, "sent", result.CommandSent)
}
