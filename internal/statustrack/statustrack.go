// v0
// statustrack.go
package statustrack

import (
	"sync"

	"nrgchamp/ctrlcore/internal/executor"
	"nrgchamp/ctrlcore/internal/httpapi"
)

// Tracker keeps the most recent executor.Result per device, guarded by an
// RWMutex following the same map-cache shape as devicestate.Cache and
// modewatch.Watcher. It is the glue between the Control Loop / Manual
// Watcher (writers) and the status HTTP surface (reader).
type Tracker struct {
	mu   sync.RWMutex
	last map[string]httpapi.DeviceStatus
}

func New() *Tracker {
	return &Tracker{last: map[string]httpapi.DeviceStatus{}}
}

// Record stores the outcome of one RunCycle for later status reporting.
func (t *Tracker) Record(result executor.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[result.Device] = httpapi.DeviceStatus{
		Device:           result.Device,
		Terminal:         result.Terminal,
		Skipped:          result.Skipped,
		CommandSent:      result.CommandSent,
		VetoedByHoldDown: result.VetoedByHoldDown,
		CauseReason:      result.CauseReason,
	}
}

func (t *Tracker) DeviceStatus(device string) (httpapi.DeviceStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.last[device]
	return s, ok
}

func (t *Tracker) AllDeviceStatus() map[string]httpapi.DeviceStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]httpapi.DeviceStatus, len(t.last))
	for k, v := range t.last {
		out[k] = v
	}
	return out
}
