// v0
// modewatch.go
package modewatch

import "sync"

// Watcher is the process-wide Mode Watcher: device_name -> is_auto, with
// edge detection for the manual->auto transition (spec §4.6).
type Watcher struct {
	mu sync.RWMutex
	m  map[string]bool
}

func New() *Watcher {
	return &Watcher{m: make(map[string]bool)}
}

// Update records isAuto for device and reports whether this update is a
// manual->auto transition: the previous value was false and the new value
// is true. It never reports a transition on a device's first update.
func (w *Watcher) Update(device string, isAuto bool) (transitionedToAuto bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev, had := w.m[device]
	w.m[device] = isAuto
	return had && !prev && isAuto
}

// Get returns the last-known auto/manual flag for device, and whether any
// value has been recorded.
func (w *Watcher) Get(device string) (isAuto bool, known bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.m[device]
	return v, ok
}

// IsManual returns true for an unknown device (safety default: assume
// manual until proven otherwise).
func (w *Watcher) IsManual(device string) bool {
	isAuto, known := w.Get(device)
	if !known {
		return true
	}
	return !isAuto
}
