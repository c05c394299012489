// v0
// devicestate.go
package devicestate

import (
	"sync"
	"time"

	"nrgchamp/ctrlcore/internal/domain"
)

// record pairs a device's last-commanded state with the "initialized" flag
// that forces a sync-to-physical command on the first cycle after boot,
// plus the instant of the last command actually sent.
type record struct {
	state       domain.DeviceCommandState
	initialized bool
	lastSentAt  time.Time
}

// Cache is the process-wide Device State Cache (spec §4.3): a mapping
// device_name -> DeviceCommandState and a parallel initialized flag.
// Reads take the shared lock, mutation takes the exclusive lock, and the
// lock is never held across a suspension point.
type Cache struct {
	mu sync.RWMutex
	m  map[string]record
}

func New() *Cache {
	return &Cache{m: make(map[string]record)}
}

// Get returns the last-known state for device, defaulting to an
// uninitialized off-state for a device never seen before.
func (c *Cache) Get(device string) (domain.DeviceCommandState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.m[device]
	if !ok {
		return domain.DefaultDeviceCommandState(), false
	}
	return r.state, r.initialized
}

// Set records state for device, stamping the last-sent instant, without
// touching its initialized flag.
func (c *Cache) Set(device string, state domain.DeviceCommandState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.m[device]
	r.state = state
	r.lastSentAt = time.Now()
	c.m[device] = r
}

// MinutesSinceLastAction returns how long ago a command was last sent to
// device, or domain.MinutesSinceLastActionSentinel if none has been.
func (c *Cache) MinutesSinceLastAction(device string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.m[device]
	if !ok || r.lastSentAt.IsZero() {
		return domain.MinutesSinceLastActionSentinel
	}
	return int(time.Since(r.lastSentAt).Minutes())
}

// MarkInitialized sets the initialized flag for device, signalling that at
// least one command has been issued since process start.
func (c *Cache) MarkInitialized(device string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.m[device]
	r.initialized = true
	c.m[device] = r
}

// ClearInitialization clears the initialized flag for device and resets its
// cached state to the default off-state, used by the graph engine's
// ResetActiveCommand side flag to force a resync.
func (c *Cache) ClearInitialization(device string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.m[device]
	r.state = domain.DefaultDeviceCommandState()
	r.initialized = false
	c.m[device] = r
}

// ClearAll resets the cache to empty.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string]record)
}

// RequiresChange reports structural inequality between the cached state
// for device and target.
func (c *Cache) RequiresChange(device string, target domain.DeviceCommandState) bool {
	current, _ := c.Get(device)
	return !current.Equal(target)
}
