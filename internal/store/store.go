// v0
// store.go
package store

import "nrgchamp/ctrlcore/internal/domain"

// SettingsStore models the persistent-store key contracts named by spec §6.
// The schema, migrations, and actual database engine are out of scope; this
// interface is the boundary the core depends on, satisfied here by a
// minimal JSON-file-backed default so the control loop has something to
// run against.
type SettingsStore interface {
	// ActiveNodesetID returns the string-encoded id of the nodeset currently
	// in effect.
	ActiveNodesetID() (string, error)
	SetActiveNodesetID(id string) error

	// NodeConfiguration returns the raw {nodes, edges} JSON blob for id.
	NodeConfiguration(id string) ([]byte, error)
	SetNodeConfiguration(id string, raw []byte) error

	// UserIsHomeOverride returns the unix timestamp until which the home
	// detector is forced true; 0 disables the override.
	UserIsHomeOverride() (int64, error)
	SetUserIsHomeOverride(unixSeconds int64) error
}

// ActionLogStore is the append-only action log contract (spec §3, §6).
type ActionLogStore interface {
	AppendActionLog(rec domain.ActionLogRecord) error
}
