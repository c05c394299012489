// v0
// loader.go
package graph

import (
	"fmt"
	"strings"

	"nrgchamp/ctrlcore/internal/store"
)

// StoreLoader adapts a persistent SettingsStore into the control loop's
// NodesetProvider: it resolves the currently active nodeset id, loads its
// raw JSON, parses it, and validates it before handing it to the engine.
type StoreLoader struct {
	settings store.SettingsStore
}

func NewStoreLoader(settings store.SettingsStore) *StoreLoader {
	return &StoreLoader{settings: settings}
}

// ActiveNodeset implements controlloop.NodesetProvider.
func (l *StoreLoader) ActiveNodeset() (*Nodeset, error) {
	id, err := l.settings.ActiveNodesetID()
	if err != nil {
		return nil, fmt.Errorf("loading active nodeset id: %w", err)
	}
	raw, err := l.settings.NodeConfiguration(id)
	if err != nil {
		return nil, fmt.Errorf("loading node configuration %q: %w", id, err)
	}
	ns, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing node configuration %q: %w", id, err)
	}
	if errs := Validate(ns); len(errs) > 0 {
		return nil, fmt.Errorf("node configuration %q failed validation: %s", id, strings.Join(errs, "; "))
	}
	return ns, nil
}
