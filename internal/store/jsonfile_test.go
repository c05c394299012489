// v0
// jsonfile_test.go
package store

import (
	"path/filepath"
	"testing"

	"nrgchamp/ctrlcore/internal/domain"
)

func TestJSONFileStoreNodesetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodeset.json")
	s, err := NewJSONFileStore(path)
	if err != nil {
		t.Fatalf("NewJSONFileStore: %v", err)
	}
	if err := s.SetActiveNodesetID("0"); err != nil {
		t.Fatalf("SetActiveNodesetID: %v", err)
	}
	if err := s.SetNodeConfiguration("0", []byte(`{"nodes":[],"edges":[]}`)); err != nil {
		t.Fatalf("SetNodeConfiguration: %v", err)
	}
	got, err := s.ActiveNodesetID()
	if err != nil || got != "0" {
		t.Fatalf("ActiveNodesetID: %v %q", err, got)
	}
	raw, err := s.NodeConfiguration("0")
	if err != nil || string(raw) != `{"nodes":[],"edges":[]}` {
		t.Fatalf("NodeConfiguration: %v %s", err, raw)
	}
}

func TestJSONFileStoreHomeOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodeset.json")
	s, err := NewJSONFileStore(path)
	if err != nil {
		t.Fatalf("NewJSONFileStore: %v", err)
	}
	if err := s.SetUserIsHomeOverride(123456); err != nil {
		t.Fatalf("SetUserIsHomeOverride: %v", err)
	}
	got, err := s.UserIsHomeOverride()
	if err != nil || got != 123456 {
		t.Fatalf("UserIsHomeOverride: %v %d", err, got)
	}
}

func TestJSONFileStoreAppendActionLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodeset.json")
	s, err := NewJSONFileStore(path)
	if err != nil {
		t.Fatalf("NewJSONFileStore: %v", err)
	}
	rec := domain.ActionLogRecord{Timestamp: 1, Device: "LivingRoom", ActionKind: "off", CauseID: 1}
	if err := s.AppendActionLog(rec); err != nil {
		t.Fatalf("AppendActionLog: %v", err)
	}
	fs, err := s.read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(fs.ActionLog) != 1 || fs.ActionLog[0].Device != "LivingRoom" {
		t.Fatalf("unexpected action log contents: %+v", fs.ActionLog)
	}
}
