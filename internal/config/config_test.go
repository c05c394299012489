// v0
// config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPropertiesParsesDevicesAndEndpoints(t *testing.T) {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "ctrlcore.properties")
	body := "devices=LivingRoom,Veranda\n" +
		"endpoint.LivingRoom=https://ac-livingroom.local\n" +
		"apikey.LivingRoom=secret-1\n" +
		"endpoint.Veranda=https://ac-veranda.local\n" +
		"apikey.Veranda=secret-2\n" +
		"control.cycle.minutes=10\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write properties: %v", err)
	}
	cfg := &AppConfig{DeviceEndpoints: map[string]DeviceEndpoint{}}
	if err := cfg.loadProperties(path); err != nil {
		t.Fatalf("loadProperties error: %v", err)
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(cfg.Devices))
	}
	ep, ok := cfg.DeviceEndpoints["LivingRoom"]
	if !ok || ep.BaseURL != "https://ac-livingroom.local" || ep.APIKey != "secret-1" {
		t.Fatalf("unexpected LivingRoom endpoint: %+v", ep)
	}
	if cfg.ControlCycleDefaultMinutes != 10 {
		t.Fatalf("expected cycle minutes 10, got %d", cfg.ControlCycleDefaultMinutes)
	}
}

func TestLoadPropertiesOutOfRangeCycleMinutesFallsBackToDefault(t *testing.T) {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "ctrlcore.properties")
	body := "devices=LivingRoom\n" +
		"endpoint.LivingRoom=https://ac-livingroom.local\n" +
		"apikey.LivingRoom=secret-1\n" +
		"control.cycle.minutes=5000\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write properties: %v", err)
	}
	cfg := &AppConfig{DeviceEndpoints: map[string]DeviceEndpoint{}}
	if err := cfg.loadProperties(path); err != nil {
		t.Fatalf("loadProperties error: %v", err)
	}
	if cfg.ControlCycleDefaultMinutes != 5 {
		t.Fatalf("expected fallback to default 5, got %d", cfg.ControlCycleDefaultMinutes)
	}
}
