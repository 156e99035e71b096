package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("unexpected logging defaults %+v", cfg.Logging)
	}
	if cfg.Telemetry.Channel != "vehicle-telemetry" || cfg.Telemetry.QueueCapacity != 2 {
		t.Errorf("unexpected telemetry defaults %+v", cfg.Telemetry)
	}
	if cfg.Simulator.Enabled {
		t.Error("simulator should be disabled by default")
	}
	if len(cfg.ViewGroups) != 1 || cfg.ViewGroups[0].Views != 2 {
		t.Errorf("expected one default group with two views, got %+v", cfg.ViewGroups)
	}
}

func TestParse_Full(t *testing.T) {
	doc := `
server:
  port: 8080
logging:
  level: debug
  format: json
simulator:
  enabled: true
  frameIntervalMS: 1000
gtfsrt:
  feeds:
    - name: dart
      vehiclePositionsURL: https://example.com/vp.pb
      defaultVehicleType: van
viewGroups:
  - id: ops
    views: 3
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Logging.Format != "json" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.Simulator.Enabled || cfg.Simulator.StartDelayMS != DefaultStartDelayMS {
		t.Errorf("unexpected simulator %+v", cfg.Simulator)
	}
	if got := Millis(cfg.Simulator.FrameIntervalMS); got != time.Second {
		t.Errorf("expected 1s frame, got %v", got)
	}
	feed := cfg.GTFSRT.Feeds[0]
	if feed.ReadIntervalMS != DefaultReadIntervalMS || feed.TimeoutMS != DefaultTimeoutMS || feed.DefaultVehicleType != "van" {
		t.Errorf("unexpected feed %+v", feed)
	}
	if cfg.ViewGroups[0].ID != "ops" || cfg.ViewGroups[0].Views != 3 {
		t.Errorf("unexpected groups %+v", cfg.ViewGroups)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "bad yaml", doc: "server: [1"},
		{name: "port out of range", doc: "server:\n  port: 70000"},
		{name: "unknown level", doc: "logging:\n  level: loud"},
		{name: "negative capacity", doc: "telemetry:\n  queueCapacity: -1"},
		{name: "feed without url", doc: "gtfsrt:\n  feeds:\n    - name: dart"},
		{name: "feed with bad type", doc: "gtfsrt:\n  feeds:\n    - name: dart\n      vehiclePositionsURL: x\n      defaultVehicleType: bus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Errorf("expected error for %q", tt.doc)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected 9000, got %d", cfg.Server.Port)
	}

	if _, err := Load(filepath.Join(dir, "missing.yml")); err == nil {
		t.Error("expected error for an explicit missing file")
	}
}

func TestLoad_SearchPaths(t *testing.T) {
	dir := t.TempDir()
	orig := SearchPaths
	t.Cleanup(func() { SearchPaths = orig })

	SearchPaths = []string{filepath.Join(dir, "absent.yml")}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("a missing search path should fall back to defaults: %v", err)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}

	found := filepath.Join(dir, "found.yml")
	if err := os.WriteFile(found, []byte("siri:\n  producerRef: DFW\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	SearchPaths = append(SearchPaths, found)
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SIRI.ProducerRef != "DFW" {
		t.Errorf("expected DFW, got %s", cfg.SIRI.ProducerRef)
	}
}
