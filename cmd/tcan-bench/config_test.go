package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *appConfig {
	return &appConfig{
		listenAddr: "localhost:8080", iface: "socketcan", channel: "can0", deviceID: 1, baud: 115200,
		logFormat: "text", logLevel: "info", hubBuffer: 8, hubPolicy: "drop", beacons: true,
	}
}

func TestConfigValidate_OK(t *testing.T) {
	if err := validConfig().validate(); err != nil {
		t.Fatalf("expected ok got %v", err)
	}
	if err := defaultAppConfig().validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*appConfig)
	}{
		{"badFormat", func(c *appConfig) { c.logFormat = "xx" }},
		{"badLevel", func(c *appConfig) { c.logLevel = "nope" }},
		{"badInterface", func(c *appConfig) { c.iface = "pcan" }},
		{"emptyChannel", func(c *appConfig) { c.channel = "" }},
		{"badPolicy", func(c *appConfig) { c.hubPolicy = "x" }},
		{"badHubBuf", func(c *appConfig) { c.hubBuffer = 0 }},
		{"badBaud", func(c *appConfig) { c.baud = 0 }},
		{"badDeviceID", func(c *appConfig) { c.deviceID = 16 }},
		{"badMaxMonitors", func(c *appConfig) { c.maxMonitors = -1 }},
		{"badMetricsInterval", func(c *appConfig) { c.logMetricsEvery = -time.Second }},
		{"badListen", func(c *appConfig) { c.listenAddr = "8080" }},
	}
	for _, tc := range tests {
		base := validConfig()
		tc.mod(base)
		if err := base.validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestParseServeFlags_Defaults(t *testing.T) {
	cfg, err := parseServeFlags(nil, io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.listenAddr != "localhost:8080" || cfg.iface != "socketcan" || cfg.channel != "can0" || cfg.deviceID != 1 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestParseServeFlags_FileThenFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	doc := `version: bench-cfg-v1
server:
  host: 0.0.0.0
  port: 9090
tcan:
  interface: serial
  channel: /dev/ttyUSB0
  device_id: 3
  baud: 230400
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := parseServeFlags([]string{"-config", path, "-channel", "/dev/ttyACM0"}, io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.listenAddr != "0.0.0.0:9090" {
		t.Fatalf("listen from file: %s", cfg.listenAddr)
	}
	if cfg.iface != "serial" || cfg.deviceID != 3 || cfg.baud != 230400 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.channel != "/dev/ttyACM0" {
		t.Fatalf("flag must win over file, channel=%s", cfg.channel)
	}
}

func TestParseServeFlags_FileDeviceIDZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	doc := `version: bench-cfg-v1
tcan:
  interface: virtual
  channel: v0
  device_id: 0
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := parseServeFlags([]string{"-config", path}, io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.deviceID != 0 {
		t.Fatalf("device_id 0 from file not applied: got %d", cfg.deviceID)
	}

	cfg, err = parseServeFlags([]string{"-config", path, "-device-id", "4"}, io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.deviceID != 4 {
		t.Fatalf("flag must win over file device_id, got %d", cfg.deviceID)
	}
}

func TestParseServeFlags_Rejects(t *testing.T) {
	if _, err := parseServeFlags([]string{"-device-id", "99"}, io.Discard); err == nil {
		t.Fatalf("expected device-id range error")
	}
	if _, err := parseServeFlags([]string{"extra"}, io.Discard); err == nil {
		t.Fatalf("expected error for positional args")
	}
	if _, err := parseServeFlags([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}, io.Discard); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
