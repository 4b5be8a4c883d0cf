package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/openbci/internal/acquisition"
	"github.com/banshee-data/openbci/internal/config"
	"github.com/banshee-data/openbci/internal/openbci"
)

// setFlag sets a command-line flag for the duration of the test.
func gainOf(g int) *int { return &g }

func setFlag(t *testing.T, name, value string) {
	t.Helper()
	f := flag.Lookup(name)
	if f == nil {
		t.Fatalf("flag %q not defined", name)
	}
	old := f.Value.String()
	if err := flag.Set(name, value); err != nil {
		t.Fatalf("flag.Set(%q, %q): %v", name, value, err)
	}
	t.Cleanup(func() { f.Value.Set(old) })
}

func TestFlagDefaults(t *testing.T) {
	if *gain != openbci.DefaultGain {
		t.Errorf("expected gain default %d, got %d", openbci.DefaultGain, *gain)
	}
	if *interval != 100*time.Millisecond {
		t.Errorf("expected interval default 100ms, got %v", *interval)
	}
	if *board != "synthetic" {
		t.Errorf("expected board default synthetic, got %q", *board)
	}
	if *noRecord {
		t.Error("expected recording to be enabled by default")
	}
}

func TestParseIntList(t *testing.T) {
	got, err := parseIntList(" 1, 3,,16 ")
	if err != nil {
		t.Fatalf("parseIntList: %v", err)
	}
	if diff := cmp.Diff([]int{1, 3, 16}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if _, err := parseIntList("1,two"); err == nil {
		t.Error("expected error for non-numeric channel")
	}
	if got, _ := parseIntList(""); got != nil {
		t.Errorf("expected nil for empty list, got %v", got)
	}
}

func TestApplyFlagsOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.json")
	body := `{"board": "cyton", "gain": 8, "params": {"serial_port": "/dev/ttyUSB0"}, "debug": true}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadNodeConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	setFlag(t, "gain", "4")
	setFlag(t, "serial-port", "/dev/ttyACM0")
	setFlag(t, "channels", "Fp1,Fp2")
	setFlag(t, "no-record", "true")
	setFlag(t, "interval", "250ms")

	set := map[string]bool{"gain": true, "serial-port": true, "channels": true, "no-record": true, "interval": true}
	if err := applyFlags(cfg, set); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}

	want := openbci.Config{
		Board:    "cyton",
		Channels: []string{"Fp1", "Fp2"},
		Gain:     gainOf(4),
		Debug:    true,
		Params:   acquisition.Params{SerialPort: "/dev/ttyACM0"},
	}
	if diff := cmp.Diff(want, cfg.NodeOptions()); diff != "" {
		t.Errorf("NodeOptions mismatch (-want +got):\n%s", diff)
	}
	if cfg.GetRecord() {
		t.Error("expected -no-record to disable recording")
	}
	if got := cfg.GetPollInterval(); got != 250*time.Millisecond {
		t.Errorf("expected poll interval 250ms, got %v", got)
	}
}

func TestApplyFlagsUnsetLeavesFile(t *testing.T) {
	b := "ganglion"
	cfg := &config.NodeConfig{Board: &b}
	if err := applyFlags(cfg, map[string]bool{}); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if got := cfg.GetBoard(); got != "ganglion" {
		t.Errorf("expected board from file, got %q", got)
	}
}

func TestApplyFlagsDevMode(t *testing.T) {
	setFlag(t, "dev", "true")
	setFlag(t, "board", "cyton")

	cfg := config.EmptyNodeConfig()
	if err := applyFlags(cfg, map[string]bool{"board": true}); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if got := cfg.GetBoard(); got != "synthetic" {
		t.Errorf("expected dev mode to force synthetic, got %q", got)
	}
}

func TestApplyFlagsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		flag  string
		value string
	}{
		{"unknown board", "board", "muse"},
		{"bad disable list", "disable", "1,x"},
		{"bad timestamps", "timestamps", "local"},
		{"param not accepted", "ip-port", "6677"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setFlag(t, tt.flag, tt.value)
			if err := applyFlags(config.EmptyNodeConfig(), map[string]bool{tt.flag: true}); err == nil {
				t.Errorf("expected error for -%s=%s", tt.flag, tt.value)
			}
		})
	}
}
