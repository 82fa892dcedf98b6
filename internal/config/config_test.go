package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/saker-ai/spot-sdk/pkg/spot"
)

func writeFile(t *testing.T, path string, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll error: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	writeFile(t, path, "identity: rover\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.ServerAddr != spot.DefaultServerAddr {
		t.Fatalf("server_addr=%q, want %q", cfg.ServerAddr, spot.DefaultServerAddr)
	}
	if cfg.Identity != "rover" {
		t.Fatalf("identity=%q, want %q", cfg.Identity, "rover")
	}
	if cfg.KeepAlive != string(spot.KeepAliveUntilDone) {
		t.Fatalf("keep_alive=%q, want %q", cfg.KeepAlive, spot.KeepAliveUntilDone)
	}
	if cfg.Settle.Stand != 2*time.Second || cfg.Settle.Rotate != 100*time.Millisecond || cfg.Settle.Walk != time.Second {
		t.Fatalf("settle=%+v, want defaults", cfg.Settle)
	}
	if cfg.JournalDir != filepath.Join(dir, "data", "programs") {
		t.Fatalf("journal_dir=%q, want under %q", cfg.JournalDir, dir)
	}
}

func TestLoadConfigFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, strings.Join([]string{
		"server_addr: 10.0.0.7:9000",
		"keep_alive: forever",
		"settle:",
		"  walk: 250ms",
		"source_extensions: [py, .pyw]",
		"journal_dir: /var/lib/spot",
	}, "\n"))

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.ServerAddr != "10.0.0.7:9000" {
		t.Fatalf("server_addr=%q, want %q", cfg.ServerAddr, "10.0.0.7:9000")
	}
	if cfg.KeepAlive != string(spot.KeepAliveForever) {
		t.Fatalf("keep_alive=%q, want forever", cfg.KeepAlive)
	}
	if cfg.Settle.Walk != 250*time.Millisecond {
		t.Fatalf("settle.walk=%v, want 250ms", cfg.Settle.Walk)
	}
	if cfg.Settle.Stand != 2*time.Second {
		t.Fatalf("settle.stand=%v, want default 2s", cfg.Settle.Stand)
	}
	if got := strings.Join(cfg.SourceExtensions, ","); got != ".py,.pyw" {
		t.Fatalf("source_extensions=%q, want %q", got, ".py,.pyw")
	}
	if cfg.JournalDir != "/var/lib/spot" {
		t.Fatalf("journal_dir=%q, want absolute path kept", cfg.JournalDir)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	writeFile(t, path, "server_addr: 10.0.0.7:9000\n")

	t.Setenv("SPOT_SERVER_ADDR", "127.0.0.1:8123")
	t.Setenv("SPOT_SETTLE_SIT", "3s")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.ServerAddr != "127.0.0.1:8123" {
		t.Fatalf("server_addr=%q, want env value", cfg.ServerAddr)
	}
	if cfg.Settle.Sit != 3*time.Second {
		t.Fatalf("settle.sit=%v, want 3s", cfg.Settle.Sit)
	}
}

func TestLoadConfigRejectsUnknownKeepAlive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")
	writeFile(t, path, "keep_alive: sometimes\n")

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig error=nil, want keep_alive error")
	}
}

func TestLoadConfigGeneratesIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")
	writeFile(t, path, "log:\n  level: debug\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if !strings.HasPrefix(cfg.Identity, "spotctl-") {
		t.Fatalf("identity=%q, want spotctl- prefix", cfg.Identity)
	}
}

func TestSDKMapping(t *testing.T) {
	cfg := Config{
		ServerAddr:  "robot.local:8000",
		Reconnect:   true,
		HTTPTimeout: 3 * time.Second,
		Settle:      SettleConfig{Stand: time.Second, Walk: 0},
	}
	sdk := cfg.SDK()
	if sdk.ServerAddr != "robot.local:8000" || !sdk.Reconnect || sdk.HTTPTimeout != 3*time.Second {
		t.Fatalf("SDK()=%+v, want fields copied", sdk)
	}
	if sdk.Settle == nil || sdk.Settle.Stand != time.Second || sdk.Settle.Walk != 0 {
		t.Fatalf("SDK().Settle=%+v, want explicit durations", sdk.Settle)
	}
}

func TestScanScripts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "patrol.yaml"), "name: patrol\nmode: live\n")
	writeFile(t, filepath.Join(dir, "nested", "dance.yml"), "name: dance\nmode: program\n")
	writeFile(t, filepath.Join(dir, "broken.yaml"), "name: [\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	scripts, err := ScanScripts(dir)
	if err != nil {
		t.Fatalf("ScanScripts error: %v", err)
	}
	if len(scripts) != 3 {
		t.Fatalf("ScanScripts len=%d, want 3: %+v", len(scripts), scripts)
	}
	if scripts[0].Filename != "broken.yaml" || scripts[0].Name != "broken.yaml" {
		t.Fatalf("scripts[0]=%+v, want broken.yaml listed by file name", scripts[0])
	}
	if scripts[1].Name != "dance" || scripts[1].Mode != "program" {
		t.Fatalf("scripts[1]=%+v, want dance/program", scripts[1])
	}
	if scripts[2].Name != "patrol" || scripts[2].Mode != "live" {
		t.Fatalf("scripts[2]=%+v, want patrol/live", scripts[2])
	}
}

func TestScanScriptsMissingDir(t *testing.T) {
	scripts, err := ScanScripts(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("ScanScripts error: %v", err)
	}
	if len(scripts) != 0 {
		t.Fatalf("ScanScripts=%v, want empty", scripts)
	}
}
