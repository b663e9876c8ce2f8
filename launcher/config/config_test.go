package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadExample(t *testing.T) {
	path := filepath.Join("..", "..", "config_example.ini")
	conf, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if conf.GetString("BundleDir") == "" {
		t.Fatalf("expected BundleDir to be present")
	}
	if conf.GetInt("WorkerPoolSize") <= 0 {
		t.Fatalf("expected WorkerPoolSize to be positive")
	}
}

func TestDefaults(t *testing.T) {
	conf, err := Load(writeConfig(t, "LogLevel = debug\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if got := conf.GetString("BundleExt"); got != ".zip" {
		t.Errorf("expected default BundleExt .zip, got %q", got)
	}
	if got := conf.GetString("RecordsBackend"); got != "file" {
		t.Errorf("expected default RecordsBackend file, got %q", got)
	}
	if got := conf.GetString("LogLevel"); got != "debug" {
		t.Errorf("expected LogLevel debug, got %q", got)
	}
	if conf.GetBool("WatchBundles") {
		t.Errorf("expected watcher disabled by default")
	}
}

func TestPluginSections(t *testing.T) {
	path := writeConfig(t, `BundleDir = ./bundles

[plugins.arcade]
enabled = true
note = retro pack
priority = 10

[plugins.broken]
enabled = false
`)

	conf, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if conf.GetString("BundleDir") != "./bundles" {
		t.Errorf("expected BundleDir=./bundles, got %s", conf.GetString("BundleDir"))
	}

	if _, ok := conf.GetPluginConfig("arcade"); !ok {
		t.Fatal("expected arcade plugin config to exist")
	}
	if cfg, _ := conf.GetPluginConfig("arcade"); cfg["note"] != "retro pack" {
		t.Errorf("expected arcade note, got %v", cfg["note"])
	}
	if !conf.PluginEnabled("arcade") {
		t.Errorf("expected arcade enabled")
	}
	if conf.PluginEnabled("broken") {
		t.Errorf("expected broken disabled")
	}
	if !conf.PluginEnabled("unlisted") {
		t.Errorf("expected bundles without a section to be enabled")
	}

	names := conf.PluginNames()
	if len(names) != 2 || names[0] != "arcade" || names[1] != "broken" {
		t.Errorf("unexpected plugin names: %v", names)
	}
}

func TestPluginConfigNotFound(t *testing.T) {
	conf, err := Load(writeConfig(t, "LogLevel = info\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if _, ok := conf.GetPluginConfig("nonexistent"); ok {
		t.Error("expected nonexistent plugin to not be found")
	}
	if conf.GetPluginBool("nonexistent", "key") {
		t.Error("expected false for nonexistent plugin")
	}
}

func TestGetPluginBool(t *testing.T) {
	conf, err := Load(writeConfig(t, `[plugins.a]
enabled = 1

[plugins.b]
enabled = TRUE

[plugins.c]
enabled = maybe

[plugins.d]
enabled = 0
`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	tests := []struct {
		name string
		want bool
	}{
		{"a", true},
		{"b", true},
		{"c", false},
		{"d", false},
	}
	for _, tt := range tests {
		if got := conf.GetPluginBool(tt.name, "enabled"); got != tt.want {
			t.Errorf("GetPluginBool(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("GAMELAUNCHER_BUNDLEDIR", "/srv/games")
	conf, err := Load(writeConfig(t, "LogLevel = info\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if got := conf.GetString("BundleDir"); got != "/srv/games" {
		t.Errorf("expected env override, got %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.ini")); err == nil {
		t.Fatal("expected error for missing config")
	}
}
