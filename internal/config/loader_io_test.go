package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndEnsureDir(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("KORTEX_CONFIG", "")

	cfg := DefaultConfig()
	cfg.Model.Name = "saved-model"
	if err := Save(cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if path != filepath.Join(tmpDir, ".kortex", "config.json") {
		t.Fatalf("unexpected config path: %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("saved config file missing: %v", err)
	}

	newDir := filepath.Join(tmpDir, "nested", "dir")
	if err := EnsureDir(newDir); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	if info, err := os.Stat(newDir); err != nil || !info.IsDir() {
		t.Fatalf("expected created directory, err=%v", err)
	}
}

func TestConfigPathRespectsKortexConfig(t *testing.T) {
	t.Setenv("HOME", "/srv/home")
	t.Setenv("KORTEX_CONFIG", "~/.kortex/custom.json")

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if path != filepath.Join("/srv/home", ".kortex", "custom.json") {
		t.Fatalf("unexpected config path: %q", path)
	}
}

func TestLoadInvalidJSONReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, ".kortex")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte(`{"model":`), 0o600); err != nil {
		t.Fatalf("write invalid config: %v", err)
	}
	t.Setenv("HOME", tmpDir)
	t.Setenv("KORTEX_CONFIG", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected JSON error, got nil")
	}
}

func TestLoadFollowsIncludesAndSubstitutesEnv(t *testing.T) {
	tmpDir := t.TempDir()
	base := filepath.Join(tmpDir, "base.json")
	if err := os.WriteFile(base, []byte(`{"model":{"name":"base-model","maxSteps":3}}`), 0o600); err != nil {
		t.Fatalf("write base: %v", err)
	}
	main := filepath.Join(tmpDir, "main.json")
	if err := os.WriteFile(main, []byte(`{"$include":"base.json","model":{"name":"${KORTEX_TEST_MODEL}"}}`), 0o600); err != nil {
		t.Fatalf("write main: %v", err)
	}
	t.Setenv("HOME", tmpDir)
	t.Setenv("KORTEX_CONFIG", main)
	t.Setenv("KORTEX_TEST_MODEL", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.Name != "from-env" {
		t.Fatalf("expected substituted model name, got %q", cfg.Model.Name)
	}
	if cfg.Model.MaxSteps != 3 {
		t.Fatalf("expected maxSteps from include, got %d", cfg.Model.MaxSteps)
	}
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a.json")
	b := filepath.Join(tmpDir, "b.json")
	_ = os.WriteFile(a, []byte(`{"$include":"b.json"}`), 0o600)
	_ = os.WriteFile(b, []byte(`{"$include":"a.json"}`), 0o600)
	t.Setenv("HOME", tmpDir)
	t.Setenv("KORTEX_CONFIG", a)

	if _, err := Load(); err == nil {
		t.Fatal("expected include cycle error")
	}
}

func TestSubstituteEnvValuesLeavesUnknownToken(t *testing.T) {
	input := map[string]any{
		"value": "${NOT_SET_VAR}",
	}
	out := substituteEnvValues(input).(map[string]any)
	if out["value"] != "${NOT_SET_VAR}" {
		t.Fatalf("expected unknown env token unchanged, got %v", out["value"])
	}
}
