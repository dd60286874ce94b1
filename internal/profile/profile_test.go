package profile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	"github.com/cuihairu/arcade/internal/ports"
)

type staticRoot string

func (s staticRoot) ContainerRoot(context.Context) (string, error) { return string(s), nil }

func TestEnsureCreatesTreeUnderProfileKey(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(staticRoot(root))
	d, err := l.Ensure(context.Background(), "key-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if d.Root != filepath.Join(root, "profiles", "key-1") {
		t.Fatalf("root = %s", d.Root)
	}
	for _, p := range []string{d.Home, d.Config, d.Cache, d.Data, d.State, d.UserData, d.CrashReports} {
		if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
			t.Fatalf("missing dir %s: %v", p, err)
		}
	}
	if _, err := l.Ensure(context.Background(), "../escape"); !apperrors.HasCode(err, apperrors.CodeInvalidPath) {
		t.Fatalf("expected INVALID_PATH for traversal key, got %v", err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	g := &ports.Game{ID: "g", EngineType: ports.EngineRenPy, RuntimeVersion: "8.1"}
	cfg, err := LoadConfig(dir, g)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.SandboxHome || cfg.Args == nil || len(cfg.Args) != 0 {
		t.Fatalf("defaults wrong: %+v", cfg)
	}
	if cfg.EngineType != ports.EngineRenPy || cfg.RuntimeVersion != "8.1" {
		t.Fatalf("game-derived defaults wrong: %+v", cfg)
	}

	// a file that omits sandbox_home keeps the default
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte("entry_path: Game.exe\nargs: [--test]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadConfig(dir, g)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.SandboxHome || cfg.EntryPath != "Game.exe" || len(cfg.Args) != 1 || cfg.Args[0] != "--test" {
		t.Fatalf("partial file not merged over defaults: %+v", cfg)
	}
}

func TestSaveConfigValidatesAndPersists(t *testing.T) {
	dir := t.TempDir()
	cfg := &ports.LaunchConfig{
		EngineType:  ports.EngineRPGMakerMV,
		EntryPath:   "Game.exe",
		Args:        []string{"--test"},
		SandboxHome: false,
		Env:         map[string]string{"LANG": "ja_JP.UTF-8"},
	}
	if err := SaveConfig(dir, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadConfig(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.SandboxHome {
		t.Fatalf("explicit false must survive a reload")
	}
	if got.Env["LANG"] != "ja_JP.UTF-8" || got.EngineType != ports.EngineRPGMakerMV {
		t.Fatalf("reloaded config = %+v", got)
	}

	bad := &ports.LaunchConfig{EngineType: ports.EngineOther, Args: []string{}, Env: map[string]string{"1BAD": "x"}}
	if err := SaveConfig(dir, bad); !apperrors.HasCode(err, apperrors.CodeInvalidConfig) {
		t.Fatalf("expected INVALID_CONFIG, got %v", err)
	}
}
