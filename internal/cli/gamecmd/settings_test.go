package gamecmd

import (
	"testing"

	"github.com/cuihairu/arcade/internal/ports"
)

func TestApplySetting(t *testing.T) {
	cfg := &ports.LaunchConfig{SandboxHome: true}
	for _, kv := range [][2]string{
		{"entry_path", "www/index.html"},
		{"args", "--test  --fullscreen"},
		{"sandbox_home", "false"},
		{"use_compat_layer", "1"},
		{"env.LANG", "ja_JP.UTF-8"},
	} {
		if err := applySetting(cfg, kv[0], kv[1]); err != nil {
			t.Fatalf("%s: %v", kv[0], err)
		}
	}
	if cfg.EntryPath != "www/index.html" || len(cfg.Args) != 2 || cfg.Args[1] != "--fullscreen" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.SandboxHome || !cfg.UseCompatLayer || cfg.Env["LANG"] != "ja_JP.UTF-8" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if err := applySetting(cfg, "env.LANG", ""); err != nil || len(cfg.Env) != 0 {
		t.Fatalf("env delete: %v %v", err, cfg.Env)
	}
	if err := applySetting(cfg, "sandbox_home", "maybe"); err == nil {
		t.Fatal("expected bool parse error")
	}
	if err := applySetting(cfg, "nope", "x"); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestDecodeLaunchConfig(t *testing.T) {
	base := ports.DefaultLaunchConfig(&ports.Game{EngineType: ports.EngineRPGMakerMV})
	cfg, err := decodeLaunchConfig([]byte("entry_path: Game.exe\nenv:\n  FOO: bar\n"), base)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.EngineType != ports.EngineRPGMakerMV || cfg.EntryPath != "Game.exe" || !cfg.SandboxHome || cfg.Env["FOO"] != "bar" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Args == nil {
		t.Fatal("args should default to empty slice")
	}
	off, err := decodeLaunchConfig([]byte("sandbox_home: false\n"), base)
	if err != nil || off.SandboxHome {
		t.Fatalf("explicit sandbox_home: %v %+v", err, off)
	}
	if !base.SandboxHome {
		t.Fatal("base config was modified")
	}
	if _, err := decodeLaunchConfig([]byte("args: ["), base); err == nil {
		t.Fatal("expected parse error")
	}
}
