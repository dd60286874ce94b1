package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	dom "github.com/cuihairu/arcade/internal/ports"
	"github.com/cuihairu/arcade/internal/profile"
)

type staticRoot string

func (s staticRoot) ContainerRoot(context.Context) (string, error) { return string(s), nil }

type memGames struct {
	games   map[string]*dom.Game
	touched map[string]time.Time
}

func (m *memGames) Get(_ context.Context, id string) (*dom.Game, error) {
	g, ok := m.games[id]
	if !ok {
		return nil, apperrors.New(apperrors.CodeGameNotFound, "game not found")
	}
	cp := *g
	return &cp, nil
}

func (m *memGames) TouchLastPlayed(_ context.Context, id string, at time.Time) error {
	m.touched[id] = at
	return nil
}

type memEngines []*dom.Engine

func (m memEngines) Find(_ context.Context, t dom.EngineType, v string) (*dom.Engine, error) {
	for _, e := range m {
		if e.EngineType == t && (v == "" || e.Version == v) {
			return e, nil
		}
	}
	return nil, apperrors.New(apperrors.CodeEngineNotFound, "engine not found")
}

type fakeSpawner struct {
	plans []*Plan
	err   error
}

func (f *fakeSpawner) Spawn(p *Plan) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.plans = append(f.plans, p)
	return 4242, nil
}

type fakeWrapper struct{ profile string }

func (f *fakeWrapper) Wrap(_ context.Context, profile, exe string, args []string) (string, []string, error) {
	if profile == "" {
		profile = f.profile
	}
	if profile == "" {
		return "", nil, apperrors.New(apperrors.CodeCompatLayerUnavailable, "no profile")
	}
	return "bottles-cli", append([]string{"run", "-b", profile, "-e", exe, "--"}, args...), nil
}

type harness struct {
	l       *Launcher
	games   *memGames
	spawner *fakeSpawner
	layout  *profile.Layout
	root    string
}

func newHarness(t *testing.T, engines memEngines, w Wrapper) *harness {
	t.Helper()
	root := t.TempDir()
	h := &harness{
		games:   &memGames{games: map[string]*dom.Game{}, touched: map[string]time.Time{}},
		spawner: &fakeSpawner{},
		layout:  profile.NewLayout(staticRoot(root)),
		root:    root,
	}
	h.l = NewLauncher(h.games, engines, h.layout, Options{Wrapper: w, Spawner: h.spawner})
	h.l.goos = "linux"
	h.l.environ = func() []string { return []string{"HOME=/home/real", "PATH=/usr/bin"} }
	return h
}

func (h *harness) addGame(t *testing.T, id string, engine dom.EngineType, files ...string) *dom.Game {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Foo")
	for _, f := range append([]string{"placeholder"}, files...) {
		p := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	g := &dom.Game{ID: id, Title: "Foo", EngineType: engine, Path: dir, ProfileKey: id}
	h.games.games[id] = g
	return g
}

func (h *harness) saveConfig(t *testing.T, g *dom.Game, cfg *dom.LaunchConfig) {
	t.Helper()
	d, err := h.layout.Ensure(context.Background(), g.ProfileKey)
	if err != nil {
		t.Fatal(err)
	}
	profile.Normalize(cfg, g)
	if err := profile.SaveConfig(d.Root, cfg); err != nil {
		t.Fatal(err)
	}
}

func envValue(env []string, key string) string {
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v
		}
	}
	return ""
}

func TestLaunchExplicitEntryWithSandboxedHome(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.addGame(t, "g1", dom.EngineRPGMakerMV, "Game.exe")
	h.saveConfig(t, g, &dom.LaunchConfig{EntryPath: "Game.exe", Args: []string{"--test"}, SandboxHome: true})

	res, err := h.l.Launch(context.Background(), "g1")
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if res.ProcessID <= 0 {
		t.Fatalf("pid = %d", res.ProcessID)
	}
	p := h.spawner.plans[0]
	if p.Program != filepath.Join(g.Path, "Game.exe") || len(p.Args) != 1 || p.Args[0] != "--test" {
		t.Fatalf("plan = %s %v", p.Program, p.Args)
	}
	home := envValue(p.Env, "HOME")
	if !strings.HasPrefix(home, filepath.Join(h.root, profile.ProfilesDirName, "g1")) {
		t.Fatalf("HOME = %q", home)
	}
	if envValue(p.Env, "XDG_CONFIG_HOME") != filepath.Join(home, ".config") {
		t.Fatalf("XDG_CONFIG_HOME = %q", envValue(p.Env, "XDG_CONFIG_HOME"))
	}
	if envValue(p.Env, "PATH") != "/usr/bin" {
		t.Fatal("PATH not inherited")
	}
	if _, ok := h.games.touched["g1"]; !ok {
		t.Fatal("lastPlayedAt not updated")
	}
}

func TestLaunchMissingPathSpawnsNothing(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.addGame(t, "g1", dom.EngineRPGMakerVX, "Game.exe")
	if err := os.RemoveAll(g.Path); err != nil {
		t.Fatal(err)
	}
	_, err := h.l.Launch(context.Background(), "g1")
	if !apperrors.HasCode(err, apperrors.CodeInvalidPath) {
		t.Fatalf("expected INVALID_PATH, got %v", err)
	}
	if len(h.spawner.plans) != 0 || len(h.games.touched) != 0 {
		t.Fatal("state changed on failed launch")
	}
	if _, err := h.l.Launch(context.Background(), "nope"); !apperrors.HasCode(err, apperrors.CodeGameNotFound) {
		t.Fatalf("unknown id: %v", err)
	}
}

func TestLaunchSpawnFailure(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.addGame(t, "g1", dom.EngineRPGMakerVX, "RPG_RT")
	h.spawner.err = errors.New("permission denied")
	_, err := h.l.Launch(context.Background(), "g1")
	if !apperrors.HasCode(err, apperrors.CodeLaunchFailed) {
		t.Fatalf("expected LAUNCH_FAILED, got %v", err)
	}
	if len(h.games.touched) != 0 {
		t.Fatal("lastPlayedAt written after failure")
	}
}

func TestPlanNWJSUsesInstalledRuntime(t *testing.T) {
	rt := t.TempDir()
	if err := os.WriteFile(filepath.Join(rt, "nw"), []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, memEngines{{ID: "e1", EngineType: dom.EngineNWJSSDK, Version: "0.80.0", InstallPath: rt}}, nil)
	g := h.addGame(t, "g1", dom.EngineRPGMakerMZ, "www/package.json")

	p, err := h.l.Plan(context.Background(), "g1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Program != filepath.Join(rt, "nw") || p.Runtime != rt {
		t.Fatalf("program = %s", p.Program)
	}
	d := filepath.Join(h.root, profile.ProfilesDirName, "g1")
	want := []string{"--user-data-dir=" + filepath.Join(d, "User Data"), "--crash-dumps-dir=" + filepath.Join(d, "Crash Reports"), filepath.Join(g.Path, "www")}
	if strings.Join(p.Args, "|") != strings.Join(want, "|") {
		t.Fatalf("args = %v", p.Args)
	}
	if envValue(p.Env, "BREAKPAD_DUMP_LOCATION") != filepath.Join(d, "Crash Reports") {
		t.Fatal("BREAKPAD_DUMP_LOCATION not set")
	}
}

func TestPlanWithoutSandboxInheritsEnv(t *testing.T) {
	h := newHarness(t, nil, nil)
	g := h.addGame(t, "g1", dom.EngineOther, "run.sh")
	h.saveConfig(t, g, &dom.LaunchConfig{EntryPath: "run.sh", SandboxHome: false, Env: map[string]string{"LANG": "ja_JP.UTF-8"}})
	p, err := h.l.Plan(context.Background(), "g1")
	if err != nil {
		t.Fatal(err)
	}
	if envValue(p.Env, "HOME") != "/home/real" || envValue(p.Env, "LANG") != "ja_JP.UTF-8" {
		t.Fatalf("env = %v", p.Env)
	}

	h.addGame(t, "g2", dom.EngineOther)
	if _, err := h.l.Plan(context.Background(), "g2"); !apperrors.HasCode(err, apperrors.CodeLaunchFailed) {
		t.Fatalf("other without entry: %v", err)
	}
}

func TestPlanCompatWrapsExe(t *testing.T) {
	h := newHarness(t, nil, &fakeWrapper{profile: "Default"})
	g := h.addGame(t, "g1", dom.EngineRPGMakerVXAce, "Game.exe")
	h.saveConfig(t, g, &dom.LaunchConfig{SandboxHome: true, UseCompatLayer: true, Args: []string{"-x"}})
	p, err := h.l.Plan(context.Background(), "g1")
	if err != nil {
		t.Fatal(err)
	}
	if !p.Compat || p.Program != "bottles-cli" || p.Args[2] != "Default" || p.Args[len(p.Args)-1] != "-x" {
		t.Fatalf("plan = %s %v", p.Program, p.Args)
	}

	h.l.wrapper = &fakeWrapper{}
	_, err = h.l.Plan(context.Background(), "g1")
	if !apperrors.HasCode(err, apperrors.CodeLaunchFailed) || !apperrors.HasCode(err, apperrors.CodeCompatLayerUnavailable) {
		t.Fatalf("expected LAUNCH_FAILED caused by COMPAT_LAYER_UNAVAILABLE, got %v", err)
	}
}

func TestFindRootExecutablePrefersDirName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "MyNovel")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, mode := range map[string]os.FileMode{"a.sh": 0o755, "MyNovel.sh": 0o755, "MyNovel.py": 0o644} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"), mode); err != nil {
			t.Fatal(err)
		}
	}
	if got := findRootExecutable(dir, "linux"); got != filepath.Join(dir, "MyNovel.sh") {
		t.Fatalf("got %s", got)
	}
}
