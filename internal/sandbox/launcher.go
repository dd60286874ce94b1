// Package sandbox builds and spawns the isolated process for a title.
package sandbox

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	dom "github.com/cuihairu/arcade/internal/ports"
	"github.com/cuihairu/arcade/internal/profile"
	"github.com/cuihairu/arcade/internal/telemetry"
)

// Games is the registry slice the launcher needs.
type Games interface {
	Get(ctx context.Context, id string) (*dom.Game, error)
	TouchLastPlayed(ctx context.Context, id string, at time.Time) error
}

// Engines resolves installed runtimes.
type Engines interface {
	Find(ctx context.Context, t dom.EngineType, version string) (*dom.Engine, error)
}

// Wrapper routes a Windows executable through the compat layer.
type Wrapper interface {
	Wrap(ctx context.Context, profile, exe string, args []string) (string, []string, error)
}

// Plan is a fully resolved command line. It is what Launch would spawn.
type Plan struct {
	GameID     string         `json:"gameId"`
	EngineType dom.EngineType `json:"engineType"`
	Program    string         `json:"program"`
	Args       []string       `json:"args"`
	Dir        string         `json:"dir"`
	Env        []string       `json:"env"`
	ProfileDir string         `json:"profileDir"`
	Runtime    string         `json:"runtime,omitempty"`
	Compat     bool           `json:"compat"`
}

type Options struct {
	Wrapper Wrapper
	Spawner Spawner
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

type Launcher struct {
	games   Games
	engines Engines
	layout  *profile.Layout
	wrapper Wrapper
	spawner Spawner
	metrics *telemetry.Metrics
	log     *slog.Logger
	goos    string
	environ func() []string
	now     func() time.Time
}

func NewLauncher(games Games, engines Engines, layout *profile.Layout, opts Options) *Launcher {
	l := &Launcher{
		games:   games,
		engines: engines,
		layout:  layout,
		wrapper: opts.Wrapper,
		spawner: opts.Spawner,
		metrics: opts.Metrics,
		log:     opts.Logger,
		goos:    runtime.GOOS,
		environ: os.Environ,
		now:     time.Now,
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	l.log = l.log.With("component", "sandbox")
	if l.spawner == nil {
		l.spawner = NewExecSpawner(l.log)
	}
	return l
}

// Launch spawns the title and returns as soon as the child exists.
// lastPlayedAt is only written after a successful spawn.
func (l *Launcher) Launch(ctx context.Context, id string) (res *dom.LaunchResult, err error) {
	ctx, span := telemetry.Start(ctx, "sandbox.launch", telemetry.GameIDKey.String(id))
	defer func() { telemetry.End(span, err) }()

	p, err := l.Plan(ctx, id)
	if err != nil {
		l.metrics.Launch(ctx, "", err)
		return nil, err
	}
	pid, err := l.spawner.Spawn(p)
	if err != nil {
		err = apperrors.Wrap(apperrors.CodeLaunchFailed, "spawn process", err).With("game_id", id).With("program", p.Program)
		l.metrics.Launch(ctx, string(p.EngineType), err)
		return nil, err
	}
	if terr := l.games.TouchLastPlayed(ctx, id, l.now().UTC()); terr != nil {
		l.log.Warn("record last played", "game_id", id, "error", terr)
	}
	l.metrics.Launch(ctx, string(p.EngineType), nil)
	l.log.Info("game launched", "game_id", id, "pid", pid, "program", p.Program, "compat", p.Compat)
	return &dom.LaunchResult{ProcessID: pid}, nil
}

// Plan resolves everything Launch needs without starting a process.
func (l *Launcher) Plan(ctx context.Context, id string) (*Plan, error) {
	g, err := l.games.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if st, err := os.Stat(g.Path); err != nil || !st.IsDir() {
		return nil, apperrors.New(apperrors.CodeInvalidPath, "game directory is missing").With("game_id", id).With("path", g.Path)
	}
	p, err := l.plan(ctx, g)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeLaunchFailed) {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.CodeLaunchFailed, "prepare launch", err).With("game_id", id)
	}
	return p, nil
}

func (l *Launcher) plan(ctx context.Context, g *dom.Game) (*Plan, error) {
	dirs, err := l.layout.Ensure(ctx, g.ProfileKey)
	if err != nil {
		return nil, err
	}
	cfg, err := profile.LoadConfig(dirs.Root, g)
	if err != nil {
		return nil, err
	}

	p := &Plan{GameID: g.ID, EngineType: cfg.EngineType, Dir: g.Path, ProfileDir: dirs.Root}
	env := map[string]string{}
	entry, err := resolveEntry(g.Path, cfg.EntryPath)
	if err != nil {
		return nil, err
	}

	switch {
	case entry != "" && !isDir(entry) && !strings.EqualFold(filepath.Base(entry), "package.json"):
		p.Program = entry
		p.Args = append([]string{}, cfg.Args...)
	case cfg.EngineType.UsesNWJS():
		if err := l.planNWJS(ctx, p, g, cfg, dirs, entry, env); err != nil {
			return nil, err
		}
	case cfg.EngineType == dom.EngineRPGMakerVX || cfg.EngineType == dom.EngineRPGMakerVXAce:
		p.Program = firstExisting(g.Path, "Game", "Game.exe", "RPG_RT", "RPG_RT.exe")
		if p.Program == "" {
			return nil, apperrors.New(apperrors.CodeLaunchFailed, "no RPG Maker executable found").With("game_id", g.ID)
		}
		p.Args = append([]string{}, cfg.Args...)
	case cfg.EngineType == dom.EngineRenPy:
		p.Program = findRootExecutable(g.Path, l.goos)
		if p.Program == "" {
			return nil, apperrors.New(apperrors.CodeLaunchFailed, "no Ren'Py launcher found").With("game_id", g.ID)
		}
		p.Args = append([]string{}, cfg.Args...)
	default:
		return nil, apperrors.New(apperrors.CodeLaunchFailed, "no entry configured").With("game_id", g.ID)
	}

	if cfg.SandboxHome {
		env["HOME"] = dirs.Home
		env["USERPROFILE"] = dirs.Home
		env["APPDATA"] = dirs.Config
		env["LOCALAPPDATA"] = dirs.Data
		env["XDG_CONFIG_HOME"] = dirs.Config
		env["XDG_CACHE_HOME"] = dirs.Cache
		env["XDG_DATA_HOME"] = dirs.Data
		env["XDG_STATE_HOME"] = dirs.State
	}
	for k, v := range cfg.Env {
		env[k] = v
	}
	p.Env = mergeEnv(l.environ(), env)

	if cfg.UseCompatLayer && l.goos != "windows" && strings.EqualFold(filepath.Ext(p.Program), ".exe") {
		if l.wrapper == nil {
			return nil, apperrors.New(apperrors.CodeCompatLayerUnavailable, "compat layer is not configured")
		}
		prog, argv, err := l.wrapper.Wrap(ctx, cfg.CompatProfileName, p.Program, p.Args)
		if err != nil {
			return nil, err
		}
		p.Program, p.Args, p.Compat = prog, argv, true
	}
	return p, nil
}

func (l *Launcher) planNWJS(ctx context.Context, p *Plan, g *dom.Game, cfg *dom.LaunchConfig, dirs *profile.Dirs, entry string, env map[string]string) error {
	if rt := l.runtimeDir(ctx, cfg.RuntimeVersion); rt != "" {
		p.Program = findNWBinary(rt)
		if p.Program != "" {
			p.Runtime = rt
		}
	}
	if p.Program == "" {
		p.Program = findNWBinary(g.Path)
	}
	if p.Program == "" {
		if bin, err := lookPath("nw"); err == nil {
			p.Program = bin
		}
	}
	if p.Program == "" {
		return apperrors.New(apperrors.CodeEngineNotFound, "no NW.js runtime installed").With("game_id", g.ID)
	}
	if cfg.SandboxHome {
		p.Args = append(p.Args, "--user-data-dir="+dirs.UserData, "--crash-dumps-dir="+dirs.CrashReports)
		env["BREAKPAD_DUMP_LOCATION"] = dirs.CrashReports
	}
	p.Args = append(p.Args, cfg.Args...)
	p.Args = append(p.Args, nwAppPath(g.Path, entry))
	return nil
}

// runtimeDir prefers the configured version, then the newest nwjs, then the newest SDK.
func (l *Launcher) runtimeDir(ctx context.Context, version string) string {
	if l.engines == nil {
		return ""
	}
	type q struct {
		t dom.EngineType
		v string
	}
	tries := []q{{dom.EngineNWJS, ""}, {dom.EngineNWJSSDK, ""}}
	if v := strings.TrimSpace(version); v != "" {
		tries = append([]q{{dom.EngineNWJS, v}, {dom.EngineNWJSSDK, v}}, tries...)
	}
	for _, t := range tries {
		e, err := l.engines.Find(ctx, t.t, t.v)
		if err == nil && isDir(e.InstallPath) {
			return e.InstallPath
		}
		if err != nil && !apperrors.HasCode(err, apperrors.CodeEngineNotFound) {
			l.log.Warn("find runtime", "type", t.t, "version", t.v, "error", err)
		}
	}
	return ""
}

func resolveEntry(gameDir, entry string) (string, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return "", nil
	}
	if !filepath.IsAbs(entry) {
		entry = filepath.Join(gameDir, entry)
	}
	if _, err := os.Stat(entry); err != nil {
		return "", apperrors.Wrap(apperrors.CodeLaunchFailed, "entry not found", err).With("entry", entry)
	}
	return filepath.Clean(entry), nil
}

func nwAppPath(gameDir, entry string) string {
	if entry != "" {
		if strings.EqualFold(filepath.Base(entry), "package.json") {
			return filepath.Dir(entry)
		}
		return entry
	}
	if isFile(filepath.Join(gameDir, "package.json")) {
		return gameDir
	}
	if www := filepath.Join(gameDir, "www"); isFile(filepath.Join(www, "package.json")) {
		return www
	}
	return gameDir
}

func findNWBinary(dir string) string {
	if p := firstExisting(dir, "nw", "nw.exe", "nwjs", "nwjs.exe", "Game", "Game.exe"); p != "" {
		return p
	}
	if p := filepath.Join(dir, "nwjs.app", "Contents", "MacOS", "nwjs"); isFile(p) {
		return p
	}
	return ""
}

func firstExisting(dir string, names ...string) string {
	for _, n := range names {
		if p := filepath.Join(dir, n); isFile(p) {
			return p
		}
	}
	return ""
}

func mergeEnv(base []string, over map[string]string) []string {
	out := make([]string, 0, len(base)+len(over))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := over[k]; ok {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(over))
	for k := range over {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+over[k])
	}
	return out
}

func isDir(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}

func isFile(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
