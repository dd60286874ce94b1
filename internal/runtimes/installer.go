package runtimes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	"github.com/cuihairu/arcade/internal/ports"
	"github.com/cuihairu/arcade/internal/telemetry"
)

// State is a step of the install task.
type State string

const (
	StateResolving   State = "resolving"
	StateDownloading State = "downloading"
	StateVerifying   State = "verifying"
	StateInstalling  State = "installing"
	StateInstalled   State = "installed"
	StateFailed      State = "failed"
)

const (
	downloadsDir = "_downloads"
	stagingDir   = "_staging"
	nwjsDir      = "nwjs"

	progressEvery = 256 << 10
)

// InstallerOptions configures an Installer.
type InstallerOptions struct {
	Root           string
	Source         Source
	Repo           ports.EnginesRepository
	Events         ports.Publisher
	Metrics        *telemetry.Metrics
	Logger         *slog.Logger
	VerifyChecksum bool
	// Target overrides the host target (tests, cross installs).
	Target string
}

// Installer runs install tasks. Identical requests share one task.
type Installer struct {
	root    string
	src     Source
	repo    ports.EnginesRepository
	events  ports.Publisher
	metrics *telemetry.Metrics
	log     *slog.Logger
	verify  bool
	target  string
	now     func() time.Time

	mu       sync.Mutex
	inflight map[string]*Task
	// held counts engine deletions in progress, by flavor/version
	held map[string]int
}

func NewInstaller(opts InstallerOptions) *Installer {
	i := &Installer{
		root:     opts.Root,
		src:      opts.Source,
		repo:     opts.Repo,
		events:   opts.Events,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		verify:   opts.VerifyChecksum,
		target:   opts.Target,
		now:      time.Now,
		inflight: make(map[string]*Task),
		held:     make(map[string]int),
	}
	if i.events == nil {
		i.events = ports.NopPublisher{}
	}
	if i.log == nil {
		i.log = slog.Default()
	}
	i.log = i.log.With("component", "runtimes")
	return i
}

// Root is the runtimes directory.
func (i *Installer) Root() string { return i.root }

// Target is the download target used for installs.
func (i *Installer) Target() (string, error) {
	if i.target != "" {
		return i.target, nil
	}
	return HostTarget()
}

// Task is one install. Wait blocks until it finishes.
type Task struct {
	ID         string
	Version    string
	Flavor     Flavor
	Target     string
	InstallDir string

	done   chan struct{}
	mu     sync.Mutex
	state  State
	engine *ports.Engine
	err    error
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// State returns the current step.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait returns the task outcome, or ctx's error if the caller stops waiting.
// The task itself keeps running.
func (t *Task) Wait(ctx context.Context) (*ports.Engine, error) {
	select {
	case <-t.done:
		return t.engine, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (i *Installer) runningLocked(f Flavor, version string) bool {
	for _, task := range i.inflight {
		if task.Flavor == f && task.Version == version {
			return true
		}
	}
	return false
}

func holdKey(f Flavor, version string) string { return string(f) + "/" + version }

// Hold blocks new installs of engine type t at version until release is
// called. ok is false, and nothing is held, while such an install is running.
// Non-runtime engine types are never installed here and always succeed.
func (i *Installer) Hold(t ports.EngineType, version string) (release func(), ok bool) {
	f, isRuntime := FlavorOf(t)
	if !isRuntime {
		return func() {}, true
	}
	version = NormalizeVersion(version)
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.runningLocked(f, version) {
		return nil, false
	}
	k := holdKey(f, version)
	i.held[k]++
	var once sync.Once
	return func() {
		once.Do(func() {
			i.mu.Lock()
			defer i.mu.Unlock()
			i.held[k]--
			if i.held[k] <= 0 {
				delete(i.held, k)
			}
		})
	}, true
}

// Start begins installing version/flavor, or joins the identical task already
// running. taskID is used only when a new task is created ("" = generated).
// The task is detached from ctx's cancellation.
func (i *Installer) Start(ctx context.Context, version string, flavor Flavor, taskID string) (*Task, error) {
	version = NormalizeVersion(version)
	if version == "" {
		return nil, apperrors.New(apperrors.CodeInvalidConfig, "runtime version is required")
	}
	target, err := i.Target()
	if err != nil {
		return nil, err
	}
	key := version + "/" + string(flavor) + "/" + target

	i.mu.Lock()
	if t, ok := i.inflight[key]; ok {
		i.mu.Unlock()
		i.log.Debug("joining running install", "task_id", t.ID, "version", version, "flavor", flavor)
		return t, nil
	}
	if i.held[holdKey(flavor, version)] > 0 {
		i.mu.Unlock()
		return nil, apperrors.Newf(apperrors.CodeInstallConflict, "nwjs %s %s is being removed", flavor, version).
			With("version", version).With("flavor", string(flavor))
	}
	if taskID == "" {
		taskID = uuid.NewString()
	}
	t := &Task{
		ID:         taskID,
		Version:    version,
		Flavor:     flavor,
		Target:     target,
		InstallDir: filepath.Join(i.root, nwjsDir, version, string(flavor), target),
		done:       make(chan struct{}),
		state:      StateResolving,
	}
	i.inflight[key] = t
	i.mu.Unlock()

	go func() {
		defer func() {
			i.mu.Lock()
			delete(i.inflight, key)
			i.mu.Unlock()
			close(t.done)
		}()
		ctx, span := telemetry.Start(context.WithoutCancel(ctx), "runtimes.install",
			telemetry.TaskIDKey.String(t.ID), telemetry.VersionKey.String(version), telemetry.FlavorKey.String(string(flavor)))
		eng, err := i.run(ctx, t)
		telemetry.End(span, err)
		i.metrics.Install(ctx, string(flavor), err)

		t.mu.Lock()
		t.engine, t.err = eng, err
		t.mu.Unlock()
		if err != nil {
			t.setState(StateFailed)
			i.log.Error("runtime install failed", "task_id", t.ID, "version", version, "flavor", flavor, "error", err)
			i.events.Publish(ports.Event{Kind: ports.EventTaskFailed, TaskID: t.ID, Version: version, Flavor: string(flavor), Error: err.Error(), Terminal: true, At: i.now()})
			return
		}
		t.setState(StateInstalled)
		i.log.Info("runtime installed", "task_id", t.ID, "version", version, "flavor", flavor, "dir", eng.InstallPath)
		i.events.Publish(ports.Event{Kind: ports.EventInstallStage, TaskID: t.ID, Version: version, Flavor: string(flavor),
			Stage: ports.StageInstalled, Label: "installed", Progress: 100, Terminal: true, At: i.now()})
	}()
	return t, nil
}

// Install starts (or joins) an install and waits for it.
func (i *Installer) Install(ctx context.Context, version string, flavor Flavor) (*ports.Engine, error) {
	t, err := i.Start(ctx, version, flavor, "")
	if err != nil {
		return nil, err
	}
	return t.Wait(ctx)
}

func (i *Installer) fail(t *Task, msg string, err error) error {
	var ae *apperrors.Error
	if errors.As(err, &ae) && ae.Code != apperrors.CodeUnknown {
		return ae.With("task_id", t.ID)
	}
	return apperrors.Wrap(apperrors.CodeDownloadFailed, msg, err).
		With("task_id", t.ID).With("version", t.Version).With("flavor", string(t.Flavor))
}

func (i *Installer) run(ctx context.Context, t *Task) (*ports.Engine, error) {
	et := t.Flavor.EngineType()
	if existing, err := i.repo.Find(ctx, et, t.Version); err == nil {
		if _, serr := os.Stat(existing.InstallPath); serr == nil {
			return existing, nil
		}
		return nil, apperrors.New(apperrors.CodeInstallConflict, "engine registered but its directory is missing").
			With("engine_id", existing.ID).With("task_id", t.ID)
	} else if !apperrors.HasCode(err, apperrors.CodeEngineNotFound) {
		return nil, i.fail(t, "check installed engines", err)
	}

	name := ArchiveName(t.Version, t.Flavor, t.Target)
	dlDir := filepath.Join(i.root, downloadsDir)
	if err := os.MkdirAll(dlDir, 0o755); err != nil {
		return nil, i.fail(t, "create downloads dir", err)
	}
	part := filepath.Join(dlDir, name+".part")

	t.setState(StateDownloading)
	var lastEmit int64 = -1
	size, err := download(ctx, i.src, ArchiveKey(t.Version, name), part, func(n, done, total int64) {
		i.metrics.Downloaded(ctx, n)
		if lastEmit >= 0 && done-lastEmit < progressEvery && done != total {
			return
		}
		lastEmit = done
		ev := ports.Event{Kind: ports.EventDownloadProgress, TaskID: t.ID, Version: t.Version, Flavor: string(t.Flavor), Downloaded: done, At: i.now()}
		if total > 0 {
			tot := total
			pct := float64(done) / float64(total) * 100
			ev.Total, ev.Percent = &tot, &pct
		}
		i.events.Publish(ev)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			os.Remove(part)
		}
		return nil, i.fail(t, "download "+name, err)
	}

	t.setState(StateVerifying)
	sum, err := i.verifyChecksum(ctx, t, name, part)
	if err != nil {
		os.Remove(part)
		return nil, err
	}
	i.events.Publish(ports.Event{Kind: ports.EventInstallStage, TaskID: t.ID, Version: t.Version, Flavor: string(t.Flavor),
		Stage: ports.StageDownloaded, Label: "downloaded", Downloaded: size, At: i.now()})

	t.setState(StateInstalling)
	stageRoot := filepath.Join(i.root, stagingDir)
	if err := os.MkdirAll(stageRoot, 0o755); err != nil {
		return nil, i.fail(t, "create staging dir", err)
	}
	stage, err := os.MkdirTemp(stageRoot, strings.TrimSuffix(name, "."+ArchiveExt(t.Target))+"-")
	if err != nil {
		return nil, i.fail(t, "create staging dir", err)
	}
	defer os.RemoveAll(stage)
	archive := filepath.Join(stage, name)
	if err := os.Rename(part, archive); err != nil {
		return nil, i.fail(t, "move archive", err)
	}
	unpacked := filepath.Join(stage, "x")
	if err := extract(archive, unpacked); err != nil {
		return nil, i.fail(t, "extract "+name, err)
	}
	src, err := unwrapSingleRoot(unpacked)
	if err != nil {
		return nil, i.fail(t, "inspect archive", err)
	}

	// a directory without a row is a leftover of an interrupted install
	if err := os.RemoveAll(t.InstallDir); err != nil {
		return nil, i.fail(t, "clear install dir", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.InstallDir), 0o755); err != nil {
		return nil, i.fail(t, "create install dir", err)
	}
	if err := os.Rename(src, t.InstallDir); err != nil {
		return nil, i.fail(t, "move runtime into place", err)
	}

	eng := &ports.Engine{
		ID:          uuid.NewString(),
		Name:        displayName(t.Flavor, t.Version),
		Version:     t.Version,
		EngineType:  et,
		InstallPath: t.InstallDir,
		InstalledAt: i.now().UTC(),
		Meta: map[string]string{
			"flavor": string(t.Flavor),
			"target": t.Target,
			"source": i.src.Name(),
		},
	}
	if sum != "" {
		eng.Meta["sha256"] = sum
	}
	if err := i.repo.Create(ctx, eng); err != nil {
		os.RemoveAll(t.InstallDir)
		return nil, i.fail(t, "register engine", err)
	}
	return eng, nil
}

func (i *Installer) verifyChecksum(ctx context.Context, t *Task, name, part string) (string, error) {
	if !i.verify {
		return "", nil
	}
	f, err := i.src.Fetch(ctx, ArchiveKey(t.Version, ChecksumsName), 0)
	if errors.Is(err, ErrNotFound) {
		i.log.Warn("no checksum manifest; skipping verification", "task_id", t.ID, "version", t.Version)
		return "", nil
	}
	if err != nil {
		return "", i.fail(t, "fetch checksums", err)
	}
	sums := parseChecksums(f.Body)
	f.Body.Close()
	want, ok := sums[name]
	if !ok {
		i.log.Warn("archive not listed in checksum manifest", "task_id", t.ID, "archive", name)
		return "", nil
	}
	got, err := sha256File(part)
	if err != nil {
		return "", i.fail(t, "hash archive", err)
	}
	if got != want {
		return "", i.fail(t, "verify "+name, fmt.Errorf("sha256 mismatch: got %s, want %s", got, want))
	}
	return got, nil
}

func displayName(f Flavor, version string) string {
	if f == FlavorSDK {
		return "NW.js SDK " + version
	}
	return "NW.js " + version
}
