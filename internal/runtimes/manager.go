package runtimes

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	"github.com/cuihairu/arcade/internal/ports"
)

// URLer is implemented by sources that can name a download URL.
type URLer interface {
	URL(key string) string
}

// Manager is the command surface of runtime acquisition.
type Manager struct {
	resolver  *Resolver
	installer *Installer
	repo      ports.EnginesRepository
	src       Source
	log       *slog.Logger
}

func NewManager(resolver *Resolver, installer *Installer, repo ports.EnginesRepository, src Source, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{resolver: resolver, installer: installer, repo: repo, src: src, log: logger.With("component", "runtimes")}
}

// Installer exposes the task runner (in-flight checks, direct installs).
func (m *Manager) Installer() *Installer { return m.installer }

// StableInfo describes the stable release for this host.
type StableInfo struct {
	Version   string `json:"version"`
	Target    string `json:"target"`
	NormalURL string `json:"normalUrl"`
	SDKURL    string `json:"sdkUrl"`
}

func (m *Manager) StableInfo(ctx context.Context) (*StableInfo, error) {
	v, err := m.resolver.Stable(ctx)
	if err != nil {
		return nil, err
	}
	target, err := m.installer.Target()
	if err != nil {
		return nil, err
	}
	info := &StableInfo{Version: v, Target: target}
	normal := ArchiveKey(v, ArchiveName(v, FlavorNormal, target))
	sdk := ArchiveKey(v, ArchiveName(v, FlavorSDK, target))
	if u, ok := m.src.(URLer); ok {
		info.NormalURL, info.SDKURL = u.URL(normal), u.URL(sdk)
	} else {
		info.NormalURL, info.SDKURL = m.src.Name()+":"+normal, m.src.Name()+":"+sdk
	}
	return info, nil
}

// DownloadResult reports a stable runtime install.
type DownloadResult struct {
	TaskID     string `json:"taskId"`
	Version    string `json:"version"`
	Flavor     Flavor `json:"flavor"`
	Target     string `json:"target"`
	InstallDir string `json:"installDir"`
	EngineID   string `json:"engineId,omitempty"`
	State      State  `json:"state"`
}

// DownloadStable installs the stable runtime. With wait=false it returns as
// soon as the task is running; progress follows on the event stream.
func (m *Manager) DownloadStable(ctx context.Context, flavor Flavor, taskID string, wait bool) (*DownloadResult, error) {
	v, err := m.resolver.Stable(ctx)
	if err != nil {
		return nil, err
	}
	t, err := m.installer.Start(ctx, v, flavor, taskID)
	if err != nil {
		return nil, err
	}
	res := &DownloadResult{TaskID: t.ID, Version: t.Version, Flavor: t.Flavor, Target: t.Target, InstallDir: t.InstallDir, State: t.State()}
	if !wait {
		return res, nil
	}
	eng, err := t.Wait(ctx)
	if err != nil {
		return nil, err
	}
	res.EngineID, res.InstallDir, res.State = eng.ID, eng.InstallPath, StateInstalled
	return res, nil
}

// UpdateInfo compares an installed runtime with the stable release.
func (m *Manager) UpdateInfo(ctx context.Context, engineID string) (*ports.EngineUpdateInfo, error) {
	eng, err := m.repo.Get(ctx, engineID)
	if err != nil {
		return nil, err
	}
	info := &ports.EngineUpdateInfo{EngineID: eng.ID, CurrentVersion: eng.Version, LatestVersion: eng.Version}
	if _, ok := FlavorOf(eng.EngineType); !ok {
		return info, nil
	}
	v, err := m.resolver.Stable(ctx)
	if err != nil {
		return nil, err
	}
	info.LatestVersion = v
	info.UpdateAvailable = CompareVersions(v, eng.Version) > 0
	return info, nil
}

// Update installs the stable release when it is newer than the engine, then
// removes the old row and (managed) directory.
func (m *Manager) Update(ctx context.Context, engineID string) (*ports.EngineUpdateResult, error) {
	info, err := m.UpdateInfo(ctx, engineID)
	if err != nil {
		return nil, err
	}
	res := &ports.EngineUpdateResult{EngineID: engineID, FromVersion: info.CurrentVersion, ToVersion: info.CurrentVersion}
	if !info.UpdateAvailable {
		return res, nil
	}
	old, err := m.repo.Get(ctx, engineID)
	if err != nil {
		return nil, err
	}
	flavor, _ := FlavorOf(old.EngineType)
	eng, err := m.installer.Install(ctx, info.LatestVersion, flavor)
	if err != nil {
		return nil, err
	}
	if err := m.repo.Delete(ctx, old.ID); err != nil && !apperrors.HasCode(err, apperrors.CodeEngineNotFound) {
		return nil, err
	}
	if Managed(m.installer.Root(), old.InstallPath) {
		if err := os.RemoveAll(old.InstallPath); err != nil {
			m.log.Warn("remove replaced runtime", "engine_id", old.ID, "dir", old.InstallPath, "error", err)
		}
	}
	res.Updated, res.ToVersion, res.InstallDir = true, eng.Version, eng.InstallPath
	res.EngineID = eng.ID
	m.log.Info("runtime updated", "from", old.Version, "to", eng.Version, "engine_id", eng.ID)
	return res, nil
}

// Managed reports whether dir lies strictly inside root.
func Managed(root, dir string) bool {
	if root == "" || dir == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(dir))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}
