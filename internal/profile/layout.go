// Package profile owns the per-title profile directories under the container
// root and the launch.yaml stored in each of them.
package profile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
)

// ProfilesDirName is the container-root subdirectory holding one directory per profile key.
const ProfilesDirName = "profiles"

// RootProvider yields the current container root.
type RootProvider interface {
	ContainerRoot(ctx context.Context) (string, error)
}

// Dirs is the resolved tree of one profile.
type Dirs struct {
	Root         string `json:"root"`
	Home         string `json:"home"`
	Config       string `json:"config"`
	Cache        string `json:"cache"`
	Data         string `json:"data"`
	State        string `json:"state"`
	UserData     string `json:"userData"`
	CrashReports string `json:"crashReports"`
}

func dirsFor(root string) *Dirs {
	home := filepath.Join(root, "home")
	return &Dirs{
		Root:         root,
		Home:         home,
		Config:       filepath.Join(home, ".config"),
		Cache:        filepath.Join(home, ".cache"),
		Data:         filepath.Join(home, ".local", "share"),
		State:        filepath.Join(home, ".local", "state"),
		UserData:     filepath.Join(root, "User Data"),
		CrashReports: filepath.Join(root, "Crash Reports"),
	}
}

// Layout maps profile keys to directories. Creating a profile takes a shared
// lock and maintenance takes the exclusive one, so a sweep never races a
// directory being created for a freshly registered title.
type Layout struct {
	roots RootProvider
	mu    sync.RWMutex
}

func NewLayout(roots RootProvider) *Layout { return &Layout{roots: roots} }

// ProfilesDir returns <containerRoot>/profiles.
func (l *Layout) ProfilesDir(ctx context.Context) (string, error) {
	root, err := l.roots.ContainerRoot(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, ProfilesDirName), nil
}

// Path returns the profile directory for key without creating it.
func (l *Layout) Path(ctx context.Context, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	dir, err := l.ProfilesDir(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, key), nil
}

// Ensure creates (if needed) and returns the directory tree for key.
func (l *Layout) Ensure(ctx context.Context, key string) (*Dirs, error) {
	p, err := l.Path(ctx, key)
	if err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	d := dirsFor(p)
	for _, dir := range []string{d.Config, d.Cache, d.Data, d.State, d.UserData, d.CrashReports} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeRegistryIO, "create profile directory", err).With("profile_key", key)
		}
	}
	return d, nil
}

// Exclusive runs fn while no profile directory is being created.
func (l *Layout) Exclusive(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn()
}

// ValidateKey rejects keys that would escape the profiles directory.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return apperrors.New(apperrors.CodeInvalidPath, fmt.Sprintf("invalid profile key %q", key))
	}
	return nil
}
