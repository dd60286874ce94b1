package settings

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	dom "github.com/cuihairu/arcade/internal/ports"
)

// Setting keys.
const (
	KeyContainerRoot        = "container_root"
	KeyCompatEnabled        = "compat_enabled"
	KeyCompatDefaultProfile = "compat_default_profile"
)

// Service owns process-wide settings. The container root is initialised on
// first read (persisting the configured default) and persisted on write.
type Service struct {
	repo        dom.SettingsRepository
	defaultRoot string
	mu          sync.Mutex
}

func NewService(repo dom.SettingsRepository, defaultRoot string) *Service {
	return &Service{repo: repo, defaultRoot: defaultRoot}
}

// ContainerRoot returns the configured root, persisting the default on first use.
func (s *Service) ContainerRoot(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok, err := s.repo.Get(ctx, KeyContainerRoot)
	if err != nil {
		return "", err
	}
	if ok && strings.TrimSpace(v) != "" {
		return v, nil
	}
	root, err := filepath.Abs(s.defaultRoot)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidPath, "resolve default container root", err)
	}
	if err := s.repo.Set(ctx, KeyContainerRoot, root); err != nil {
		return "", err
	}
	return root, nil
}

// SetContainerRoot validates root (absolute, creatable) and persists it.
func (s *Service) SetContainerRoot(ctx context.Context, root string) error {
	root = strings.TrimSpace(root)
	if root == "" || !filepath.IsAbs(root) {
		return apperrors.Newf(apperrors.CodeInvalidPath, "container root must be an absolute path: %q", root)
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidPath, "create container root", err).With("path", root)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Set(ctx, KeyContainerRoot, root)
}

func (s *Service) CompatEnabled(ctx context.Context) (bool, error) {
	v, _, err := s.repo.Get(ctx, KeyCompatEnabled)
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

func (s *Service) SetCompatEnabled(ctx context.Context, enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	return s.repo.Set(ctx, KeyCompatEnabled, v)
}

func (s *Service) DefaultCompatProfile(ctx context.Context) (string, error) {
	v, _, err := s.repo.Get(ctx, KeyCompatDefaultProfile)
	return v, err
}

func (s *Service) SetDefaultCompatProfile(ctx context.Context, name string) error {
	return s.repo.Set(ctx, KeyCompatDefaultProfile, strings.TrimSpace(name))
}

// AppSettings returns the client-visible snapshot.
func (s *Service) AppSettings(ctx context.Context) (*dom.AppSettings, error) {
	root, err := s.ContainerRoot(ctx)
	if err != nil {
		return nil, err
	}
	enabled, err := s.CompatEnabled(ctx)
	if err != nil {
		return nil, err
	}
	def, err := s.DefaultCompatProfile(ctx)
	if err != nil {
		return nil, err
	}
	return &dom.AppSettings{ContainerRoot: root, CompatEnabled: enabled, DefaultCompatProfile: def}, nil
}
