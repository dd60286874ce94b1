package engines

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	dom "github.com/cuihairu/arcade/internal/ports"
)

// InstallTracker coordinates deletes with runtime installs. Hold fails while
// an install of the engine runs and blocks new ones until release.
type InstallTracker interface {
	Hold(t dom.EngineType, version string) (release func(), ok bool)
}

// Service manages the engine registry. Directories are only ever deleted
// when they live under the managed runtimes root.
type Service struct {
	repo    dom.EnginesRepository
	tracker InstallTracker
	managed func(dir string) bool
	log     *slog.Logger
	now     func() time.Time
}

func NewService(repo dom.EnginesRepository, tracker InstallTracker, managed func(dir string) bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if managed == nil {
		managed = func(string) bool { return false }
	}
	return &Service{repo: repo, tracker: tracker, managed: managed, log: logger.With("component", "engines"), now: time.Now}
}

func (s *Service) List(ctx context.Context) ([]*dom.Engine, error) { return s.repo.List(ctx) }

func (s *Service) Get(ctx context.Context, id string) (*dom.Engine, error) {
	return s.repo.Get(ctx, id)
}

// Find returns the engine of type t with version, or the latest install when
// version is empty.
func (s *Service) Find(ctx context.Context, t string, version string) (*dom.Engine, error) {
	et := dom.ParseEngineType(t)
	if et == "" {
		return nil, apperrors.New(apperrors.CodeInvalidConfig, "engine type is required")
	}
	return s.repo.Find(ctx, et, strings.TrimSpace(version))
}

// AddInput registers an engine installed outside the launcher.
type AddInput struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	EngineType  string            `json:"engineType"`
	InstallPath string            `json:"installPath"`
	Meta        map[string]string `json:"meta,omitempty"`
}

func (s *Service) Add(ctx context.Context, in AddInput) (*dom.Engine, error) {
	et := dom.ParseEngineType(in.EngineType)
	if et == "" {
		return nil, apperrors.New(apperrors.CodeInvalidConfig, "engine type is required")
	}
	version := strings.TrimSpace(in.Version)
	if version == "" {
		return nil, apperrors.New(apperrors.CodeInvalidConfig, "engine version is required")
	}
	p, err := filepath.Abs(strings.TrimSpace(in.InstallPath))
	if err != nil || strings.TrimSpace(in.InstallPath) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidPath, "install path is required")
	}
	if _, err := os.Stat(p); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidPath, "install path does not exist", err).With("path", p)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = fmt.Sprintf("%s %s", et, version)
	}
	e := &dom.Engine{
		ID:          uuid.NewString(),
		Name:        name,
		Version:     version,
		EngineType:  et,
		InstallPath: filepath.Clean(p),
		InstalledAt: s.now().UTC(),
		Meta:        map[string]string{"source": "manual"},
	}
	for k, v := range in.Meta {
		e.Meta[k] = v
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info("engine registered", "engine_id", e.ID, "type", et, "version", version)
	return e, nil
}

// Delete removes the row and, for managed installs, the directory. The
// directory is first renamed aside so a failed row delete can restore it.
func (s *Service) Delete(ctx context.Context, id string) error {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.tracker != nil {
		release, ok := s.tracker.Hold(e.EngineType, e.Version)
		if !ok {
			return apperrors.New(apperrors.CodeInstallConflict, "an install of this engine is running").With("engine_id", id)
		}
		defer release()
	}
	if !s.managed(e.InstallPath) {
		return s.repo.Delete(ctx, id)
	}

	trash := ""
	if _, err := os.Stat(e.InstallPath); err == nil {
		trash = filepath.Join(filepath.Dir(e.InstallPath), ".trash-"+filepath.Base(e.InstallPath)+"-"+uuid.NewString()[:8])
		if err := os.Rename(e.InstallPath, trash); err != nil {
			return apperrors.Wrap(apperrors.CodeRegistryIO, "move engine directory aside", err).With("engine_id", id)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if trash != "" {
			if rerr := os.Rename(trash, e.InstallPath); rerr != nil {
				s.log.Error("restore engine directory", "engine_id", id, "error", rerr)
			}
		}
		return err
	}
	if trash != "" {
		if err := os.RemoveAll(trash); err != nil {
			s.log.Warn("remove engine directory", "engine_id", id, "dir", trash, "error", err)
		}
	}
	s.log.Info("engine deleted", "engine_id", id, "dir", e.InstallPath)
	return nil
}
