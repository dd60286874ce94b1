package games

import (
    "context"
    "log/slog"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/cuihairu/arcade/internal/classify"
    apperrors "github.com/cuihairu/arcade/internal/platform/errors"
    dom "github.com/cuihairu/arcade/internal/ports"
    "github.com/cuihairu/arcade/internal/profile"
    "github.com/cuihairu/arcade/internal/telemetry"
)

// DefaultMaxDepth bounds scans when the caller does not.
const DefaultMaxDepth = 4

// Options carries the optional collaborators of Service.
type Options struct {
    Events   dom.Publisher
    Metrics  *telemetry.Metrics
    Logger   *slog.Logger
    MaxDepth int
}

// Service is the game registry facade: import, scan, CRUD and per-game settings.
type Service struct {
    repo     dom.GamesRepository
    layout   *profile.Layout
    events   dom.Publisher
    metrics  *telemetry.Metrics
    log      *slog.Logger
    maxDepth int
    locks    keyLock
    now      func() time.Time
}

func NewService(repo dom.GamesRepository, layout *profile.Layout, opts Options) *Service {
    s := &Service{
        repo:     repo,
        layout:   layout,
        events:   opts.Events,
        metrics:  opts.Metrics,
        log:      opts.Logger,
        maxDepth: opts.MaxDepth,
        now:      time.Now,
    }
    if s.events == nil { s.events = dom.NopPublisher{} }
    if s.log == nil { s.log = slog.Default() }
    s.log = s.log.With("component", "games")
    if s.maxDepth <= 0 { s.maxDepth = DefaultMaxDepth }
    return s
}

// ImportInput describes a single directory registration.
type ImportInput struct {
    Path       string `json:"path"`
    EngineType string `json:"engineType,omitempty"`
    Title      string `json:"title,omitempty"`
}

// Import registers one directory. The engine is classified when not given.
func (s *Service) Import(ctx context.Context, in ImportInput) (*dom.Game, error) {
    ctx, span := telemetry.Start(ctx, "games.import")
    g, err := s.importDir(ctx, in)
    telemetry.End(span, err)
    return g, err
}

func (s *Service) importDir(ctx context.Context, in ImportInput) (*dom.Game, error) {
    dir, err := readableDir(in.Path)
    if err != nil { return nil, err }
    engine := dom.ParseEngineType(in.EngineType)
    if engine == "" {
        res, err := classify.Dir(dir)
        if err != nil {
            return nil, apperrors.Wrap(apperrors.CodeInvalidPath, "read game directory", err).With("path", dir)
        }
        if amb := res.Err(); amb != nil {
            s.log.Info("engine signals inconclusive", "path", dir, "error", amb)
        }
        engine = res.Engine
    }
    g, _, err := s.register(ctx, dir, engine, in.Title)
    return g, err
}

// register inserts a game for dir unless the path is already known. The
// boolean reports whether a new row was created.
func (s *Service) register(ctx context.Context, dir string, engine dom.EngineType, title string) (*dom.Game, bool, error) {
    unlock := s.locks.lock("path:" + dir)
    defer unlock()

    existing, err := s.repo.GetByPath(ctx, dir)
    if err == nil {
        return existing, false, apperrors.New(apperrors.CodeGameExists, "game already registered").
            With("path", dir).With("game_id", existing.ID)
    }
    if !apperrors.HasCode(err, apperrors.CodeGameNotFound) { return nil, false, err }

    title = strings.TrimSpace(title)
    if title == "" { title = titleFromDir(dir) }
    if engine == "" || engine.IsRuntime() { engine = dom.EngineOther }
    id := uuid.NewString()
    g := &dom.Game{ID: id, Title: title, EngineType: engine, Path: dir, ProfileKey: id}
    if err := s.repo.Create(ctx, g); err != nil { return nil, false, err }
    g.PathValid = true
    s.metrics.Import(ctx, string(engine))
    s.log.Info("game registered", "game_id", id, "engine", engine, "path", dir)

    if cover := s.importCover(ctx, g, ""); cover != "" {
        if updated, err := s.repo.Update(ctx, g.ID, func(cur *dom.Game) error {
            cur.CoverImagePath = cover
            return nil
        }); err == nil {
            g = updated
            g.PathValid = true
        } else {
            s.log.Warn("store cover path", "game_id", id, "error", err)
        }
    }
    return g, true, nil
}

func titleFromDir(dir string) string {
    base := strings.TrimSpace(filepath.Base(dir))
    if base == "" || base == "." || base == string(filepath.Separator) { return "Untitled" }
    return base
}

// readableDir resolves p to an absolute, symlink-free path and checks it is a
// directory we can list.
func readableDir(p string) (string, error) {
    p = strings.TrimSpace(p)
    if p == "" { return "", apperrors.New(apperrors.CodeInvalidPath, "path is required") }
    abs, err := filepath.Abs(p)
    if err != nil { return "", apperrors.Wrap(apperrors.CodeInvalidPath, "resolve path", err).With("path", p) }
    abs = filepath.Clean(abs)
    if _, err := os.Stat(abs); err != nil {
        return "", apperrors.Wrap(apperrors.CodeInvalidPath, "path does not exist", err).With("path", abs)
    }
    // games are keyed by their resolved path
    if abs, err = filepath.EvalSymlinks(abs); err != nil {
        return "", apperrors.Wrap(apperrors.CodeInvalidPath, "resolve symlinks", err).With("path", p)
    }
    fi, err := os.Stat(abs)
    if err != nil { return "", apperrors.Wrap(apperrors.CodeInvalidPath, "path does not exist", err).With("path", abs) }
    if !fi.IsDir() { return "", apperrors.New(apperrors.CodeInvalidPath, "path is not a directory").With("path", abs) }
    if _, err := os.ReadDir(abs); err != nil {
        return "", apperrors.Wrap(apperrors.CodeInvalidPath, "directory is not readable", err).With("path", abs)
    }
    return abs, nil
}

func pathValid(p string) bool {
    fi, err := os.Stat(p)
    return err == nil && fi.IsDir()
}

// List returns every game with pathValid recomputed.
func (s *Service) List(ctx context.Context) ([]*dom.Game, error) {
    arr, err := s.repo.List(ctx)
    if err != nil { return nil, err }
    for _, g := range arr { g.PathValid = pathValid(g.Path) }
    return arr, nil
}

// Get returns one game or GAME_NOT_FOUND.
func (s *Service) Get(ctx context.Context, id string) (*dom.Game, error) {
    g, err := s.repo.Get(ctx, id)
    if err != nil { return nil, err }
    g.PathValid = pathValid(g.Path)
    return g, nil
}

// Update applies the non-nil fields of u. The profile key never changes.
func (s *Service) Update(ctx context.Context, id string, u dom.GameUpdate) (*dom.Game, error) {
    var newPath string
    if u.Path != nil {
        p, err := readableDir(*u.Path)
        if err != nil { return nil, err }
        newPath = p
    }
    unlock := s.locks.lock("game:" + id)
    defer unlock()
    g, err := s.repo.Update(ctx, id, func(g *dom.Game) error {
        if u.Title != nil {
            t := strings.TrimSpace(*u.Title)
            if t == "" { return apperrors.New(apperrors.CodeInvalidConfig, "title must not be empty") }
            g.Title = t
        }
        if newPath != "" { g.Path = newPath }
        if u.EngineType != nil {
            t := dom.ParseEngineType(string(*u.EngineType))
            if t == "" || t.IsRuntime() { t = dom.EngineOther }
            g.EngineType = t
        }
        if u.RuntimeVersion != nil { g.RuntimeVersion = strings.TrimSpace(*u.RuntimeVersion) }
        if u.CoverImagePath != nil { g.CoverImagePath = strings.TrimSpace(*u.CoverImagePath) }
        return nil
    })
    if err != nil { return nil, err }
    g.PathValid = pathValid(g.Path)
    return g, nil
}

// Delete removes the row only; the profile directory is left for maintenance.
func (s *Service) Delete(ctx context.Context, id string) error {
    unlock := s.locks.lock("game:" + id)
    defer unlock()
    return s.repo.Delete(ctx, id)
}

// ProfileDir returns the game's profile directory, creating it on first use.
func (s *Service) ProfileDir(ctx context.Context, id string) (string, error) {
    g, err := s.repo.Get(ctx, id)
    if err != nil { return "", err }
    d, err := s.layout.Ensure(ctx, g.ProfileKey)
    if err != nil { return "", err }
    return d.Root, nil
}

// Settings returns the saved launch config or the defaults derived from the game.
func (s *Service) Settings(ctx context.Context, id string) (*dom.LaunchConfig, error) {
    g, err := s.repo.Get(ctx, id)
    if err != nil { return nil, err }
    dir, err := s.layout.Path(ctx, g.ProfileKey)
    if err != nil { return nil, err }
    return profile.LoadConfig(dir, g)
}

// SaveSettings validates and persists cfg, then mirrors engine type, runtime
// version and cover onto the registry row.
func (s *Service) SaveSettings(ctx context.Context, id string, cfg *dom.LaunchConfig) (*dom.LaunchConfig, error) {
    if cfg == nil { return nil, apperrors.New(apperrors.CodeInvalidConfig, "launch config is required") }
    unlock := s.locks.lock("game:" + id)
    defer unlock()

    g, err := s.repo.Get(ctx, id)
    if err != nil { return nil, err }
    next := *cfg
    profile.Normalize(&next, g)
    if err := profile.Validate(&next); err != nil { return nil, err }
    d, err := s.layout.Ensure(ctx, g.ProfileKey)
    if err != nil { return nil, err }

    cover := ""
    if next.CoverFile != "" {
        src := next.CoverFile
        if !filepath.IsAbs(src) { src = filepath.Join(g.Path, src) }
        if cover = copyCover(src, d.Root); cover == "" {
            return nil, apperrors.New(apperrors.CodeInvalidPath, "cover file is not a readable image").With("path", src)
        }
    }
    if err := profile.SaveConfig(d.Root, &next); err != nil { return nil, err }

    _, err = s.repo.Update(ctx, id, func(cur *dom.Game) error {
        if !next.EngineType.IsRuntime() { cur.EngineType = next.EngineType }
        cur.RuntimeVersion = next.RuntimeVersion
        if cover != "" { cur.CoverImagePath = cover }
        return nil
    })
    if err != nil { return nil, err }
    return &next, nil
}
