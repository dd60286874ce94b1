package games

import (
    "context"
    "errors"
    "time"

    dom "github.com/cuihairu/arcade/internal/ports"
    apperrors "github.com/cuihairu/arcade/internal/platform/errors"
    "gorm.io/gorm"
)

// PortRepo adapts *Repo to the ports.GamesRepository interface.
type PortRepo struct{ r *Repo }

func NewPortRepo(r *Repo) *PortRepo { return &PortRepo{r: r} }

var _ dom.GamesRepository = (*PortRepo)(nil)

func (p *PortRepo) Create(ctx context.Context, g *dom.Game) error {
    if g == nil { return nil }
    if g.ProfileKey == "" { g.ProfileKey = g.ID }
    m := fromDomain(g)
    if err := p.r.Create(ctx, m); err != nil { return mapErr(err, g.ID) }
    g.CreatedAt, g.UpdatedAt = m.CreatedAt, m.UpdatedAt
    return nil
}
func (p *PortRepo) Get(ctx context.Context, id string) (*dom.Game, error) {
    m, err := p.r.Get(ctx, id)
    if err != nil { return nil, mapErr(err, id) }
    return toDomain(m), nil
}
func (p *PortRepo) GetByPath(ctx context.Context, path string) (*dom.Game, error) {
    m, err := p.r.GetByPath(ctx, path)
    if err != nil { return nil, mapErr(err, "").With("path", path) }
    return toDomain(m), nil
}
func (p *PortRepo) List(ctx context.Context) ([]*dom.Game, error) {
    arr, err := p.r.List(ctx)
    if err != nil { return nil, mapErr(err, "") }
    out := make([]*dom.Game, 0, len(arr))
    for _, g := range arr { out = append(out, toDomain(g)) }
    return out, nil
}
func (p *PortRepo) Update(ctx context.Context, id string, fn func(g *dom.Game) error) (*dom.Game, error) {
    var fnErr error
    m, err := p.r.Mutate(ctx, id, func(m *Game) error {
        g := toDomain(m)
        if fnErr = fn(g); fnErr != nil { return fnErr }
        next := fromDomain(g)
        // identity and profile key are fixed at creation
        next.ID, next.ProfileKey, next.CreatedAt = m.ID, m.ProfileKey, m.CreatedAt
        *m = *next
        return nil
    })
    if fnErr != nil { return nil, fnErr }
    if err != nil { return nil, mapErr(err, id) }
    return toDomain(m), nil
}
func (p *PortRepo) Delete(ctx context.Context, id string) error {
    n, err := p.r.Delete(ctx, id)
    if err != nil { return mapErr(err, id) }
    if n == 0 { return notFound(id) }
    return nil
}
func (p *PortRepo) TouchLastPlayed(ctx context.Context, id string, at time.Time) error {
    n, err := p.r.TouchLastPlayed(ctx, id, at)
    if err != nil { return mapErr(err, id) }
    if n == 0 { return notFound(id) }
    return nil
}
func (p *PortRepo) ProfileKeys(ctx context.Context) ([]string, error) {
    keys, err := p.r.ProfileKeys(ctx)
    if err != nil { return nil, mapErr(err, "") }
    return keys, nil
}

// Helpers
func toDomain(g *Game) *dom.Game {
    if g == nil { return nil }
    out := &dom.Game{
        ID:             g.ID,
        Title:          g.Title,
        EngineType:     dom.ParseEngineType(g.EngineType),
        Path:           g.Path,
        ProfileKey:     g.ProfileKey,
        RuntimeVersion: strVal(g.RuntimeVersion),
        CoverImagePath: strVal(g.CoverImagePath),
        CreatedAt:      g.CreatedAt,
        UpdatedAt:      g.UpdatedAt,
    }
    if out.EngineType == "" { out.EngineType = dom.EngineOther }
    if g.LastPlayedAt != nil {
        t := *g.LastPlayedAt
        out.LastPlayedAt = &t
    }
    return out
}

func fromDomain(g *dom.Game) *Game {
    et := g.EngineType
    if et == "" { et = dom.EngineOther }
    m := &Game{
        ID:             g.ID,
        Title:          g.Title,
        EngineType:     string(et),
        Path:           g.Path,
        ProfileKey:     g.ProfileKey,
        RuntimeVersion: strPtr(g.RuntimeVersion),
        CoverImagePath: strPtr(g.CoverImagePath),
        CreatedAt:      g.CreatedAt,
        UpdatedAt:      g.UpdatedAt,
    }
    if g.LastPlayedAt != nil {
        t := *g.LastPlayedAt
        m.LastPlayedAt = &t
    }
    return m
}

func notFound(id string) *apperrors.Error {
    return apperrors.New(apperrors.CodeGameNotFound, "game not found").With("game_id", id)
}

func mapErr(err error, id string) *apperrors.Error {
    if errors.Is(err, gorm.ErrRecordNotFound) { return notFound(id) }
    e := apperrors.Wrap(apperrors.CodeRegistryIO, "games registry", err)
    if id != "" { e = e.With("game_id", id) }
    return e
}
