package engines

import (
	"context"
	"errors"
	"strings"

	dom "github.com/cuihairu/arcade/internal/ports"
	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	"gorm.io/gorm"
)

// Repo provides GORM-based persistence for engines and implements
// ports.EnginesRepository directly; there is no separate port adapter
// because the model carries no behaviour beyond Meta encoding.
type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

var _ dom.EnginesRepository = (*Repo)(nil)

func (r *Repo) Create(ctx context.Context, e *dom.Engine) error {
	m := fromDomain(e)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Engine{}).Where("engine_type = ? AND version = ?", m.EngineType, m.Version).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return conflict(e)
		}
		return tx.Create(m).Error
	})
	if err == nil {
		return nil
	}
	var ae *apperrors.Error
	if errors.As(err, &ae) {
		return ae
	}
	if isUniqueViolation(err) {
		return conflict(e)
	}
	return mapErr(err, e.ID)
}

func (r *Repo) Get(ctx context.Context, id string) (*dom.Engine, error) {
	var m Engine
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapErr(err, id)
	}
	return toDomain(&m), nil
}

func (r *Repo) Find(ctx context.Context, t dom.EngineType, version string) (*dom.Engine, error) {
	q := r.db.WithContext(ctx).Where("engine_type = ?", string(t))
	if version != "" {
		q = q.Where("version = ?", version)
	}
	var m Engine
	if err := q.Order("installed_at DESC").First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeEngineNotFound, "engine not found").
				With("engine_type", string(t)).With("version", version)
		}
		return nil, mapErr(err, "")
	}
	return toDomain(&m), nil
}

func (r *Repo) List(ctx context.Context) ([]*dom.Engine, error) {
	var arr []*Engine
	if err := r.db.WithContext(ctx).Order("engine_type ASC").Order("installed_at DESC").Find(&arr).Error; err != nil {
		return nil, mapErr(err, "")
	}
	out := make([]*dom.Engine, 0, len(arr))
	for _, m := range arr {
		out = append(out, toDomain(m))
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&Engine{}, "id = ?", id)
	if res.Error != nil {
		return mapErr(res.Error, id)
	}
	if res.RowsAffected == 0 {
		return notFound(id)
	}
	return nil
}

func toDomain(m *Engine) *dom.Engine {
	return &dom.Engine{
		ID:          m.ID,
		Name:        m.Name,
		Version:     m.Version,
		EngineType:  dom.EngineType(m.EngineType),
		InstallPath: m.InstallPath,
		InstalledAt: m.InstalledAt,
		Meta:        m.GetMeta(),
	}
}

func fromDomain(e *dom.Engine) *Engine {
	m := &Engine{
		ID:          e.ID,
		Name:        e.Name,
		Version:     e.Version,
		EngineType:  string(e.EngineType),
		InstallPath: e.InstallPath,
		InstalledAt: e.InstalledAt,
	}
	m.SetMeta(e.Meta)
	return m
}

func conflict(e *dom.Engine) *apperrors.Error {
	return apperrors.Newf(apperrors.CodeInstallConflict, "engine %s %s is already installed", e.EngineType, e.Version).
		With("engine_type", string(e.EngineType)).With("version", e.Version)
}

func notFound(id string) *apperrors.Error {
	return apperrors.New(apperrors.CodeEngineNotFound, "engine not found").With("engine_id", id)
}

func mapErr(err error, id string) *apperrors.Error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(id)
	}
	e := apperrors.Wrap(apperrors.CodeRegistryIO, "engines registry", err)
	if id != "" {
		e = e.With("engine_id", id)
	}
	return e
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
