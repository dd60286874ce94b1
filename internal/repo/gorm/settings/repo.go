package settings

import (
	"context"
	"errors"

	dom "github.com/cuihairu/arcade/internal/ports"
	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Setting is one key/value row.
type Setting struct {
	Key   string `gorm:"primaryKey;size:191"`
	Value string `gorm:"type:text"`
}

func (Setting) TableName() string { return "settings" }

// Repo is the GORM-backed settings store.
type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

var _ dom.SettingsRepository = (*Repo)(nil)

func (r *Repo) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}
	var s Setting
	// struct condition so the reserved column name gets quoted per dialect
	if err := r.db.WithContext(ctx).Where(&Setting{Key: key}).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, apperrors.Wrap(apperrors.CodeRegistryIO, "read setting", err).With("key", key)
	}
	return s.Value, true, nil
}

// Set upserts key.
func (r *Repo) Set(ctx context.Context, key, value string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Setting{Key: key, Value: value}).Error
	if err != nil {
		return apperrors.Wrap(apperrors.CodeRegistryIO, "write setting", err).With("key", key)
	}
	return nil
}

func (r *Repo) All(ctx context.Context) (map[string]string, error) {
	var rows []Setting
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeRegistryIO, "list settings", err)
	}
	out := make(map[string]string, len(rows))
	for _, s := range rows {
		out[s.Key] = s.Value
	}
	return out, nil
}
