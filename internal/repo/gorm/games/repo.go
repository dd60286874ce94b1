package games

import (
    "context"
    "time"

    "gorm.io/gorm"
)

// Repo provides GORM-based persistence for games.
type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Create(ctx context.Context, g *Game) error {
    return r.db.WithContext(ctx).Create(g).Error
}
func (r *Repo) Delete(ctx context.Context, id string) (int64, error) {
    res := r.db.WithContext(ctx).Delete(&Game{}, "id = ?", id)
    return res.RowsAffected, res.Error
}
func (r *Repo) Get(ctx context.Context, id string) (*Game, error) {
    var g Game
    if err := r.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
        return nil, err
    }
    return &g, nil
}
func (r *Repo) GetByPath(ctx context.Context, path string) (*Game, error) {
    var g Game
    if err := r.db.WithContext(ctx).Where("path = ?", path).First(&g).Error; err != nil {
        return nil, err
    }
    return &g, nil
}
func (r *Repo) List(ctx context.Context) ([]*Game, error) {
    var arr []*Game
    if err := r.db.WithContext(ctx).Order("title ASC").Order("created_at ASC").Find(&arr).Error; err != nil {
        return nil, err
    }
    return arr, nil
}

// Mutate loads the row, applies fn and saves it inside one transaction.
func (r *Repo) Mutate(ctx context.Context, id string, fn func(g *Game) error) (*Game, error) {
    var out Game
    err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
        if err := tx.First(&out, "id = ?", id).Error; err != nil {
            return err
        }
        if err := fn(&out); err != nil {
            return err
        }
        return tx.Save(&out).Error
    })
    if err != nil {
        return nil, err
    }
    return &out, nil
}

func (r *Repo) TouchLastPlayed(ctx context.Context, id string, at time.Time) (int64, error) {
    res := r.db.WithContext(ctx).Model(&Game{}).Where("id = ?", id).Update("last_played_at", at)
    return res.RowsAffected, res.Error
}

// ProfileKeys reads every profile_key in a single statement.
func (r *Repo) ProfileKeys(ctx context.Context) ([]string, error) {
    var keys []string
    err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
        return tx.Model(&Game{}).Pluck("profile_key", &keys).Error
    })
    return keys, err
}
