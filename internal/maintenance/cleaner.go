// Package maintenance removes profile directories no title references.
package maintenance

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	dom "github.com/cuihairu/arcade/internal/ports"
	"github.com/cuihairu/arcade/internal/profile"
)

// KeySource returns every profile key still referenced by the registry.
type KeySource interface {
	ProfileKeys(ctx context.Context) ([]string, error)
}

type Cleaner struct {
	keys   KeySource
	layout *profile.Layout
	log    *slog.Logger
}

func NewCleaner(keys KeySource, layout *profile.Layout, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{keys: keys, layout: layout, log: logger.With("component", "maintenance")}
}

// CleanupUnusedContainers deletes every directory under <root>/profiles whose
// name is not a referenced profile key. It holds the layout's exclusive lock so
// no profile can be created between the snapshot and the sweep.
func (c *Cleaner) CleanupUnusedContainers(ctx context.Context) (*dom.CleanupResult, error) {
	dir, err := c.layout.ProfilesDir(ctx)
	if err != nil {
		return nil, err
	}
	res := &dom.CleanupResult{}
	err = c.layout.Exclusive(func() error {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return apperrors.Wrap(apperrors.CodeRegistryIO, "read profiles directory", err).With("path", dir)
		}
		keys, err := c.keys.ProfileKeys(ctx)
		if err != nil {
			return err
		}
		live := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			live[k] = struct{}{}
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !e.IsDir() {
				continue
			}
			if _, ok := live[e.Name()]; ok {
				continue
			}
			p := filepath.Join(dir, e.Name())
			if err := os.RemoveAll(p); err != nil {
				return apperrors.Wrap(apperrors.CodeRegistryIO, "remove profile directory", err).With("path", p)
			}
			c.log.Info("removed unused profile", "profile_key", e.Name())
			res.Deleted++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
