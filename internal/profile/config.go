package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	"github.com/cuihairu/arcade/internal/ports"
)

// ConfigFile is the per-profile launch configuration file name.
const ConfigFile = "launch.yaml"

// LoadConfig reads dir/launch.yaml. A missing file yields the defaults derived
// from g; keys absent from the file keep their defaults too.
func LoadConfig(dir string, g *ports.Game) (*ports.LaunchConfig, error) {
	cfg := ports.DefaultLaunchConfig(g)
	b, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeRegistryIO, "read launch config", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidConfig, "parse launch config", err)
	}
	Normalize(cfg, g)
	return cfg, nil
}

// SaveConfig validates cfg and writes it atomically to dir/launch.yaml.
func SaveConfig(dir string, cfg *ports.LaunchConfig) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidConfig, "encode launch config", err)
	}
	_ = enc.Close()
	if err := writeFileAtomic(filepath.Join(dir, ConfigFile), buf.Bytes()); err != nil {
		return apperrors.Wrap(apperrors.CodeRegistryIO, "write launch config", err)
	}
	return nil
}

// Normalize fills derived fields: engine type falls back to the game's, args is never nil.
func Normalize(cfg *ports.LaunchConfig, g *ports.Game) {
	cfg.EngineType = ports.ParseEngineType(string(cfg.EngineType))
	if cfg.EngineType == "" && g != nil {
		cfg.EngineType = g.EngineType
	}
	if cfg.EngineType == "" {
		cfg.EngineType = ports.EngineOther
	}
	if cfg.Args == nil {
		cfg.Args = []string{}
	}
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
