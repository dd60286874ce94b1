// Package app wires the launcher's components from one Config.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuihairu/arcade/internal/compat"
	"github.com/cuihairu/arcade/internal/db"
	"github.com/cuihairu/arcade/internal/objstore"
	"github.com/cuihairu/arcade/internal/runtimes"
	httpserver "github.com/cuihairu/arcade/internal/server/http"
	"github.com/cuihairu/arcade/internal/service/games"
	"github.com/cuihairu/arcade/internal/telemetry"
	"github.com/cuihairu/arcade/internal/watch"
)

type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RuntimeConfig struct {
	Dir             string          `mapstructure:"dir"`
	VersionsURL     string          `mapstructure:"versions_url"`
	DownloadBase    string          `mapstructure:"download_base"`
	VerifyChecksums bool            `mapstructure:"verify_checksums"`
	Mirror          objstore.Config `mapstructure:"mirror"`
	// MirrorFill copies archives missing from the mirror in from download_base.
	MirrorFill bool `mapstructure:"mirror_fill"`
}

type ScanConfig struct {
	MaxDepth int `mapstructure:"max_depth"`
}

type CompatConfig struct {
	FlatpakApp string `mapstructure:"flatpak_app"`
}

type WatchConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	watch.Config `mapstructure:",squash"`
}

// Config is the effective process configuration.
type Config struct {
	DataDir       string            `mapstructure:"data_dir"`
	DB            DBConfig          `mapstructure:"db"`
	ContainerRoot string            `mapstructure:"container_root"`
	Runtime       RuntimeConfig     `mapstructure:"runtime"`
	Scan          ScanConfig        `mapstructure:"scan"`
	Compat        CompatConfig      `mapstructure:"compat"`
	HTTP          httpserver.Config `mapstructure:"http"`
	Watch         WatchConfig       `mapstructure:"watch"`
	Telemetry     telemetry.Config  `mapstructure:"telemetry"`
}

// DefaultDataDir is <user config dir>/arcade, or ./data when that is unknown.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "arcade")
	}
	return "data"
}

// DefaultConfig returns the defaults; derived paths are filled by Normalize.
func DefaultConfig() Config {
	return Config{
		DataDir: DefaultDataDir(),
		Runtime: RuntimeConfig{
			VersionsURL:     runtimes.DefaultVersionsURL,
			DownloadBase:    runtimes.DefaultDownloadBase,
			VerifyChecksums: true,
			MirrorFill:      true,
		},
		Scan:      ScanConfig{MaxDepth: games.DefaultMaxDepth},
		Compat:    CompatConfig{FlatpakApp: compat.DefaultFlatpakApp},
		HTTP:      httpserver.Config{Addr: "127.0.0.1:7878"},
		Watch:     WatchConfig{Config: watch.DefaultConfig()},
		Telemetry: telemetry.Config{ServiceName: "arcade", SamplingRatio: 1},
	}
}

// Normalize fills paths derived from DataDir and makes them absolute.
func (c *Config) Normalize() error {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir()
	}
	abs, err := filepath.Abs(c.DataDir)
	if err != nil {
		return fmt.Errorf("data_dir: %w", err)
	}
	c.DataDir = abs
	if strings.TrimSpace(c.DB.DSN) == "" {
		c.DB.DSN = db.FileDSN(filepath.Join(c.DataDir, "db", "app.sqlite"))
	}
	if strings.TrimSpace(c.ContainerRoot) == "" {
		c.ContainerRoot = filepath.Join(c.DataDir, "containers")
	}
	if strings.TrimSpace(c.Runtime.Dir) == "" {
		c.Runtime.Dir = filepath.Join(c.DataDir, "runtimes")
	}
	if c.Runtime.Dir, err = filepath.Abs(c.Runtime.Dir); err != nil {
		return fmt.Errorf("runtime.dir: %w", err)
	}
	if c.Runtime.VersionsURL == "" {
		c.Runtime.VersionsURL = runtimes.DefaultVersionsURL
	}
	if c.Runtime.DownloadBase == "" {
		c.Runtime.DownloadBase = runtimes.DefaultDownloadBase
	}
	if c.Compat.FlatpakApp == "" {
		c.Compat.FlatpakApp = compat.DefaultFlatpakApp
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:7878"
	}
	return nil
}

// Validate rejects configurations the app cannot start with.
func (c *Config) Validate() error {
	if c.Scan.MaxDepth < 0 {
		return fmt.Errorf("scan.max_depth must be >= 0")
	}
	if c.Runtime.Mirror.Enabled() {
		if err := objstore.Validate(c.Runtime.Mirror); err != nil {
			return fmt.Errorf("runtime.mirror: %w", err)
		}
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be within [0,1]")
	}
	if c.Watch.Enabled && len(c.Watch.Roots) == 0 {
		return fmt.Errorf("watch.roots is required when watch.enabled is set")
	}
	return nil
}
