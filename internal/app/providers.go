package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/cuihairu/arcade/internal/compat"
	"github.com/cuihairu/arcade/internal/db"
	"github.com/cuihairu/arcade/internal/events"
	"github.com/cuihairu/arcade/internal/events/sink"
	"github.com/cuihairu/arcade/internal/maintenance"
	"github.com/cuihairu/arcade/internal/objstore"
	dom "github.com/cuihairu/arcade/internal/ports"
	"github.com/cuihairu/arcade/internal/profile"
	repogames "github.com/cuihairu/arcade/internal/repo/gorm/games"
	"github.com/cuihairu/arcade/internal/runtimes"
	"github.com/cuihairu/arcade/internal/sandbox"
	"github.com/cuihairu/arcade/internal/service/engines"
	"github.com/cuihairu/arcade/internal/service/games"
	"github.com/cuihairu/arcade/internal/service/settings"
	"github.com/cuihairu/arcade/internal/telemetry"
)

// ProvideDB opens the registry and applies migrations. A migration failure
// aborts startup.
func ProvideDB(cfg Config) (*gorm.DB, func(), error) {
	gdb, err := db.OpenAndMigrate(cfg.DB.DSN)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return gdb, cleanup, nil
}

func ProvideTelemetry(ctx context.Context, cfg Config, logger *slog.Logger) (*telemetry.Provider, func(), error) {
	p, err := telemetry.NewProvider(ctx, cfg.Telemetry, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}
	return p, cleanup, nil
}

func ProvideMetrics(p *telemetry.Provider) *telemetry.Metrics { return p.Metrics }

// ProvideBus builds the event bus and attaches the sink selected by
// ARCADE_EVENTS_SINK.
func ProvideBus(logger *slog.Logger) (*events.Bus, func(), error) {
	bus := events.NewBus(logger)
	scfg, err := sink.ConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}
	s, err := sink.New(scfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if s.Name() != "noop" {
		bus.AddSink(s)
	}
	cleanup := func() {
		if err := bus.Close(); err != nil {
			logger.Warn("close event bus", "error", err)
		}
	}
	return bus, cleanup, nil
}

func ProvideSettings(repo dom.SettingsRepository, cfg Config) *settings.Service {
	return settings.NewService(repo, cfg.ContainerRoot)
}

func ProvideGamesRepo(gdb *gorm.DB) *repogames.PortRepo {
	return repogames.NewPortRepo(repogames.NewRepo(gdb))
}

func ProvideGames(repo dom.GamesRepository, layout *profile.Layout, bus *events.Bus, m *telemetry.Metrics, cfg Config, logger *slog.Logger) *games.Service {
	return games.NewService(repo, layout, games.Options{Events: bus, Metrics: m, Logger: logger, MaxDepth: cfg.Scan.MaxDepth})
}

// ProvideSource picks the object-storage mirror when runtime.mirror.driver
// is set, else the upstream HTTP host.
func ProvideSource(ctx context.Context, cfg Config) (runtimes.Source, func(), error) {
	if !cfg.Runtime.Mirror.Enabled() {
		return runtimes.NewHTTPSource(cfg.Runtime.DownloadBase, nil), func() {}, nil
	}
	st, err := objstore.Open(ctx, cfg.Runtime.Mirror)
	if err != nil {
		return nil, nil, err
	}
	src := &runtimes.MirrorSource{Store: st}
	if cfg.Runtime.MirrorFill {
		src.Upstream = runtimes.NewHTTPSource(cfg.Runtime.DownloadBase, nil)
	}
	return src, func() { _ = st.Close() }, nil
}

func ProvideResolver(cfg Config) *runtimes.Resolver {
	return runtimes.NewResolver(cfg.Runtime.VersionsURL, &http.Client{Timeout: 30 * time.Second})
}

func ProvideInstaller(cfg Config, src runtimes.Source, repo dom.EnginesRepository, bus *events.Bus, m *telemetry.Metrics, logger *slog.Logger) *runtimes.Installer {
	return runtimes.NewInstaller(runtimes.InstallerOptions{
		Root:           cfg.Runtime.Dir,
		Source:         src,
		Repo:           repo,
		Events:         bus,
		Metrics:        m,
		Logger:         logger,
		VerifyChecksum: cfg.Runtime.VerifyChecksums,
	})
}

func ProvideRuntimes(r *runtimes.Resolver, inst *runtimes.Installer, repo dom.EnginesRepository, src runtimes.Source, logger *slog.Logger) *runtimes.Manager {
	return runtimes.NewManager(r, inst, repo, src, logger)
}

func ProvideEngines(repo dom.EnginesRepository, inst *runtimes.Installer, logger *slog.Logger) *engines.Service {
	root := inst.Root()
	return engines.NewService(repo, inst, func(dir string) bool { return runtimes.Managed(root, dir) }, logger)
}

func ProvideCompat(cfg Config, st *settings.Service, logger *slog.Logger) *compat.Manager {
	return compat.NewManager(compat.NewBottles(compat.ExecRunner(), cfg.Compat.FlatpakApp), st, logger)
}

func ProvideLauncher(gs dom.GamesRepository, es dom.EnginesRepository, layout *profile.Layout, cm *compat.Manager, m *telemetry.Metrics, logger *slog.Logger) *sandbox.Launcher {
	return sandbox.NewLauncher(gs, es, layout, sandbox.Options{Wrapper: cm, Metrics: m, Logger: logger})
}

func ProvideCleaner(gs dom.GamesRepository, layout *profile.Layout, logger *slog.Logger) *maintenance.Cleaner {
	return maintenance.NewCleaner(gs, layout, logger)
}
