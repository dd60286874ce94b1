package app

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/cuihairu/arcade/internal/compat"
	"github.com/cuihairu/arcade/internal/events"
	"github.com/cuihairu/arcade/internal/maintenance"
	"github.com/cuihairu/arcade/internal/profile"
	"github.com/cuihairu/arcade/internal/runtimes"
	"github.com/cuihairu/arcade/internal/sandbox"
	httpserver "github.com/cuihairu/arcade/internal/server/http"
	"github.com/cuihairu/arcade/internal/service/engines"
	"github.com/cuihairu/arcade/internal/service/games"
	"github.com/cuihairu/arcade/internal/service/settings"
	"github.com/cuihairu/arcade/internal/telemetry"
	"github.com/cuihairu/arcade/internal/watch"
)

// App holds every long-lived component. Build it with Initialize.
type App struct {
	Config    Config
	Logger    *slog.Logger
	DB        *gorm.DB
	Telemetry *telemetry.Provider
	Bus       *events.Bus
	Settings  *settings.Service
	Layout    *profile.Layout
	Games     *games.Service
	Engines   *engines.Service
	Runtimes  *runtimes.Manager
	Launcher  *sandbox.Launcher
	Cleaner   *maintenance.Cleaner
	Compat    *compat.Manager
}

func NewApp(cfg Config, logger *slog.Logger, gdb *gorm.DB, tp *telemetry.Provider, bus *events.Bus,
	st *settings.Service, layout *profile.Layout, gs *games.Service, es *engines.Service,
	rm *runtimes.Manager, l *sandbox.Launcher, c *maintenance.Cleaner, cm *compat.Manager) *App {
	return &App{
		Config: cfg, Logger: logger, DB: gdb, Telemetry: tp, Bus: bus,
		Settings: st, Layout: layout, Games: gs, Engines: es,
		Runtimes: rm, Launcher: l, Cleaner: c, Compat: cm,
	}
}

// HTTPServer builds the API server over the app's services.
func (a *App) HTTPServer() *httpserver.Server {
	return httpserver.NewServer(a.Config.HTTP, httpserver.Deps{
		Games:    a.Games,
		Engines:  a.Engines,
		Runtimes: a.Runtimes,
		Launcher: a.Launcher,
		Cleaner:  a.Cleaner,
		Settings: a.Settings,
		Compat:   a.Compat,
		Bus:      a.Bus,
		Logger:   a.Logger,
	})
}

// StartWatcher starts the library watcher when watch.enabled is set. It
// returns nil when watching is off.
func (a *App) StartWatcher(ctx context.Context) (*watch.Watcher, error) {
	if !a.Config.Watch.Enabled {
		return nil, nil
	}
	w, err := watch.New(a.Config.Watch.Config, a.Games, a.Logger)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return nil, err
	}
	return w, nil
}
