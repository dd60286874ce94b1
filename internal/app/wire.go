//go:build wireinject

package app

import (
	"context"
	"log/slog"

	"github.com/google/wire"

	dom "github.com/cuihairu/arcade/internal/ports"
	"github.com/cuihairu/arcade/internal/profile"
	repoengines "github.com/cuihairu/arcade/internal/repo/gorm/engines"
	repogames "github.com/cuihairu/arcade/internal/repo/gorm/games"
	reposettings "github.com/cuihairu/arcade/internal/repo/gorm/settings"
	"github.com/cuihairu/arcade/internal/service/settings"
)

// Provider sets for the registry (ports/adapters).
var RepoSet = wire.NewSet(
	ProvideGamesRepo,
	wire.Bind(new(dom.GamesRepository), new(*repogames.PortRepo)),
	repoengines.NewRepo,
	wire.Bind(new(dom.EnginesRepository), new(*repoengines.Repo)),
	reposettings.NewRepo,
	wire.Bind(new(dom.SettingsRepository), new(*reposettings.Repo)),
)

var ServiceSet = wire.NewSet(
	ProvideSettings,
	profile.NewLayout,
	wire.Bind(new(profile.RootProvider), new(*settings.Service)),
	ProvideGames,
	ProvideSource,
	ProvideResolver,
	ProvideInstaller,
	ProvideRuntimes,
	ProvideEngines,
	ProvideCompat,
	ProvideLauncher,
	ProvideCleaner,
)

// Initialize composes *App from cfg. The cleanup releases resources in
// reverse order of construction.
func Initialize(ctx context.Context, cfg Config, logger *slog.Logger) (*App, func(), error) {
	wire.Build(
		ProvideDB,
		ProvideTelemetry,
		ProvideMetrics,
		ProvideBus,
		RepoSet,
		ServiceSet,
		NewApp,
	)
	return nil, nil, nil
}
