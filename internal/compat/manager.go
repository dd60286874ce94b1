package compat

import (
	"context"
	"log/slog"
	"strings"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
)

// Settings persists the compat toggles.
type Settings interface {
	CompatEnabled(ctx context.Context) (bool, error)
	SetCompatEnabled(ctx context.Context, enabled bool) error
	DefaultCompatProfile(ctx context.Context) (string, error)
	SetDefaultCompatProfile(ctx context.Context, name string) error
}

// Status is reported by getCompatLayerStatus.
type Status struct {
	Key            string   `json:"key"`
	Available      bool     `json:"available"`
	Installed      bool     `json:"installed"`
	Enabled        bool     `json:"enabled"`
	Flatpak        bool     `json:"flatpak"`
	Profiles       []string `json:"profiles"`
	DefaultProfile string   `json:"defaultProfile,omitempty"`
}

type Manager struct {
	bottles  *Bottles
	settings Settings
	log      *slog.Logger
}

func NewManager(b *Bottles, settings Settings, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{bottles: b, settings: settings, log: logger.With("component", "compat")}
}

// Status never fails because Bottles is missing; that is reported in the result.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	st := &Status{Key: "bottles", Available: m.bottles.Supported(), Profiles: []string{}}
	if !st.Available {
		return st, nil
	}
	enabled, err := m.settings.CompatEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if st.DefaultProfile, err = m.settings.DefaultCompatProfile(ctx); err != nil {
		return nil, err
	}
	cli, err := m.bottles.Detect(ctx)
	if err != nil {
		return st, nil
	}
	st.Installed = true
	st.Flatpak = cli.Flatpak
	st.Enabled = enabled
	if names, err := m.bottles.ListProfiles(ctx, cli); err == nil {
		st.Profiles = names
	} else {
		m.log.Warn("list bottles", "error", err)
	}
	return st, nil
}

func (m *Manager) SetEnabled(ctx context.Context, enabled bool) error {
	if enabled && !m.bottles.Supported() {
		return apperrors.New(apperrors.CodeCompatLayerUnavailable, "bottles is only supported on linux")
	}
	return m.settings.SetCompatEnabled(ctx, enabled)
}

func (m *Manager) SetDefaultProfile(ctx context.Context, name string) error {
	return m.settings.SetDefaultCompatProfile(ctx, name)
}

// Wrap turns exe + args into a bottles-cli invocation. profile overrides the
// default setting; with neither, or with the layer disabled, it is unavailable.
func (m *Manager) Wrap(ctx context.Context, profile, exe string, args []string) (string, []string, error) {
	enabled, err := m.settings.CompatEnabled(ctx)
	if err != nil {
		return "", nil, err
	}
	if !enabled {
		return "", nil, apperrors.New(apperrors.CodeCompatLayerUnavailable, "compat layer is disabled")
	}
	profile = strings.TrimSpace(profile)
	if profile == "" {
		def, err := m.settings.DefaultCompatProfile(ctx)
		if err != nil {
			return "", nil, err
		}
		profile = def
	}
	if profile == "" {
		return "", nil, apperrors.New(apperrors.CodeCompatLayerUnavailable, "no bottles profile configured")
	}
	cli, err := m.bottles.Detect(ctx)
	if err != nil {
		return "", nil, err
	}
	prog, argv := cli.Command(profile, exe, args)
	return prog, argv, nil
}
