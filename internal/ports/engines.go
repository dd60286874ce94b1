package ports

import (
    "context"
    "time"
)

// Engine is an installed, versioned runtime.
type Engine struct {
    ID          string            `json:"id"`
    Name        string            `json:"name"`
    Version     string            `json:"version"`
    EngineType  EngineType        `json:"engineType"`
    InstallPath string            `json:"installPath"`
    InstalledAt time.Time         `json:"installedAt"`
    Meta        map[string]string `json:"meta,omitempty"`
}

// EngineUpdateInfo compares an installed engine with the resolved stable version.
type EngineUpdateInfo struct {
    EngineID        string `json:"engineId"`
    CurrentVersion  string `json:"currentVersion"`
    LatestVersion   string `json:"latestVersion"`
    UpdateAvailable bool   `json:"updateAvailable"`
}

// EngineUpdateResult is the outcome of an update request.
type EngineUpdateResult struct {
    EngineID    string `json:"engineId"`
    Updated     bool   `json:"updated"`
    FromVersion string `json:"fromVersion"`
    ToVersion   string `json:"toVersion"`
    InstallDir  string `json:"installDir,omitempty"`
}

// EnginesRepository defines persistence for engines.
type EnginesRepository interface {
    // Create fails with INSTALL_CONFLICT when (engine_type, version) is taken.
    Create(ctx context.Context, e *Engine) error
    Get(ctx context.Context, id string) (*Engine, error)
    // Find returns the newest install of t when version is empty.
    Find(ctx context.Context, t EngineType, version string) (*Engine, error)
    List(ctx context.Context) ([]*Engine, error)
    Delete(ctx context.Context, id string) error
}
