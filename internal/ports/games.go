package ports

import (
    "context"
    "strings"
    "time"
)

// EngineType is the closed set of engine kinds the registry understands.
// Unknown boundary strings are mapped to EngineOther by ParseEngineType.
type EngineType string

const (
    EngineRPGMakerVX    EngineType = "rpgmakervx"
    EngineRPGMakerVXAce EngineType = "rpgmakervxace"
    EngineRPGMakerMV    EngineType = "rpgmakermv"
    EngineRPGMakerMZ    EngineType = "rpgmakermz"
    EngineRenPy         EngineType = "renpy"
    EngineOther         EngineType = "other"

    // Runtime-only kinds. Games never classify as these; Engine rows do.
    EngineNWJS    EngineType = "nwjs"
    EngineNWJSSDK EngineType = "nwjs-sdk"
)

var engineAliases = map[string]EngineType{
    "rpgmakervx":    EngineRPGMakerVX,
    "vx":            EngineRPGMakerVX,
    "rpgmakervxace": EngineRPGMakerVXAce,
    "vxace":         EngineRPGMakerVXAce,
    "rpgmakermv":    EngineRPGMakerMV,
    "mv":            EngineRPGMakerMV,
    "rpgmakermz":    EngineRPGMakerMZ,
    "mz":            EngineRPGMakerMZ,
    "renpy":         EngineRenPy,
    "nwjs":          EngineNWJS,
    "nwjssdk":       EngineNWJSSDK,
    "other":         EngineOther,
}

// ParseEngineType normalizes a boundary string. Case, spaces, dashes,
// underscores, dots and apostrophes are ignored ("RPG Maker MV", "rpg-maker-mv",
// "Ren'Py"). The empty string stays empty, meaning "unspecified"; anything else
// that is not recognized becomes EngineOther.
func ParseEngineType(s string) EngineType {
    s = strings.TrimSpace(s)
    if s == "" {
        return ""
    }
    var b strings.Builder
    for _, r := range strings.ToLower(s) {
        switch r {
        case ' ', '-', '_', '.', '\'':
            continue
        }
        b.WriteRune(r)
    }
    if t, ok := engineAliases[b.String()]; ok {
        return t
    }
    return EngineOther
}

// IsRuntime reports whether t names an installable runtime bundle.
func (t EngineType) IsRuntime() bool { return t == EngineNWJS || t == EngineNWJSSDK }

// UsesNWJS reports whether titles of this kind run on an NW.js runtime.
func (t EngineType) UsesNWJS() bool { return t == EngineRPGMakerMV || t == EngineRPGMakerMZ }

// Game is the domain DTO used by services/handlers. It mirrors the DB model but avoids GORM tags.
type Game struct {
    ID             string     `json:"id"`
    Title          string     `json:"title"`
    EngineType     EngineType `json:"engineType"`
    Path           string     `json:"path"`
    ProfileKey     string     `json:"profileKey"`
    RuntimeVersion string     `json:"runtimeVersion,omitempty"`
    CoverImagePath string     `json:"coverImagePath,omitempty"`
    CreatedAt      time.Time  `json:"createdAt"`
    UpdatedAt      time.Time  `json:"updatedAt"`
    LastPlayedAt   *time.Time `json:"lastPlayedAt,omitempty"`
    // PathValid is computed on read and never persisted.
    PathValid bool `json:"pathValid"`
}

// GameUpdate carries the editable fields; nil means "leave unchanged".
type GameUpdate struct {
    Title          *string     `json:"title,omitempty"`
    Path           *string     `json:"path,omitempty"`
    EngineType     *EngineType `json:"engineType,omitempty"`
    RuntimeVersion *string     `json:"runtimeVersion,omitempty"`
    CoverImagePath *string     `json:"coverImagePath,omitempty"`
}

// LaunchConfig is persisted per game inside its profile directory.
type LaunchConfig struct {
    EngineType        EngineType        `json:"engineType" yaml:"engine_type"`
    EntryPath         string            `json:"entryPath,omitempty" yaml:"entry_path,omitempty"`
    RuntimeVersion    string            `json:"runtimeVersion,omitempty" yaml:"runtime_version,omitempty"`
    Args              []string          `json:"args" yaml:"args"`
    SandboxHome       bool              `json:"sandboxHome" yaml:"sandbox_home"`
    UseCompatLayer    bool              `json:"useCompatLayer" yaml:"use_compat_layer"`
    CompatProfileName string            `json:"compatProfileName,omitempty" yaml:"compat_profile_name,omitempty"`
    CoverFile         string            `json:"coverFile,omitempty" yaml:"cover_file,omitempty"`
    Env               map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// DefaultLaunchConfig derives the config used when none was saved for g.
func DefaultLaunchConfig(g *Game) *LaunchConfig {
    cfg := &LaunchConfig{Args: []string{}, SandboxHome: true}
    if g != nil {
        cfg.EngineType = g.EngineType
        cfg.RuntimeVersion = g.RuntimeVersion
    }
    return cfg
}

// ScanResult summarizes one scan run.
type ScanResult struct {
    ScannedDirs     int `json:"scannedDirs"`
    FoundGames      int `json:"foundGames"`
    Imported        int `json:"imported"`
    SkippedExisting int `json:"skippedExisting"`
    Unreadable      int `json:"unreadable"`
}

// LaunchResult is returned as soon as the child process exists.
type LaunchResult struct {
    ProcessID int `json:"processId"`
}

// CleanupResult reports how many orphaned profile directories were removed.
type CleanupResult struct {
    Deleted int `json:"deleted"`
}

// GamesRepository defines persistence for games.
type GamesRepository interface {
    Create(ctx context.Context, g *Game) error
    Get(ctx context.Context, id string) (*Game, error)
    GetByPath(ctx context.Context, path string) (*Game, error)
    List(ctx context.Context) ([]*Game, error)
    // Update runs fn against the current row inside one transaction and saves the result.
    Update(ctx context.Context, id string, fn func(g *Game) error) (*Game, error)
    Delete(ctx context.Context, id string) error
    TouchLastPlayed(ctx context.Context, id string, at time.Time) error
    // ProfileKeys returns every referenced profile key from one consistent read.
    ProfileKeys(ctx context.Context) ([]string, error)
}
