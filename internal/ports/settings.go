package ports

import "context"

// AppSettings is the process-wide configuration visible to clients.
type AppSettings struct {
    ContainerRoot        string `json:"containerRoot"`
    CompatEnabled        bool   `json:"compatEnabled"`
    DefaultCompatProfile string `json:"defaultCompatProfile,omitempty"`
}

// SettingsRepository is a flat key/value store.
type SettingsRepository interface {
    Get(ctx context.Context, key string) (string, bool, error)
    Set(ctx context.Context, key, value string) error
    All(ctx context.Context) (map[string]string, error)
}
