package engines

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Engine is the DB model for an installed runtime.
type Engine struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string `gorm:"size:255;not null"`
	Version     string `gorm:"size:64;not null"`
	EngineType  string `gorm:"size:32;not null"`
	InstallPath string `gorm:"size:1024;not null"`
	InstalledAt time.Time
	// Meta stores flavor/target/archive details as a JSON object of strings.
	Meta datatypes.JSON
}

func (Engine) TableName() string { return "engines" }

// GetMeta decodes Meta.
func (e *Engine) GetMeta() map[string]string {
	out := map[string]string{}
	if len(e.Meta) == 0 {
		return out
	}
	_ = json.Unmarshal(e.Meta, &out)
	return out
}

// SetMeta encodes m into Meta; an empty map clears it.
func (e *Engine) SetMeta(m map[string]string) {
	if len(m) == 0 {
		e.Meta = nil
		return
	}
	b, _ := json.Marshal(m)
	e.Meta = b
}
