package games

import (
    "time"
)

// Game is the DB model for a registered title.
// ID is a UUID string; ProfileKey is written once at insert and never updated.
type Game struct {
    ID             string `gorm:"primaryKey;size:64"`
    Title          string `gorm:"size:255;not null"`
    EngineType     string `gorm:"size:32;not null;default:other"`
    Path           string `gorm:"size:1024;not null"`
    ProfileKey     string `gorm:"size:64"`
    RuntimeVersion *string `gorm:"size:64"`
    CoverImagePath *string `gorm:"size:1024"`
    CreatedAt      time.Time
    UpdatedAt      time.Time
    LastPlayedAt   *time.Time
}

func (Game) TableName() string { return "games" }

func strPtr(s string) *string {
    if s == "" { return nil }
    return &s
}

func strVal(p *string) string {
    if p == nil { return "" }
    return *p
}
