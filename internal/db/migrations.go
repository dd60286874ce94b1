package db

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Schema snapshots. Each migration works against the shape of the table at
// that point in history, not against the live repository models.

type gameV1 struct {
	ID             string  `gorm:"primaryKey;size:64"`
	Title          string  `gorm:"size:255;not null"`
	EngineType     string  `gorm:"size:32;not null;default:other"`
	Path           string  `gorm:"size:1024;not null"`
	RuntimeVersion *string `gorm:"size:64"`
	CoverImagePath *string `gorm:"size:1024"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastPlayedAt   *time.Time
}

func (gameV1) TableName() string { return "games" }

type gameV2 struct {
	ID         string `gorm:"primaryKey;size:64"`
	ProfileKey string `gorm:"size:64"`
}

func (gameV2) TableName() string { return "games" }

type engineV1 struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string `gorm:"size:255;not null"`
	Version     string `gorm:"size:64;not null"`
	EngineType  string `gorm:"size:32;not null"`
	InstallPath string `gorm:"size:1024;not null"`
	InstalledAt time.Time
}

func (engineV1) TableName() string { return "engines" }

type engineV3 struct {
	ID   string `gorm:"primaryKey;size:64"`
	Meta datatypes.JSON
}

func (engineV3) TableName() string { return "engines" }

type engineV4 struct {
	ID         string `gorm:"primaryKey;size:64"`
	Version    string `gorm:"size:64;not null;uniqueIndex:idx_engines_type_version"`
	EngineType string `gorm:"size:32;not null;uniqueIndex:idx_engines_type_version"`
}

func (engineV4) TableName() string { return "engines" }

type settingV1 struct {
	Key   string `gorm:"primaryKey;size:191"`
	Value string `gorm:"type:text"`
}

func (settingV1) TableName() string { return "settings" }

// Migrations returns the registry schema history in order.
func Migrations() []Migration {
	return []Migration{
		{Name: "0001_init", Up: migrateInit},
		{Name: "0002_games_profile_key", Up: migrateProfileKey},
		{Name: "0003_engines_meta", Up: migrateEngineMeta},
		{Name: "0004_engines_unique", Up: migrateEngineUnique},
	}
}

func migrateInit(tx *gorm.DB) error {
	m := tx.Migrator()
	for _, model := range []any{&gameV1{}, &engineV1{}, &settingV1{}} {
		if m.HasTable(model) {
			continue
		}
		if err := m.CreateTable(model); err != nil {
			return err
		}
	}
	return nil
}

// migrateProfileKey adds games.profile_key and backfills it from id, so every
// title that existed before profile keys keeps its directory name.
func migrateProfileKey(tx *gorm.DB) error {
	m := tx.Migrator()
	if !m.HasColumn(&gameV2{}, "profile_key") {
		if err := m.AddColumn(&gameV2{}, "ProfileKey"); err != nil {
			return err
		}
	}
	return tx.Exec("UPDATE games SET profile_key = id WHERE profile_key IS NULL OR profile_key = ''").Error
}

func migrateEngineMeta(tx *gorm.DB) error {
	m := tx.Migrator()
	if m.HasColumn(&engineV3{}, "meta") {
		return nil
	}
	return m.AddColumn(&engineV3{}, "Meta")
}

func migrateEngineUnique(tx *gorm.DB) error {
	m := tx.Migrator()
	if m.HasIndex(&engineV4{}, "idx_engines_type_version") {
		return nil
	}
	return m.CreateIndex(&engineV4{}, "idx_engines_type_version")
}

// OpenAndMigrate opens dsn and brings the schema up to date. A migration
// failure closes the handle; callers must not continue with a partial schema.
func OpenAndMigrate(dsn string) (*gorm.DB, error) {
	gdb, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(gdb, Migrations()); err != nil {
		if sqlDB, e := gdb.DB(); e == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return gdb, nil
}
