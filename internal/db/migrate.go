package db

import (
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	"gorm.io/gorm"
)

// Migration is one ordered, idempotent schema step.
type Migration struct {
	Name string
	Up   func(tx *gorm.DB) error
}

type schemaMigration struct {
	Name      string `gorm:"primaryKey;size:191"`
	AppliedAt time.Time
}

func (schemaMigration) TableName() string { return "schema_migrations" }

// Migrate applies every migration not yet recorded in schema_migrations, in
// name order, each inside its own transaction. Any failure is returned as
// MIGRATION_FAILED and the schema is left at the last fully applied step.
func Migrate(gdb *gorm.DB, migrations []Migration) error {
	if gdb == nil {
		return apperrors.New(apperrors.CodeMigration, "database is required")
	}
	if err := gdb.AutoMigrate(&schemaMigration{}); err != nil {
		return apperrors.Wrap(apperrors.CodeMigration, "ensure schema_migrations", err)
	}
	var rows []schemaMigration
	if err := gdb.Find(&rows).Error; err != nil {
		return apperrors.Wrap(apperrors.CodeMigration, "load applied migrations", err)
	}
	applied := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		applied[r.Name] = struct{}{}
	}

	ordered := append([]Migration(nil), migrations...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })
	for _, m := range ordered {
		if _, ok := applied[m.Name]; ok {
			continue
		}
		err := gdb.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil && !isIdempotentDDLError(err) {
				return err
			}
			return tx.Create(&schemaMigration{Name: m.Name, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return apperrors.Wrap(apperrors.CodeMigration, fmt.Sprintf("apply migration %s", m.Name), err).With("migration", m.Name)
		}
	}
	return nil
}

// Applied lists the names recorded in schema_migrations.
func Applied(gdb *gorm.DB) ([]string, error) {
	var names []string
	if err := gdb.Model(&schemaMigration{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

func isIdempotentDDLError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column name")
}
