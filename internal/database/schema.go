package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"xclone/internal/config"
	"xclone/internal/middleware"

	"gorm.io/gorm"
)

const (
	SchemaModeSQL  = "sql"
	SchemaModeAuto = "auto"
)

// ErrSchemaPolicy marks schema configuration that retrying cannot fix.
var ErrSchemaPolicy = errors.New("schema policy")

type SchemaStatus struct {
	Mode              string
	Environment       string
	AppliedVersions   []int
	PendingMigrations []Migration
}

// schemaMode resolves the effective mode. SQLite always uses AutoMigrate because
// the embedded SQL targets PostgreSQL.
func schemaMode(db *gorm.DB, cfg *config.Config) (string, error) {
	if db.Dialector.Name() == "sqlite" {
		return SchemaModeAuto, nil
	}

	switch cfg.DBSchemaMode {
	case "":
		if cfg.IsProduction() {
			return SchemaModeSQL, nil
		}
		return SchemaModeAuto, nil
	case SchemaModeSQL:
		return SchemaModeSQL, nil
	case SchemaModeAuto:
		if cfg.IsProduction() {
			return "", fmt.Errorf("%w: refusing DB_SCHEMA_MODE=auto in %q", ErrSchemaPolicy, cfg.Env)
		}
		return SchemaModeAuto, nil
	default:
		return "", fmt.Errorf("%w: unsupported DB_SCHEMA_MODE %q", ErrSchemaPolicy, cfg.DBSchemaMode)
	}
}

// AutoMigrate creates or updates every persistent table with GORM.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema brings the schema up to date using the configured mode.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mode, err := schemaMode(db, cfg)
	if err != nil {
		return err
	}

	middleware.Logger.Info("Applying schema", slog.String("mode", mode), slog.String("env", cfg.Env))
	switch mode {
	case SchemaModeSQL:
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	default:
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	return nil
}

func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	mode, err := schemaMode(db, cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:        mode,
		Environment: cfg.Env,
	}
	if mode != SchemaModeSQL {
		return status, nil
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied

	appliedSet := make(map[int]bool, len(applied))
	for _, version := range applied {
		appliedSet[version] = true
	}
	for _, m := range GetMigrations() {
		if !appliedSet[m.Version] {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}

	return status, nil
}
