package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/syncreset/internal/resetstore"
	"github.com/MarcoPoloResearchLab/syncreset/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationUpgradeLegacyPendingReset = "2026-10-18_upgrade_legacy_pending_reset"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*storage.WriteTx) error
}

var migrations = []migrationDefinition{
	{name: migrationUpgradeLegacyPendingReset, apply: upgradeLegacyPendingReset},
}

// applyMigrations runs each unapplied migration and records it in the same transaction,
// so a crash leaves either both or neither. A migration that fails on unreadable stored
// data is skipped without a record; the store operations report that data themselves.
func applyMigrations(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	for _, migration := range migrations {
		var record migrationRecord
		err := db.WithContext(ctx).Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := runMigration(ctx, db, migration); err != nil {
			if resetstore.IsStructural(err) {
				// Left unrecorded so the next open retries once the data is cleared.
				logger.Warn("database migration deferred",
					zap.String("migration", migration.name),
					zap.Error(err))
				continue
			}
			return fmt.Errorf("migration %s: %w", migration.name, err)
		}
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

func runMigration(ctx context.Context, db *gorm.DB, migration migrationDefinition) error {
	tx, err := storage.BeginWrite(ctx, db)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := migration.apply(tx); err != nil {
		return err
	}
	conn, err := tx.Conn()
	if err != nil {
		return err
	}
	appliedAt := time.Now().UTC().Unix()
	if err := conn.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
		return err
	}
	return tx.Commit()
}

func upgradeLegacyPendingReset(tx *storage.WriteTx) error {
	_, err := resetstore.NewStore(resetstore.StoreConfig{}).UpgradeLegacy(tx)
	return err
}
