package resetstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/syncreset/internal/storage"
	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testClockNow = time.Date(2026, 10, 18, 9, 30, 15, 123456000, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "resets.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

func newTestStore() *Store {
	return NewStore(StoreConfig{Clock: func() time.Time { return testClockNow }})
}

// inWriteTx runs fn in a writable view and commits when fn succeeds.
func inWriteTx(t *testing.T, db *gorm.DB, fn func(tx *storage.WriteTx) error) error {
	t.Helper()
	tx, err := storage.BeginWrite(context.Background(), db)
	require.NoError(t, err)
	defer tx.Rollback() //nolint:errcheck
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func readPending(t *testing.T, db *gorm.DB, store *Store) (*PendingReset, error) {
	t.Helper()
	view, err := storage.BeginRead(context.Background(), db)
	require.NoError(t, err)
	defer view.Close() //nolint:errcheck
	return store.HasPendingReset(view)
}

func seedLegacyRows(t *testing.T, db *gorm.DB, rows ...legacyResetRow) {
	t.Helper()
	err := inWriteTx(t, db, func(tx *storage.WriteTx) error {
		conn, err := tx.Conn()
		if err != nil {
			return err
		}
		if err := conn.Migrator().CreateTable(&legacyResetRow{}); err != nil {
			return err
		}
		for _, row := range rows {
			if err := conn.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func execSQL(t *testing.T, db *gorm.DB, statement string, args ...any) {
	t.Helper()
	require.NoError(t, db.Exec(statement, args...).Error)
}

func tableExists(t *testing.T, db *gorm.DB, name string) bool {
	t.Helper()
	return db.Migrator().HasTable(name)
}
