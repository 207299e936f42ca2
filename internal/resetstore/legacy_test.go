package resetstore

import (
	"context"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/syncreset/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var legacyEventTime = time.Date(2024, 3, 2, 11, 0, 0, 0, time.UTC)

func TestHasPendingResetFallsBackToLegacyLayout(t *testing.T) {
	tests := []struct {
		name       string
		storedMode int64
		wantMode   ResyncMode
		wantAction Action
	}{
		{name: "discard local", storedMode: 1, wantMode: ResyncModeDiscardLocal, wantAction: ActionClientResetNoRecovery},
		{name: "recover", storedMode: 2, wantMode: ResyncModeRecover, wantAction: ActionClientReset},
		{name: "recover or discard", storedMode: 3, wantMode: ResyncModeRecoverOrDiscard, wantAction: ActionClientReset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t)
			seedLegacyRows(t, db, legacyResetRow{ID: 1, Version: 1, EventTime: legacyEventTime, TypeOfReset: tt.storedMode})

			pending, err := readPending(t, db, newTestStore())
			require.NoError(t, err)
			require.NotNil(t, pending)
			assert.Equal(t, tt.wantMode, pending.Mode)
			assert.Equal(t, tt.wantAction, pending.Action)
			assert.Nil(t, pending.Error)
			assert.WithinDuration(t, legacyEventTime, pending.Time, time.Millisecond)

			assert.False(t, tableExists(t, db, pendingResetTableName))
			assert.True(t, tableExists(t, db, legacyTableName))
		})
	}
}

func TestReadLegacyPendingResetWithoutLegacyTable(t *testing.T) {
	db := openTestDB(t)
	view, err := storage.BeginRead(context.Background(), db)
	require.NoError(t, err)
	defer view.Close() //nolint:errcheck

	pending, err := ReadLegacyPendingReset(view)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestReadLegacyPendingResetWithEmptyLegacyTable(t *testing.T) {
	db := openTestDB(t)
	seedLegacyRows(t, db)

	pending, err := readPending(t, db, newTestStore())
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestLegacyRecordsOutsideVersionOneAreRejected(t *testing.T) {
	db := openTestDB(t)
	seedLegacyRows(t, db, legacyResetRow{ID: 1, Version: 4, EventTime: legacyEventTime, TypeOfReset: 2})

	_, err := readPending(t, db, newTestStore())
	assert.ErrorIs(t, err, ErrUnsupportedSchemaVersion)
}

func TestLegacyRecordWithUnknownModeIsRejected(t *testing.T) {
	db := openTestDB(t)
	seedLegacyRows(t, db, legacyResetRow{ID: 1, Version: 1, EventTime: legacyEventTime, TypeOfReset: 9})

	_, err := readPending(t, db, newTestStore())
	assert.ErrorIs(t, err, ErrUnknownResyncMode)
}

func TestCurrentLayoutTakesPrecedenceOverLegacy(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore()
	require.NoError(t, inWriteTx(t, db, func(tx *storage.WriteTx) error {
		_, err := LoadOrCreateSchema(tx)
		return err
	}))
	seedLegacyRows(t, db, legacyResetRow{ID: 1, Version: 1, EventTime: legacyEventTime, TypeOfReset: 2})

	pending, err := readPending(t, db, store)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestTrackResetIgnoresLegacyRecordShadowedByCurrentTable(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore()
	require.NoError(t, inWriteTx(t, db, func(tx *storage.WriteTx) error {
		_, err := LoadOrCreateSchema(tx)
		return err
	}))
	seedLegacyRows(t, db, legacyResetRow{ID: 1, Version: 1, EventTime: legacyEventTime, TypeOfReset: 2})

	pending, err := readPending(t, db, store)
	require.NoError(t, err)
	require.Nil(t, pending)

	require.NoError(t, inWriteTx(t, db, func(tx *storage.WriteTx) error {
		return store.TrackReset(tx, ResyncModeRecover, ActionClientReset, nil)
	}))
	pending, err = readPending(t, db, store)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, ResyncModeRecover, pending.Mode)
	assert.WithinDuration(t, testClockNow, pending.Time, time.Millisecond)
}

func TestTrackResetTreatsLegacyRecordAsPending(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore()
	seedLegacyRows(t, db, legacyResetRow{ID: 1, Version: 1, EventTime: legacyEventTime, TypeOfReset: 2})

	err := inWriteTx(t, db, func(tx *storage.WriteTx) error {
		return store.TrackReset(tx, ResyncModeDiscardLocal, ActionClientResetNoRecovery, nil)
	})
	assert.ErrorIs(t, err, ErrResetAlreadyTracked)

	require.NoError(t, inWriteTx(t, db, func(tx *storage.WriteTx) error {
		return store.ClearPendingReset(tx)
	}))
	assert.False(t, tableExists(t, db, legacyTableName))

	require.NoError(t, inWriteTx(t, db, func(tx *storage.WriteTx) error {
		return store.TrackReset(tx, ResyncModeDiscardLocal, ActionClientResetNoRecovery, nil)
	}))
	pending, err := readPending(t, db, store)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, ResyncModeDiscardLocal, pending.Mode)
}

func TestUpgradeLegacyMovesRecordIntoCurrentLayout(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore()
	seedLegacyRows(t, db, legacyResetRow{ID: 1, Version: 1, EventTime: legacyEventTime, TypeOfReset: 1})

	var moved bool
	require.NoError(t, inWriteTx(t, db, func(tx *storage.WriteTx) error {
		var err error
		moved, err = store.UpgradeLegacy(tx)
		return err
	}))
	assert.True(t, moved)
	assert.False(t, tableExists(t, db, legacyTableName))

	pending, err := readPending(t, db, store)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, ResyncModeDiscardLocal, pending.Mode)
	assert.Equal(t, ActionClientResetNoRecovery, pending.Action)
	assert.WithinDuration(t, legacyEventTime, pending.Time, time.Millisecond)

	require.NoError(t, inWriteTx(t, db, func(tx *storage.WriteTx) error {
		var err error
		moved, err = store.UpgradeLegacy(tx)
		return err
	}))
	assert.False(t, moved)
}

func TestUpgradeLegacyKeepsShadowingCurrentRecord(t *testing.T) {
	db := openTestDB(t)
	store := newTestStore()
	require.NoError(t, inWriteTx(t, db, func(tx *storage.WriteTx) error {
		return store.TrackReset(tx, ResyncModeRecover, ActionMigrateToFLX, nil)
	}))
	seedLegacyRows(t, db, legacyResetRow{ID: 1, Version: 1, EventTime: legacyEventTime, TypeOfReset: 1})

	var moved bool
	require.NoError(t, inWriteTx(t, db, func(tx *storage.WriteTx) error {
		var err error
		moved, err = store.UpgradeLegacy(tx)
		return err
	}))
	assert.False(t, moved)
	assert.False(t, tableExists(t, db, legacyTableName))

	pending, err := readPending(t, db, store)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, ActionMigrateToFLX, pending.Action)
}

func TestInspectReportsLayouts(t *testing.T) {
	db := openTestDB(t)
	seedLegacyRows(t, db, legacyResetRow{ID: 1, Version: 1, EventTime: legacyEventTime, TypeOfReset: 3})

	view, err := storage.BeginRead(context.Background(), db)
	require.NoError(t, err)
	report, err := Inspect(view)
	require.NoError(t, view.Close())
	require.NoError(t, err)

	assert.False(t, report.CurrentTable)
	assert.True(t, report.LegacyTable)
	assert.Equal(t, LegacySchemaVersion, report.SchemaVersion)
	require.NotNil(t, report.Pending)
	assert.Equal(t, ResyncModeRecoverOrDiscard, report.Pending.Mode)
}
