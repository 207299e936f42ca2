package resetstore

import (
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/syncreset/internal/storage"
	"gorm.io/gorm"
)

// StoreConfig describes the optional dependencies of a Store.
type StoreConfig struct {
	Clock func() time.Time
}

// Store implements the pending reset operations. It holds no table or column handles;
// everything is resolved from the view passed to each call.
type Store struct {
	clock func() time.Time
}

// NewStore constructs a Store.
func NewStore(cfg StoreConfig) *Store {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{clock: clock}
}

var defaultStore = NewStore(StoreConfig{})

// TrackReset records a pending reset using the wall clock. See Store.TrackReset.
func TrackReset(tx *storage.WriteTx, mode ResyncMode, action Action, status *Status) error {
	return defaultStore.TrackReset(tx, mode, action, status)
}

// ClearPendingReset removes the pending reset. See Store.ClearPendingReset.
func ClearPendingReset(tx *storage.WriteTx) error {
	return defaultStore.ClearPendingReset(tx)
}

// HasPendingReset returns the pending reset, if any. See Store.HasPendingReset.
func HasPendingReset(view storage.View) (*PendingReset, error) {
	return defaultStore.HasPendingReset(view)
}

// TrackReset stores a pending reset. It fails with ErrResetAlreadyTracked when one is
// already stored. A v1 record counts only while the current table is absent, matching
// what HasPendingReset reports. Changes must be committed by the caller.
func (s *Store) TrackReset(tx *storage.WriteTx, mode ResyncMode, action Action, status *Status) error {
	if !tx.Writable() {
		return ErrReadOnlyView
	}
	row, err := encodeRow(mode, action, status)
	if err != nil {
		return err
	}
	conn, err := tx.Conn()
	if err != nil {
		return err
	}

	handle, err := loadSchema(conn)
	if err != nil {
		return err
	}
	if handle == nil {
		legacy, err := readLegacy(conn)
		if err != nil {
			return err
		}
		if legacy != nil {
			return fmt.Errorf("%w: v1 record from %s", ErrResetAlreadyTracked, legacy.Time.Format(time.RFC3339))
		}
		if handle, err = loadOrCreateSchema(conn); err != nil {
			return err
		}
	}
	row.Timestamp = s.clock().UTC()
	return handle.insert(row)
}

// ClearPendingReset removes the pending reset in either layout. Clearing an empty
// store is a no-op. Changes must be committed by the caller.
func (s *Store) ClearPendingReset(tx *storage.WriteTx) error {
	if !tx.Writable() {
		return ErrReadOnlyView
	}
	conn, err := tx.Conn()
	if err != nil {
		return err
	}

	handle, err := loadSchema(conn)
	if err != nil {
		return err
	}
	if handle != nil {
		if err := handle.deleteAll(); err != nil {
			return err
		}
	}
	if hasLegacyTable(conn) {
		if err := conn.Migrator().DropTable(legacyTable.name); err != nil {
			return fmt.Errorf("resetstore: drop %s: %w", legacyTable.name, err)
		}
	}
	return nil
}

// HasPendingReset returns the stored pending reset, falling back to the v1 layout when
// the current table does not exist. It returns (nil, nil) when nothing is pending.
func (s *Store) HasPendingReset(view storage.View) (*PendingReset, error) {
	if view == nil {
		return nil, storage.ErrViewFinished
	}
	conn, err := view.Conn()
	if err != nil {
		return nil, err
	}
	resolved, err := resolveLayout(conn)
	if err != nil {
		return nil, err
	}
	switch resolved.kind {
	case layoutCurrent:
		return resolved.handle.read()
	case layoutLegacyV1:
		return readLegacy(conn)
	default:
		return nil, nil
	}
}

// UpgradeLegacy moves a v1 pending reset into the current layout, keeping its original
// time, and drops the v1 table. It reports whether a record was moved.
func (s *Store) UpgradeLegacy(tx *storage.WriteTx) (bool, error) {
	if !tx.Writable() {
		return false, ErrReadOnlyView
	}
	conn, err := tx.Conn()
	if err != nil {
		return false, err
	}

	legacy, err := readLegacy(conn)
	if err != nil {
		return false, err
	}
	if legacy == nil {
		if hasLegacyTable(conn) {
			if err := conn.Migrator().DropTable(legacyTable.name); err != nil {
				return false, fmt.Errorf("resetstore: drop %s: %w", legacyTable.name, err)
			}
		}
		return false, nil
	}

	handle, err := loadOrCreateSchema(conn)
	if err != nil {
		return false, err
	}
	current, err := handle.read()
	if err != nil {
		return false, err
	}
	if current != nil {
		// The current layout already shadows the v1 record.
		if err := conn.Migrator().DropTable(legacyTable.name); err != nil {
			return false, fmt.Errorf("resetstore: drop %s: %w", legacyTable.name, err)
		}
		return false, nil
	}
	row, err := encodeRow(legacy.Mode, legacy.Action, nil)
	if err != nil {
		return false, err
	}
	row.Timestamp = legacy.Time
	if err := handle.insert(row); err != nil {
		return false, err
	}
	if err := conn.Migrator().DropTable(legacyTable.name); err != nil {
		return false, fmt.Errorf("resetstore: drop %s: %w", legacyTable.name, err)
	}
	return true, nil
}

func encodeRow(mode ResyncMode, action Action, status *Status) (pendingResetRow, error) {
	modeValue, err := FromResyncMode(mode)
	if err != nil {
		return pendingResetRow{}, err
	}
	actionValue, err := FromResetAction(action)
	if err != nil {
		return pendingResetRow{}, err
	}
	row := pendingResetRow{
		ID:           singletonRowID,
		Version:      SchemaVersion,
		RecoveryMode: modeValue,
		Action:       actionValue,
	}
	if status != nil {
		code := int64(status.Code)
		message := status.Message
		row.ErrorCode = &code
		row.ErrorMessage = &message
	}
	return row, nil
}

func decodeRow(row pendingResetRow) (*PendingReset, error) {
	if row.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: row written under version %d", ErrUnsupportedSchemaVersion, row.Version)
	}
	mode, err := ToResyncMode(row.RecoveryMode)
	if err != nil {
		return nil, err
	}
	action, err := ToResetAction(row.Action)
	if err != nil {
		return nil, err
	}
	if (row.ErrorCode == nil) != (row.ErrorMessage == nil) {
		return nil, ErrInconsistentError
	}

	reset := &PendingReset{
		Time:   row.Timestamp.UTC(),
		Mode:   mode,
		Action: action,
	}
	if row.ErrorCode != nil {
		reset.Error = &Status{Code: ErrorCode(*row.ErrorCode), Message: *row.ErrorMessage}
	}
	return reset, nil
}

func (h *Handle) table() *gorm.DB {
	return h.conn.Table(h.Table)
}

func (h *Handle) insert(row pendingResetRow) error {
	var existing int64
	if err := h.table().Count(&existing).Error; err != nil {
		return fmt.Errorf("resetstore: count %s: %w", h.Table, err)
	}
	if existing > 0 {
		return ErrResetAlreadyTracked
	}
	if err := h.table().Create(&row).Error; err != nil {
		return fmt.Errorf("resetstore: insert pending reset: %w", err)
	}
	return nil
}

func (h *Handle) read() (*PendingReset, error) {
	var rows []pendingResetRow
	if err := h.table().Order(columnID).Limit(2).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("resetstore: read %s: %w", h.Table, err)
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return decodeRow(rows[0])
	default:
		return nil, fmt.Errorf("%w: %s", ErrMultipleRows, h.Table)
	}
}

func (h *Handle) deleteAll() error {
	if err := h.table().Where("1 = 1").Delete(&pendingResetRow{}).Error; err != nil {
		return fmt.Errorf("resetstore: clear %s: %w", h.Table, err)
	}
	return nil
}
