package resetstore

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/syncreset/internal/storage"
	"gorm.io/gorm"
)

// ReadLegacyPendingReset reads a pending reset written under schema version 1.
// It returns (nil, nil) when no v1 table or no v1 row exists, and never mutates.
func ReadLegacyPendingReset(view storage.View) (*PendingReset, error) {
	if view == nil {
		return nil, storage.ErrViewFinished
	}
	conn, err := view.Conn()
	if err != nil {
		return nil, err
	}
	return readLegacy(conn)
}

func hasLegacyTable(conn *gorm.DB) bool {
	return conn.Migrator().HasTable(legacyTable.name)
}

func readLegacy(conn *gorm.DB) (*PendingReset, error) {
	if !hasLegacyTable(conn) {
		return nil, nil
	}
	// v1 builds were not strict about extra bookkeeping columns.
	if err := verifyColumns(conn, legacyTable, false); err != nil {
		return nil, err
	}

	var rows []legacyResetRow
	err := conn.Table(legacyTable.name).
		Select(legacyColumnID, legacyColumnVersion, legacyColumnEventTime, legacyColumnTypeOfReset).
		Order(legacyColumnID).
		Limit(2).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("resetstore: read %s: %w", legacyTable.name, err)
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s", ErrMultipleRows, legacyTable.name)
	}

	row := rows[0]
	if row.Version != legacyTable.version {
		return nil, fmt.Errorf("%w: %s row has version %d", ErrUnsupportedSchemaVersion, legacyTable.name, row.Version)
	}
	mode, err := ToResyncMode(row.TypeOfReset)
	if err != nil {
		return nil, err
	}

	return &PendingReset{
		Time:   row.EventTime.UTC(),
		Mode:   mode,
		Action: legacyAction(mode),
		Error:  nil,
	}, nil
}

// legacyAction derives the triggering action, which v1 did not store.
func legacyAction(mode ResyncMode) Action {
	if mode == ResyncModeDiscardLocal {
		return ActionClientResetNoRecovery
	}
	return ActionClientReset
}

type layoutKind int

const (
	layoutNone layoutKind = iota
	layoutCurrent
	layoutLegacyV1
)

// layout is the read path chosen for one call: the current table when it exists,
// otherwise the v1 table when it exists.
type layout struct {
	kind   layoutKind
	handle *Handle
}

func resolveLayout(conn *gorm.DB) (layout, error) {
	handle, err := loadSchema(conn)
	if err != nil {
		return layout{}, err
	}
	if handle != nil {
		return layout{kind: layoutCurrent, handle: handle}, nil
	}
	if hasLegacyTable(conn) {
		return layout{kind: layoutLegacyV1}, nil
	}
	return layout{kind: layoutNone}, nil
}
