package resetstore

import "time"

const (
	// SchemaVersion is the pending reset layout written by this build.
	SchemaVersion int64 = 2
	// LegacySchemaVersion is the only earlier layout that can still be read.
	LegacySchemaVersion int64 = 1

	// SchemaGroupName keys the pending reset layout in the schema registry.
	SchemaGroupName = "pending_reset"

	pendingResetTableName   = "pending_client_resets"
	schemaRegistryTableName = "sync_internal_schemas"
	legacyTableName         = "client_reset_metadata"

	singletonRowID int64 = 1
)

const (
	columnID           = "id"
	columnVersion      = "version"
	columnTimestamp    = "timestamp"
	columnRecoveryMode = "recovery_mode"
	columnAction       = "action"
	columnErrorCode    = "error_code"
	columnErrorMessage = "error_message"

	legacyColumnID          = "id"
	legacyColumnVersion     = "version"
	legacyColumnEventTime   = "event_time"
	legacyColumnTypeOfReset = "type_of_reset"
)

// columnKind groups the declared SQLite types gorm emits for a Go field.
type columnKind int

const (
	kindInteger columnKind = iota
	kindText
	kindTime
)

type columnSpec struct {
	name string
	kind columnKind
}

// tableSpec is the fixed layout a table must present for a given schema version.
type tableSpec struct {
	name    string
	version int64
	columns []columnSpec
}

var currentTable = tableSpec{
	name:    pendingResetTableName,
	version: SchemaVersion,
	columns: []columnSpec{
		{name: columnID, kind: kindInteger},
		{name: columnVersion, kind: kindInteger},
		{name: columnTimestamp, kind: kindTime},
		{name: columnRecoveryMode, kind: kindInteger},
		{name: columnAction, kind: kindInteger},
		{name: columnErrorCode, kind: kindInteger},
		{name: columnErrorMessage, kind: kindText},
	},
}

var legacyTable = tableSpec{
	name:    legacyTableName,
	version: LegacySchemaVersion,
	columns: []columnSpec{
		{name: legacyColumnID, kind: kindInteger},
		{name: legacyColumnVersion, kind: kindInteger},
		{name: legacyColumnEventTime, kind: kindTime},
		{name: legacyColumnTypeOfReset, kind: kindInteger},
	},
}

// pendingResetRow is the current (v2) persisted row.
type pendingResetRow struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	Version      int64     `gorm:"column:version;not null"`
	Timestamp    time.Time `gorm:"column:timestamp;not null"`
	RecoveryMode int64     `gorm:"column:recovery_mode;not null"`
	Action       int64     `gorm:"column:action;not null"`
	ErrorCode    *int64    `gorm:"column:error_code"`
	ErrorMessage *string   `gorm:"column:error_message"`
}

// TableName provides the explicit table binding for GORM.
func (pendingResetRow) TableName() string {
	return pendingResetTableName
}

// legacyResetRow is the v1 row. It is only ever read, except in tests that seed it.
type legacyResetRow struct {
	ID          int64     `gorm:"column:id;primaryKey"`
	Version     int64     `gorm:"column:version;not null"`
	EventTime   time.Time `gorm:"column:event_time;not null"`
	TypeOfReset int64     `gorm:"column:type_of_reset;not null"`
}

// TableName provides the explicit table binding for GORM.
func (legacyResetRow) TableName() string {
	return legacyTableName
}

// schemaRegistryRow records the layout version of one group of internal tables.
type schemaRegistryRow struct {
	GroupName string `gorm:"column:schema_group_name;primaryKey;size:190;not null"`
	Version   int64  `gorm:"column:schema_version;not null"`
}

// TableName provides the explicit table binding for GORM.
func (schemaRegistryRow) TableName() string {
	return schemaRegistryTableName
}
