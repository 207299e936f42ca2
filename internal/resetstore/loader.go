package resetstore

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/syncreset/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Handle is the resolved current-version table for a single transactional view.
// It is only valid for the view it was loaded from and must not outlive it.
type Handle struct {
	Table   string
	Columns []string
	Version int64

	conn *gorm.DB
}

// LoadSchema resolves the current pending reset table without mutating the database.
// It returns (nil, nil) when the table does not exist.
func LoadSchema(view storage.View) (*Handle, error) {
	if view == nil {
		return nil, storage.ErrViewFinished
	}
	conn, err := view.Conn()
	if err != nil {
		return nil, err
	}
	return loadSchema(conn)
}

// LoadOrCreateSchema resolves the current pending reset table, creating it and its
// registry entry when absent. The caller commits.
func LoadOrCreateSchema(tx *storage.WriteTx) (*Handle, error) {
	if !tx.Writable() {
		return nil, ErrReadOnlyView
	}
	conn, err := tx.Conn()
	if err != nil {
		return nil, err
	}
	return loadOrCreateSchema(conn)
}

func loadSchema(conn *gorm.DB) (*Handle, error) {
	migrator := conn.Migrator()
	if !migrator.HasTable(currentTable.name) {
		return nil, nil
	}
	if err := verifyColumns(conn, currentTable, true); err != nil {
		return nil, err
	}
	version, err := registeredVersion(conn)
	if err != nil {
		return nil, err
	}
	if version != currentTable.version {
		return nil, fmt.Errorf("%w: %s is at version %d, this build reads %d",
			ErrUnsupportedSchemaVersion, currentTable.name, version, currentTable.version)
	}

	columns := make([]string, 0, len(currentTable.columns))
	for _, column := range currentTable.columns {
		columns = append(columns, column.name)
	}
	return &Handle{
		Table:   currentTable.name,
		Columns: columns,
		Version: version,
		conn:    conn,
	}, nil
}

func loadOrCreateSchema(conn *gorm.DB) (*Handle, error) {
	handle, err := loadSchema(conn)
	if err != nil || handle != nil {
		return handle, err
	}

	migrator := conn.Migrator()
	if !migrator.HasTable(schemaRegistryTableName) {
		if err := migrator.CreateTable(&schemaRegistryRow{}); err != nil {
			return nil, fmt.Errorf("resetstore: create %s: %w", schemaRegistryTableName, err)
		}
	}
	if err := migrator.CreateTable(&pendingResetRow{}); err != nil {
		return nil, fmt.Errorf("resetstore: create %s: %w", currentTable.name, err)
	}

	entry := schemaRegistryRow{GroupName: SchemaGroupName, Version: currentTable.version}
	err = conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "schema_group_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"schema_version"}),
	}).Create(&entry).Error
	if err != nil {
		return nil, fmt.Errorf("resetstore: register schema version: %w", err)
	}

	handle, err = loadSchema(conn)
	if err != nil {
		return nil, err
	}
	if handle == nil {
		return nil, fmt.Errorf("%w: %s missing after creation", ErrSchemaMismatch, currentTable.name)
	}
	return handle, nil
}

func registeredVersion(conn *gorm.DB) (int64, error) {
	if !conn.Migrator().HasTable(schemaRegistryTableName) {
		return 0, fmt.Errorf("%w: %s exists without %s", ErrSchemaMismatch, currentTable.name, schemaRegistryTableName)
	}
	var entries []schemaRegistryRow
	err := conn.Where("schema_group_name = ?", SchemaGroupName).Limit(1).Find(&entries).Error
	if err != nil {
		return 0, fmt.Errorf("resetstore: read schema registry: %w", err)
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("%w: no %q entry in %s", ErrSchemaMismatch, SchemaGroupName, schemaRegistryTableName)
	}
	return entries[0].Version, nil
}

// verifyColumns checks the table against spec. A strict check also rejects extra columns.
func verifyColumns(conn *gorm.DB, spec tableSpec, strict bool) error {
	columnTypes, err := conn.Migrator().ColumnTypes(spec.name)
	if err != nil {
		return fmt.Errorf("resetstore: inspect %s: %w", spec.name, err)
	}

	declared := make(map[string]string, len(columnTypes))
	for _, columnType := range columnTypes {
		declared[strings.ToLower(columnType.Name())] = columnType.DatabaseTypeName()
	}

	for _, column := range spec.columns {
		typeName, ok := declared[column.name]
		if !ok {
			return fmt.Errorf("%w: %s is missing column %s", ErrSchemaMismatch, spec.name, column.name)
		}
		kind, known := kindOf(typeName)
		if !known || kind != column.kind {
			return fmt.Errorf("%w: %s.%s has type %q", ErrSchemaMismatch, spec.name, column.name, typeName)
		}
	}
	if strict && len(declared) != len(spec.columns) {
		return fmt.Errorf("%w: %s has %d columns, expected %d", ErrSchemaMismatch, spec.name, len(declared), len(spec.columns))
	}
	return nil
}

func kindOf(declaredType string) (columnKind, bool) {
	normalized := strings.ToLower(strings.TrimSpace(declaredType))
	switch {
	case strings.Contains(normalized, "int"):
		return kindInteger, true
	case strings.Contains(normalized, "date"), strings.Contains(normalized, "time"):
		return kindTime, true
	case strings.Contains(normalized, "char"), strings.Contains(normalized, "text"), strings.Contains(normalized, "clob"):
		return kindText, true
	default:
		return 0, false
	}
}
