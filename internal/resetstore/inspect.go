package resetstore

import "github.com/MarcoPoloResearchLab/syncreset/internal/storage"

// SchemaReport summarizes which pending reset layouts a database holds.
type SchemaReport struct {
	CurrentTable  bool
	SchemaVersion int64
	LegacyTable   bool
	Pending       *PendingReset
}

// Inspect validates the stored layouts and reports on them without mutating.
// Structural problems are returned as errors, exactly as the store operations would.
func Inspect(view storage.View) (SchemaReport, error) {
	if view == nil {
		return SchemaReport{}, storage.ErrViewFinished
	}
	conn, err := view.Conn()
	if err != nil {
		return SchemaReport{}, err
	}

	report := SchemaReport{LegacyTable: hasLegacyTable(conn)}
	resolved, err := resolveLayout(conn)
	if err != nil {
		return report, err
	}
	switch resolved.kind {
	case layoutCurrent:
		report.CurrentTable = true
		report.SchemaVersion = resolved.handle.Version
		report.Pending, err = resolved.handle.read()
	case layoutLegacyV1:
		report.SchemaVersion = LegacySchemaVersion
		report.Pending, err = readLegacy(conn)
	}
	if err != nil {
		return report, err
	}
	return report, nil
}
