// Package materialize wraps a compiled select statement in the DDL matching
// the model's materialization strategy.
package materialize

import (
	"fmt"

	"martflow/internal/project"
	"martflow/pkg/errors"
)

// Render produces the executable statement for a model's compiled select.
func Render(m *project.Model, selectSQL string) (string, error) {
	relation := m.Relation()

	switch m.Materialized {
	case project.MaterializationView:
		return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS\n%s", relation, selectSQL), nil

	case project.MaterializationTable:
		return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS\n%s", relation, selectSQL), nil

	case project.MaterializationIncremental:
		// First run creates the table from the full select; later runs
		// append. CREATE TABLE IF NOT EXISTS makes both paths one script.
		return fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s AS\n%s;\nINSERT INTO %s\n%s",
			relation, emptySelect(selectSQL), relation, selectSQL,
		), nil

	default:
		return "", errors.New(errors.ErrCodeMaterialization,
			fmt.Sprintf("Unknown materialization %q for model %s", m.Materialized, m.Name))
	}
}

// emptySelect wraps a select so it produces the schema but no rows.
func emptySelect(selectSQL string) string {
	return fmt.Sprintf("SELECT * FROM (\n%s\n) WHERE 1 = 0", selectSQL)
}
