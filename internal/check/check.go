// Package check builds the validation queries for a project. Every check is
// a row-producing query: any returned row is a violation. Severity decides
// whether violations fail the run or only warn.
package check

import (
	"fmt"
	"sort"
	"strings"

	"martflow/internal/compile"
	"martflow/internal/project"
	"martflow/pkg/errors"
)

// Kind distinguishes declarative column checks from singular assertions.
type Kind string

const (
	KindColumn   Kind = "column"
	KindSingular Kind = "singular"
)

// Check is one executable validation query.
type Check struct {
	Name     string
	Kind     Kind
	Model    string // owning model, empty for singular tests
	SQL      string // row-producing query; rows are violations
	Severity project.Severity
}

// ForProject builds every check declared in the project: column tests from
// schema files plus compiled singular test queries.
func ForProject(p *project.Project, compiler *compile.Compiler) ([]Check, error) {
	var checks []Check

	for _, name := range sortedModelNames(p) {
		m := p.Models[name]
		for _, col := range m.Columns {
			for _, test := range col.Tests {
				c, err := columnCheck(p, m, col, test)
				if err != nil {
					return nil, err
				}
				checks = append(checks, c)
			}
		}
	}

	for _, t := range p.Tests {
		compiled, err := compiler.CompileQuery(t.Name, t.RawSQL)
		if err != nil {
			return nil, err
		}
		checks = append(checks, Check{
			Name:     t.Name,
			Kind:     KindSingular,
			SQL:      strings.TrimSpace(compiled.SQL),
			Severity: t.Severity,
		})
	}

	return checks, nil
}

func columnCheck(p *project.Project, m *project.Model, col project.Column, test project.ColumnTest) (Check, error) {
	relation := m.Relation()
	name := fmt.Sprintf("%s_%s_%s", test.Type, m.Name, col.Name)

	var sql string
	switch test.Type {
	case project.TestUnique:
		sql = fmt.Sprintf(
			"SELECT %[1]s, count(*) AS n\nFROM %[2]s\nWHERE %[1]s IS NOT NULL\nGROUP BY %[1]s\nHAVING count(*) > 1",
			col.Name, relation,
		)

	case project.TestNotNull:
		sql = fmt.Sprintf("SELECT %[1]s\nFROM %[2]s\nWHERE %[1]s IS NULL", col.Name, relation)

	case project.TestAcceptedValues:
		if len(test.Values) == 0 {
			return Check{}, errors.New(errors.ErrCodeProjectInvalid,
				fmt.Sprintf("accepted_values on %s.%s declares no values", m.Name, col.Name))
		}
		quoted := make([]string, len(test.Values))
		for i, v := range test.Values {
			quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
		}
		sql = fmt.Sprintf(
			"SELECT %[1]s\nFROM %[2]s\nWHERE %[1]s IS NOT NULL\n  AND %[1]s NOT IN (%[3]s)",
			col.Name, relation, strings.Join(quoted, ", "),
		)

	case project.TestRelationships:
		target, ok := p.Model(test.To)
		if !ok {
			return Check{}, errors.New(errors.ErrCodeModelNotFound,
				fmt.Sprintf("relationships test on %s.%s points at unknown model %s", m.Name, col.Name, test.To))
		}
		field := test.Field
		if field == "" {
			field = col.Name
		}
		sql = fmt.Sprintf(
			"SELECT child.%[1]s\nFROM %[2]s AS child\nLEFT JOIN %[3]s AS parent\n  ON child.%[1]s = parent.%[4]s\nWHERE child.%[1]s IS NOT NULL\n  AND parent.%[4]s IS NULL",
			col.Name, relation, target.Relation(), field,
		)

	default:
		return Check{}, errors.New(errors.ErrCodeProjectInvalid,
			fmt.Sprintf("Unknown test type %q on %s.%s", test.Type, m.Name, col.Name))
	}

	return Check{
		Name:     name,
		Kind:     KindColumn,
		Model:    m.Name,
		SQL:      sql,
		Severity: test.Severity,
	}, nil
}

// CountQuery wraps a check so executing it yields a single failure count.
func CountQuery(c Check) string {
	return fmt.Sprintf("SELECT count(*) FROM (\n%s\n) AS violations", c.SQL)
}

func sortedModelNames(p *project.Project) []string {
	names := make([]string, 0, len(p.Models))
	for name := range p.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
