package project

import (
	"fmt"
	"strings"
)

// Layer represents the transformation stage a model belongs to.
type Layer string

const (
	LayerStaging      Layer = "staging"
	LayerIntermediate Layer = "intermediate"
	LayerMarts        Layer = "marts"
	LayerOther        Layer = "other"
)

// Materialization defines how a model's output is stored in the warehouse.
type Materialization string

const (
	MaterializationView        Materialization = "view"
	MaterializationTable       Materialization = "table"
	MaterializationIncremental Materialization = "incremental"
)

// Severity controls whether a failing check fails the run or only warns.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Model represents a single SQL transformation unit.
type Model struct {
	Name         string
	Layer        Layer
	FilePath     string
	RawSQL       string // template text as found on disk
	Materialized Materialization
	Database     string
	Schema       string
	Description  string
	Columns      []Column
}

// Relation returns the fully qualified warehouse relation for the model.
func (m *Model) Relation() string {
	return fmt.Sprintf("%s.%s.%s", m.Database, m.Schema, m.Name)
}

// Column describes a model column and its declared tests.
type Column struct {
	Name        string
	Description string
	Tests       []ColumnTest
}

// ColumnTestType enumerates the built-in declarative column tests.
type ColumnTestType string

const (
	TestUnique         ColumnTestType = "unique"
	TestNotNull        ColumnTestType = "not_null"
	TestAcceptedValues ColumnTestType = "accepted_values"
	TestRelationships  ColumnTestType = "relationships"
)

// ColumnTest is one declarative constraint on a column.
type ColumnTest struct {
	Type     ColumnTestType
	Values   []string // accepted_values
	To       string   // relationships: target model name
	Field    string   // relationships: target column
	Severity Severity
}

// Source declares an externally supplied group of raw tables.
type Source struct {
	Name     string
	Database string
	Schema   string
	Tables   []SourceTable
}

// SourceTable is one raw table within a source.
type SourceTable struct {
	Name        string
	Identifier  string // physical table name when it differs from Name
	Description string
	Columns     []Column
}

// Relation returns the fully qualified relation for a source table.
func (s *Source) Relation(table *SourceTable) string {
	identifier := table.Identifier
	if identifier == "" {
		identifier = table.Name
	}
	return fmt.Sprintf("%s.%s.%s", s.Database, s.Schema, identifier)
}

// SingularTest is an ad-hoc assertion query: any returned row is a failure.
type SingularTest struct {
	Name     string
	FilePath string
	RawSQL   string
	Severity Severity
}

// Target holds the default warehouse location models materialize into.
type Target struct {
	Database string `yaml:"database"`
	Schema   string `yaml:"schema"`
}

// LayerConfig carries per-layer overrides from project.yml.
type LayerConfig struct {
	Materialized Materialization `yaml:"materialized"`
	Schema       string          `yaml:"schema"`
}

// Schedule documents the external orchestrator cadence. The runner never
// acts on it; scheduling is owned by the invoking system.
type Schedule struct {
	Cron      string `yaml:"cron"`
	StartDate string `yaml:"start_date"`
}

// Project is a fully loaded pipeline project.
type Project struct {
	Name     string
	Root     string
	Target   Target
	Vars     map[string]interface{}
	Layers   map[Layer]LayerConfig
	Schedule Schedule

	Models  map[string]*Model
	Sources map[string]*Source
	Tests   []*SingularTest
}

// Model returns a model by name.
func (p *Project) Model(name string) (*Model, bool) {
	m, ok := p.Models[name]
	return m, ok
}

// Source returns a source by name.
func (p *Project) Source(name string) (*Source, bool) {
	s, ok := p.Sources[name]
	return s, ok
}

// SourceTable resolves a table within a named source.
func (p *Project) SourceTable(sourceName, tableName string) (*Source, *SourceTable, bool) {
	s, ok := p.Sources[sourceName]
	if !ok {
		return nil, nil, false
	}
	for i := range s.Tables {
		if s.Tables[i].Name == tableName {
			return s, &s.Tables[i], true
		}
	}
	return nil, nil, false
}

// Var returns a project variable with a fallback default.
func (p *Project) Var(name string, fallback interface{}) interface{} {
	if v, ok := p.Vars[name]; ok {
		return v
	}
	return fallback
}

// layerFromPath derives the layer from the model file's directory.
func layerFromPath(relPath string) Layer {
	parts := strings.Split(relPath, "/")
	for _, part := range parts {
		switch Layer(part) {
		case LayerStaging, LayerIntermediate, LayerMarts:
			return Layer(part)
		}
	}
	return LayerOther
}
