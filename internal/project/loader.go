package project

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"martflow/internal/common"
	"martflow/pkg/errors"

	"gopkg.in/yaml.v3"
)

const projectFile = "project.yml"

// projectSpec mirrors project.yml on disk.
type projectSpec struct {
	Name       string                 `yaml:"name"`
	Version    string                 `yaml:"version"`
	ModelPaths []string               `yaml:"model-paths"`
	TestPaths  []string               `yaml:"test-paths"`
	Target     Target                 `yaml:"target"`
	Vars       map[string]interface{} `yaml:"vars"`
	Models     map[string]LayerConfig `yaml:"models"`
	Schedule   Schedule               `yaml:"schedule"`
}

// schemaFile mirrors the sources/models declaration YAML files.
type schemaFile struct {
	Sources []sourceSpec `yaml:"sources"`
	Models  []modelSpec  `yaml:"models"`
}

type sourceSpec struct {
	Name     string            `yaml:"name"`
	Database string            `yaml:"database"`
	Schema   string            `yaml:"schema"`
	Tables   []sourceTableSpec `yaml:"tables"`
}

type sourceTableSpec struct {
	Name        string       `yaml:"name"`
	Identifier  string       `yaml:"identifier"`
	Description string       `yaml:"description"`
	Columns     []columnSpec `yaml:"columns"`
}

type modelSpec struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Columns     []columnSpec `yaml:"columns"`
}

type columnSpec struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Tests       []testSpec `yaml:"tests"`
}

// testSpec accepts both the shorthand (`- unique`) and the parameterized
// (`- accepted_values: {...}`) forms used in schema files.
type testSpec struct {
	Type     string
	Values   []string
	To       string
	Field    string
	Severity string
}

type testParams struct {
	Values   []string `yaml:"values"`
	To       string   `yaml:"to"`
	Field    string   `yaml:"field"`
	Severity string   `yaml:"severity"`
}

func (t *testSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&t.Type)
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("test entry must have exactly one key")
		}
		if err := node.Content[0].Decode(&t.Type); err != nil {
			return err
		}
		var params testParams
		if err := node.Content[1].Decode(&params); err != nil {
			return err
		}
		t.Values = params.Values
		t.To = params.To
		t.Field = params.Field
		t.Severity = params.Severity
		return nil
	default:
		return fmt.Errorf("unsupported test entry node kind %d", node.Kind)
	}
}

// Load reads a pipeline project from disk: project.yml, model SQL files,
// schema/source declarations, and singular test queries.
func Load(root string) (*Project, error) {
	cleanedRoot, err := common.CleanPath(root)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeProjectInvalid, "Invalid project path")
	}

	specPath := filepath.Join(cleanedRoot, projectFile)
	data, err := os.ReadFile(specPath) // #nosec G304 - path is validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeProjectNotFound,
				fmt.Sprintf("No %s found in %s", projectFile, cleanedRoot)).
				WithSuggestions(
					"Point --project at a directory containing project.yml",
					"Run 'martflow repo sync' if the project lives in git",
				)
		}
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to read project file")
	}

	var spec projectSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeProjectInvalid, "Failed to parse project.yml")
	}
	if spec.Name == "" {
		return nil, errors.New(errors.ErrCodeProjectInvalid, "project.yml is missing a name")
	}
	if len(spec.ModelPaths) == 0 {
		spec.ModelPaths = []string{"models"}
	}
	if len(spec.TestPaths) == 0 {
		spec.TestPaths = []string{"tests"}
	}

	p := &Project{
		Name:     spec.Name,
		Root:     cleanedRoot,
		Target:   spec.Target,
		Vars:     spec.Vars,
		Schedule: spec.Schedule,
		Layers:   map[Layer]LayerConfig{},
		Models:   map[string]*Model{},
		Sources:  map[string]*Source{},
	}
	if p.Vars == nil {
		p.Vars = map[string]interface{}{}
	}
	for layer, cfg := range spec.Models {
		p.Layers[Layer(layer)] = cfg
	}

	// SQL files are loaded before schema declarations so column specs
	// always find their model.
	var sqlFiles, schemaFiles []modelFile
	for _, modelPath := range spec.ModelPaths {
		dir := filepath.Join(cleanedRoot, modelPath)
		sql, schemas, err := collectModelFiles(dir)
		if err != nil {
			return nil, err
		}
		sqlFiles = append(sqlFiles, sql...)
		schemaFiles = append(schemaFiles, schemas...)
	}
	for _, f := range sqlFiles {
		if err := p.addModel(f.path, f.rel); err != nil {
			return nil, err
		}
	}
	for _, f := range schemaFiles {
		if err := p.addSchemaFile(f.path); err != nil {
			return nil, err
		}
	}

	for _, testPath := range spec.TestPaths {
		dir := filepath.Join(cleanedRoot, testPath)
		if err := p.loadTestDir(dir); err != nil {
			return nil, err
		}
	}

	return p, nil
}

type modelFile struct {
	path string
	rel  string
}

func collectModelFiles(dir string) (sqlFiles, schemaFiles []modelFile, err error) {
	if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
		return nil, nil, nil
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}

		switch {
		case strings.HasSuffix(path, ".sql"):
			sqlFiles = append(sqlFiles, modelFile{path: path, rel: rel})
		case strings.HasSuffix(path, ".yml"), strings.HasSuffix(path, ".yaml"):
			schemaFiles = append(schemaFiles, modelFile{path: path, rel: rel})
		}
		return nil
	})
	return sqlFiles, schemaFiles, err
}

func (p *Project) addModel(path, rel string) error {
	data, err := os.ReadFile(path) // #nosec G304 - walked under validated root
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation,
			fmt.Sprintf("Failed to read model file %s", path))
	}

	name := strings.TrimSuffix(filepath.Base(path), ".sql")
	if _, exists := p.Models[name]; exists {
		return errors.New(errors.ErrCodeDuplicateModel,
			fmt.Sprintf("Model %s is defined more than once", name)).
			WithContext("file", path)
	}

	layer := layerFromPath(filepath.ToSlash(rel))
	model := &Model{
		Name:         name,
		Layer:        layer,
		FilePath:     path,
		RawSQL:       string(data),
		Materialized: MaterializationView,
		Database:     p.Target.Database,
		Schema:       p.Target.Schema,
	}

	if cfg, ok := p.Layers[layer]; ok {
		if cfg.Materialized != "" {
			model.Materialized = cfg.Materialized
		}
		if cfg.Schema != "" {
			model.Schema = cfg.Schema
		}
	}

	switch model.Materialized {
	case MaterializationView, MaterializationTable, MaterializationIncremental:
	default:
		return errors.New(errors.ErrCodeProjectInvalid,
			fmt.Sprintf("Unknown materialization %q for layer %s", model.Materialized, layer))
	}

	p.Models[name] = model
	return nil
}

func (p *Project) addSchemaFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 - walked under validated root
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation,
			fmt.Sprintf("Failed to read schema file %s", path))
	}

	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return errors.Wrap(err, errors.ErrCodeProjectInvalid,
			fmt.Sprintf("Failed to parse schema file %s", path))
	}

	for _, src := range file.Sources {
		source := &Source{
			Name:     src.Name,
			Database: src.Database,
			Schema:   src.Schema,
		}
		for _, tbl := range src.Tables {
			source.Tables = append(source.Tables, SourceTable{
				Name:        tbl.Name,
				Identifier:  tbl.Identifier,
				Description: tbl.Description,
				Columns:     convertColumns(tbl.Columns),
			})
		}
		p.Sources[source.Name] = source
	}

	for _, spec := range file.Models {
		model, ok := p.Models[spec.Name]
		if !ok {
			return errors.New(errors.ErrCodeModelNotFound,
				fmt.Sprintf("Schema file %s declares unknown model %s", path, spec.Name)).
				WithSuggestions("Every schema entry needs a matching <name>.sql model file")
		}
		model.Description = spec.Description
		model.Columns = convertColumns(spec.Columns)
	}

	return nil
}

func convertColumns(specs []columnSpec) []Column {
	columns := make([]Column, 0, len(specs))
	for _, cs := range specs {
		col := Column{Name: cs.Name, Description: cs.Description}
		for _, ts := range cs.Tests {
			severity := SeverityError
			if ts.Severity != "" {
				severity = Severity(ts.Severity)
			}
			col.Tests = append(col.Tests, ColumnTest{
				Type:     ColumnTestType(ts.Type),
				Values:   ts.Values,
				To:       ts.To,
				Field:    ts.Field,
				Severity: severity,
			})
		}
		columns = append(columns, col)
	}
	return columns
}

func (p *Project) loadTestDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	entries, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to list test files")
	}

	for _, path := range entries {
		data, err := os.ReadFile(path) // #nosec G304 - globbed under validated root
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeFileOperation,
				fmt.Sprintf("Failed to read test file %s", path))
		}
		p.Tests = append(p.Tests, &SingularTest{
			Name:     strings.TrimSuffix(filepath.Base(path), ".sql"),
			FilePath: path,
			RawSQL:   string(data),
			Severity: SeverityError,
		})
	}

	return nil
}
