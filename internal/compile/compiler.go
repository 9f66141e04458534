// Package compile renders model templates into executable SQL. Templates use
// Go text/template syntax; ref and source calls both resolve relations and
// record the dependency edges the DAG is built from.
package compile

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"

	"martflow/internal/project"
	"martflow/pkg/errors"
)

// Compiled is the result of rendering one model or test query.
type Compiled struct {
	Name      string
	SQL       string
	DependsOn []string // upstream model names
	Sources   []string // "source.table" references
}

// Compiler renders templates against a loaded project.
type Compiler struct {
	project *project.Project
}

// New creates a compiler for a project.
func New(p *project.Project) *Compiler {
	return &Compiler{project: p}
}

// recorder captures dependencies discovered while rendering.
type recorder struct {
	refs    map[string]struct{}
	sources map[string]struct{}
}

func newRecorder() *recorder {
	return &recorder{
		refs:    map[string]struct{}{},
		sources: map[string]struct{}{},
	}
}

func (r *recorder) refNames() []string {
	names := make([]string, 0, len(r.refs))
	for name := range r.refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *recorder) sourceNames() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CompileModel renders a model's SQL.
func (c *Compiler) CompileModel(m *project.Model) (*Compiled, error) {
	return c.compile(m.Name, m.RawSQL)
}

// CompileQuery renders a standalone query such as a singular test.
func (c *Compiler) CompileQuery(name, rawSQL string) (*Compiled, error) {
	return c.compile(name, rawSQL)
}

// CompileAll renders every model in the project.
func (c *Compiler) CompileAll() (map[string]*Compiled, error) {
	compiled := make(map[string]*Compiled, len(c.project.Models))
	for name, m := range c.project.Models {
		out, err := c.CompileModel(m)
		if err != nil {
			return nil, err
		}
		compiled[name] = out
	}
	return compiled, nil
}

func (c *Compiler) compile(name, rawSQL string) (*Compiled, error) {
	rec := newRecorder()

	tmpl, err := template.New(name).Funcs(c.funcMap(name, rec)).Parse(rawSQL)
	if err != nil {
		return nil, errors.CompileError(name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, nil); err != nil {
		return nil, errors.CompileError(name, err)
	}

	return &Compiled{
		Name:      name,
		SQL:       buf.String(),
		DependsOn: rec.refNames(),
		Sources:   rec.sourceNames(),
	}, nil
}

func (c *Compiler) funcMap(current string, rec *recorder) template.FuncMap {
	return template.FuncMap{
		"ref": func(name string) (string, error) {
			if name == current {
				return "", fmt.Errorf("model %s references itself", name)
			}
			m, ok := c.project.Model(name)
			if !ok {
				return "", fmt.Errorf("ref to unknown model %q", name)
			}
			rec.refs[name] = struct{}{}
			return m.Relation(), nil
		},
		"source": func(sourceName, tableName string) (string, error) {
			src, tbl, ok := c.project.SourceTable(sourceName, tableName)
			if !ok {
				return "", fmt.Errorf("source %q table %q is not declared", sourceName, tableName)
			}
			rec.sources[sourceName+"."+tableName] = struct{}{}
			return src.Relation(tbl), nil
		},
		"var":               c.varFunc,
		"discounted_amount": c.discountedAmount,
		"surrogate_key":     surrogateKey,
	}
}

func (c *Compiler) varFunc(name string, fallback ...interface{}) (interface{}, error) {
	if v, ok := c.project.Vars[name]; ok {
		return v, nil
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return nil, fmt.Errorf("var %q is not defined and has no default", name)
}

// discountedAmount renders the pricing expression: the negated discount value
// of a line, rounded to a fixed scale. Scale comes from the optional argument,
// then the money_scale project var, then the default of 2.
func (c *Compiler) discountedAmount(extendedPrice, discountPercentage string, scale ...int) string {
	s := 2
	if v, ok := c.project.Vars["money_scale"]; ok {
		if n, ok := toInt(v); ok {
			s = n
		}
	}
	if len(scale) > 0 {
		s = scale[0]
	}
	return fmt.Sprintf("round(-1 * %s * %s, %d)", extendedPrice, discountPercentage, s)
}

// surrogateKey renders a deterministic hash key over the given columns.
func surrogateKey(columns ...string) string {
	var buf bytes.Buffer
	buf.WriteString("md5(concat_ws('-'")
	for _, col := range columns {
		fmt.Fprintf(&buf, ", coalesce(cast(%s as varchar), '')", col)
	}
	buf.WriteString("))")
	return buf.String()
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
