package project_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"martflow/internal/project"
	"martflow/internal/testutil"
	"martflow/pkg/errors"
)

func TestLoadProject(t *testing.T) {
	root := testutil.WriteProjectFixture(t)

	p, err := project.Load(root)
	require.NoError(t, err)

	assert.Equal(t, "order_mart_test", p.Name)
	assert.Equal(t, "ANALYTICS", p.Target.Database)
	assert.Equal(t, "MARTS", p.Target.Schema)
	assert.Equal(t, 2, p.Vars["money_scale"])
	assert.Len(t, p.Models, 5)
}

func TestLoadLayerConfig(t *testing.T) {
	root := testutil.WriteProjectFixture(t)

	p, err := project.Load(root)
	require.NoError(t, err)

	tests := []struct {
		model        string
		layer        project.Layer
		materialized project.Materialization
		schema       string
	}{
		{"stg_tpch_orders", project.LayerStaging, project.MaterializationView, "STAGING"},
		{"stg_tpch_line_items", project.LayerStaging, project.MaterializationView, "STAGING"},
		{"int_order_items", project.LayerIntermediate, project.MaterializationView, "INTERMEDIATE"},
		{"int_order_items_summary", project.LayerIntermediate, project.MaterializationView, "INTERMEDIATE"},
		{"fct_orders", project.LayerMarts, project.MaterializationTable, "MARTS"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			m, ok := p.Model(tt.model)
			require.True(t, ok, "model %s not loaded", tt.model)
			assert.Equal(t, tt.layer, m.Layer)
			assert.Equal(t, tt.materialized, m.Materialized)
			assert.Equal(t, tt.schema, m.Schema)
			assert.Equal(t, "ANALYTICS", m.Database)
		})
	}
}

func TestLoadSources(t *testing.T) {
	root := testutil.WriteProjectFixture(t)

	p, err := project.Load(root)
	require.NoError(t, err)

	src, ok := p.Source("tpch")
	require.True(t, ok)
	assert.Equal(t, "SNOWFLAKE_SAMPLE_DATA", src.Database)
	assert.Equal(t, "TPCH_SF1", src.Schema)
	assert.Len(t, src.Tables, 2)

	_, tbl, ok := p.SourceTable("tpch", "orders")
	require.True(t, ok)
	assert.Equal(t, "SNOWFLAKE_SAMPLE_DATA.TPCH_SF1.orders", src.Relation(tbl))
}

func TestLoadColumnTests(t *testing.T) {
	root := testutil.WriteProjectFixture(t)

	p, err := project.Load(root)
	require.NoError(t, err)

	m, ok := p.Model("fct_orders")
	require.True(t, ok)
	require.Len(t, m.Columns, 2)

	orderKey := m.Columns[0]
	assert.Equal(t, "order_key", orderKey.Name)
	require.Len(t, orderKey.Tests, 3)

	assert.Equal(t, project.TestUnique, orderKey.Tests[0].Type)
	assert.Equal(t, project.SeverityError, orderKey.Tests[0].Severity)

	assert.Equal(t, project.TestNotNull, orderKey.Tests[1].Type)
	assert.Equal(t, project.SeverityError, orderKey.Tests[1].Severity)

	rel := orderKey.Tests[2]
	assert.Equal(t, project.TestRelationships, rel.Type)
	assert.Equal(t, "stg_tpch_orders", rel.To)
	assert.Equal(t, "order_key", rel.Field)
	assert.Equal(t, project.SeverityWarn, rel.Severity)

	status := m.Columns[1]
	assert.Equal(t, "status_code", status.Name)
	require.Len(t, status.Tests, 1)
	assert.Equal(t, project.TestAcceptedValues, status.Tests[0].Type)
	assert.Equal(t, []string{"P", "O", "F"}, status.Tests[0].Values)
	assert.Equal(t, project.SeverityError, status.Tests[0].Severity)
}

func TestLoadSingularTests(t *testing.T) {
	root := testutil.WriteProjectFixture(t)

	p, err := project.Load(root)
	require.NoError(t, err)

	require.Len(t, p.Tests, 1)
	assert.Equal(t, "fct_orders_discount", p.Tests[0].Name)
	assert.Equal(t, project.SeverityError, p.Tests[0].Severity)
	assert.Contains(t, p.Tests[0].RawSQL, "item_discount_amount > 0")
}

func TestLoadMissingProject(t *testing.T) {
	_, err := project.Load(t.TempDir())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeProjectNotFound, errors.GetErrorCode(err))
}

func TestModelRelation(t *testing.T) {
	m := &project.Model{Name: "fct_orders", Database: "ANALYTICS", Schema: "MARTS"}
	assert.Equal(t, "ANALYTICS.MARTS.fct_orders", m.Relation())
}
