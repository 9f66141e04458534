package materialize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"martflow/internal/materialize"
	"martflow/internal/project"
	"martflow/pkg/errors"
)

func model(materialized project.Materialization) *project.Model {
	return &project.Model{
		Name:         "fct_orders",
		Database:     "ANALYTICS",
		Schema:       "MARTS",
		Materialized: materialized,
	}
}

func TestRenderView(t *testing.T) {
	sql, err := materialize.Render(model(project.MaterializationView), "select 1")
	require.NoError(t, err)
	assert.Equal(t, "CREATE OR REPLACE VIEW ANALYTICS.MARTS.fct_orders AS\nselect 1", sql)
}

func TestRenderTable(t *testing.T) {
	sql, err := materialize.Render(model(project.MaterializationTable), "select 1")
	require.NoError(t, err)
	assert.Equal(t, "CREATE OR REPLACE TABLE ANALYTICS.MARTS.fct_orders AS\nselect 1", sql)
}

func TestRenderIncremental(t *testing.T) {
	sql, err := materialize.Render(model(project.MaterializationIncremental), "select 1")
	require.NoError(t, err)

	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS ANALYTICS.MARTS.fct_orders AS")
	assert.Contains(t, sql, "WHERE 1 = 0")
	assert.Contains(t, sql, "INSERT INTO ANALYTICS.MARTS.fct_orders")
}

func TestRenderUnknownMaterialization(t *testing.T) {
	_, err := materialize.Render(model("ephemeral"), "select 1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMaterialization, errors.GetErrorCode(err))
}
