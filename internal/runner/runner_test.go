package runner_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"martflow/internal/check"
	"martflow/internal/compile"
	"martflow/internal/project"
	"martflow/internal/runner"
	"martflow/internal/testutil"
)

func loadFixture(t *testing.T) *project.Project {
	t.Helper()
	p, err := project.Load(testutil.WriteProjectFixture(t))
	require.NoError(t, err)
	return p
}

// The shipped order_mart project has to stay loadable and plannable; a typo
// in its SQL or YAML assets should fail here, not at a customer site.
func TestShippedPipelinePlans(t *testing.T) {
	p, err := project.Load(filepath.Join("..", "..", "pipeline"))
	require.NoError(t, err)

	assert.Equal(t, "order_mart", p.Name)
	assert.Equal(t, "0 6 * * *", p.Schedule.Cron)
	assert.Equal(t, 2, p.Vars["money_scale"])

	r := runner.New(p, nil, runner.Options{DryRun: true})
	compiled, order, err := r.Plan()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"stg_tpch_line_items",
		"stg_tpch_orders",
		"int_order_items",
		"int_order_items_summary",
		"fct_orders",
	}, order)

	assert.Contains(t, compiled["int_order_items"].SQL,
		"round(-1 * line_items.extended_price * line_items.discount_percentage, 2)")
	assert.Contains(t, compiled["fct_orders"].SQL, "ANALYTICS.INTERMEDIATE.int_order_items_summary")
	assert.Equal(t, []string{"tpch.lineitem"}, compiled["stg_tpch_line_items"].Sources)

	fct, ok := p.Model("fct_orders")
	require.True(t, ok)
	assert.Equal(t, project.MaterializationTable, fct.Materialized)

	rel := fct.Columns[0].Tests[2]
	assert.Equal(t, project.TestRelationships, rel.Type)
	assert.Equal(t, project.SeverityWarn, rel.Severity)

	checks, err := check.ForProject(p, compile.New(p))
	require.NoError(t, err)
	assert.Len(t, checks, 6)
	require.Len(t, p.Tests, 2)
	assert.Equal(t, "fct_orders_date_valid", p.Tests[0].Name)
	assert.Equal(t, "fct_orders_discount", p.Tests[1].Name)
}

func TestPlanOrder(t *testing.T) {
	p := loadFixture(t)
	r := runner.New(p, nil, runner.Options{DryRun: true})

	compiled, order, err := r.Plan()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"stg_tpch_line_items",
		"stg_tpch_orders",
		"int_order_items",
		"int_order_items_summary",
		"fct_orders",
	}, order)

	assert.Equal(t, []string{"stg_tpch_line_items", "stg_tpch_orders"},
		compiled["int_order_items"].DependsOn)
	assert.Equal(t, []string{"int_order_items_summary", "stg_tpch_orders"},
		compiled["fct_orders"].DependsOn)
	assert.Equal(t, []string{"tpch.orders"}, compiled["stg_tpch_orders"].Sources)
}

func TestPlanCompilesMacro(t *testing.T) {
	p := loadFixture(t)
	r := runner.New(p, nil, runner.Options{DryRun: true})

	compiled, _, err := r.Plan()
	require.NoError(t, err)

	assert.Contains(t, compiled["int_order_items"].SQL,
		"round(-1 * line_items.extended_price * line_items.discount_percentage, 2)")
	assert.Contains(t, compiled["stg_tpch_line_items"].SQL,
		"md5(concat_ws('-', coalesce(cast(l_orderkey as varchar), ''), coalesce(cast(l_linenumber as varchar), '')))")
}

func TestRunMaterializesInOrder(t *testing.T) {
	p := loadFixture(t)
	service, mock, db := testutil.MockWarehouse(t)
	defer db.Close()

	mock.ExpectExec(`CREATE OR REPLACE VIEW ANALYTICS\.STAGING\.stg_tpch_line_items`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE OR REPLACE VIEW ANALYTICS\.STAGING\.stg_tpch_orders`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE OR REPLACE VIEW ANALYTICS\.INTERMEDIATE\.int_order_items AS`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE OR REPLACE VIEW ANALYTICS\.INTERMEDIATE\.int_order_items_summary`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE OR REPLACE TABLE ANALYTICS\.MARTS\.fct_orders`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	r := runner.New(p, service, runner.Options{})
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Failed())
	success, failed, skipped := result.Counts()
	assert.Equal(t, 5, success)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 0, skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSkipsDownstreamOnFailure(t *testing.T) {
	p := loadFixture(t)
	service, mock, db := testutil.MockWarehouse(t)
	defer db.Close()

	mock.ExpectExec(`stg_tpch_line_items`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`stg_tpch_orders`).
		WillReturnError(fmt.Errorf("SQL compilation error: object 'ORDERS' does not exist"))

	r := runner.New(p, service, runner.Options{})
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Failed())
	success, failed, skipped := result.Counts()
	assert.Equal(t, 1, success)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 3, skipped)

	byName := map[string]runner.Status{}
	for _, m := range result.Models {
		byName[m.Name] = m.Status
	}
	assert.Equal(t, runner.StatusSuccess, byName["stg_tpch_line_items"])
	assert.Equal(t, runner.StatusFailed, byName["stg_tpch_orders"])
	assert.Equal(t, runner.StatusSkipped, byName["int_order_items"])
	assert.Equal(t, runner.StatusSkipped, byName["int_order_items_summary"])
	assert.Equal(t, runner.StatusSkipped, byName["fct_orders"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunDry(t *testing.T) {
	p := loadFixture(t)

	r := runner.New(p, nil, runner.Options{DryRun: true})
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Failed())
	success, _, _ := result.Counts()
	assert.Equal(t, 5, success)

	for _, m := range result.Models {
		assert.NotEmpty(t, m.SQL)
	}
}

func TestTestWarnSeverityDoesNotFail(t *testing.T) {
	p := loadFixture(t)
	service, mock, db := testutil.MockWarehouse(t)
	defer db.Close()

	// unique, not_null pass; relationships (severity warn) finds 3 strays;
	// accepted_values and the singular test pass.
	countRows := func(n int64) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"count"}).AddRow(n)
	}
	mock.ExpectQuery(`SELECT count\(\*\)`).WillReturnRows(countRows(0))
	mock.ExpectQuery(`SELECT count\(\*\)`).WillReturnRows(countRows(0))
	mock.ExpectQuery(`SELECT count\(\*\)`).WillReturnRows(countRows(3))
	mock.ExpectQuery(`SELECT count\(\*\)`).WillReturnRows(countRows(0))
	mock.ExpectQuery(`SELECT count\(\*\)`).WillReturnRows(countRows(0))

	r := runner.New(p, service, runner.Options{})
	result, err := r.Test(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Failed())
	passed, warned, failed := result.CheckCounts()
	assert.Equal(t, 4, passed)
	assert.Equal(t, 1, warned)
	assert.Equal(t, 0, failed)

	warnResult := result.Checks[2]
	assert.Equal(t, "relationships_fct_orders_order_key", warnResult.Check.Name)
	assert.Equal(t, runner.CheckWarned, warnResult.Status)
	assert.Equal(t, int64(3), warnResult.Failures)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTestErrorSeverityFails(t *testing.T) {
	p := loadFixture(t)
	service, mock, db := testutil.MockWarehouse(t)
	defer db.Close()

	countRows := func(n int64) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"count"}).AddRow(n)
	}
	mock.ExpectQuery(`SELECT count\(\*\)`).WillReturnRows(countRows(0))
	mock.ExpectQuery(`SELECT count\(\*\)`).WillReturnRows(countRows(2))
	mock.ExpectQuery(`SELECT count\(\*\)`).WillReturnRows(countRows(0))
	mock.ExpectQuery(`SELECT count\(\*\)`).WillReturnRows(countRows(0))
	mock.ExpectQuery(`SELECT count\(\*\)`).WillReturnRows(countRows(0))

	r := runner.New(p, service, runner.Options{})
	result, err := r.Test(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Failed())
	assert.Equal(t, runner.CheckFailed, result.Checks[1].Status)
	assert.Equal(t, int64(2), result.Checks[1].Failures)
}

func TestTestQueryError(t *testing.T) {
	p := loadFixture(t)
	service, mock, db := testutil.MockWarehouse(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT count\(\*\)`).WillReturnError(fmt.Errorf("compute unavailable"))
	for i := 0; i < 4; i++ {
		mock.ExpectQuery(`SELECT count\(\*\)`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	}

	r := runner.New(p, service, runner.Options{})
	result, err := r.Test(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Failed())
	assert.Equal(t, runner.CheckErrored, result.Checks[0].Status)
	assert.Error(t, result.Checks[0].Err)
}

func TestTestDrySkipsChecks(t *testing.T) {
	p := loadFixture(t)

	r := runner.New(p, nil, runner.Options{DryRun: true})
	result, err := r.Test(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Checks, 5)
	for _, c := range result.Checks {
		assert.Equal(t, runner.CheckSkipped, c.Status)
	}
}

func TestBuildSkipsChecksAfterModelFailure(t *testing.T) {
	p := loadFixture(t)
	service, mock, db := testutil.MockWarehouse(t)
	defer db.Close()

	mock.ExpectExec(`stg_tpch_line_items`).
		WillReturnError(fmt.Errorf("compute unavailable"))
	mock.ExpectExec(`stg_tpch_orders`).WillReturnResult(sqlmock.NewResult(0, 0))

	r := runner.New(p, service, runner.Options{})
	result, err := r.Build(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Failed())
	assert.Empty(t, result.Checks)
}

func TestRunFailFastHaltsRemaining(t *testing.T) {
	p := loadFixture(t)
	service, mock, db := testutil.MockWarehouse(t)
	defer db.Close()

	mock.ExpectExec(`stg_tpch_line_items`).
		WillReturnError(fmt.Errorf("compute unavailable"))

	r := runner.New(p, service, runner.Options{FailFast: true})
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	success, failed, skipped := result.Counts()
	assert.Equal(t, 0, success)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 4, skipped)
}
