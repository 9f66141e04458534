// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"martflow/internal/warehouse"
)

// MockWarehouse returns a warehouse service backed by sqlmock.
func MockWarehouse(t *testing.T) (*warehouse.Service, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	service := warehouse.NewServiceWithDB(db, warehouse.Config{
		Account:   "test123.us-east-1",
		Username:  "testuser",
		Password:  "testpass",
		Database:  "ANALYTICS",
		Schema:    "PUBLIC",
		Warehouse: "TEST_WH",
		Role:      "TRANSFORMER",
	})

	return service, mock, db
}

// WriteProjectFixture lays a small order-mart project out on disk and
// returns its root. The shape mirrors the shipped pipeline: two staging
// views, an intermediate join, an aggregate, and a fact table with checks.
func WriteProjectFixture(t *testing.T) string {
	t.Helper()

	root := t.TempDir()

	files := map[string]string{
		"project.yml": `name: order_mart_test
version: "1.0"
target:
  database: ANALYTICS
  schema: MARTS
vars:
  money_scale: 2
models:
  staging:
    materialized: view
    schema: STAGING
  intermediate:
    materialized: view
    schema: INTERMEDIATE
  marts:
    materialized: table
`,
		"models/staging/sources.yml": `sources:
  - name: tpch
    database: SNOWFLAKE_SAMPLE_DATA
    schema: TPCH_SF1
    tables:
      - name: orders
      - name: lineitem
`,
		"models/staging/stg_tpch_orders.sql": `select
    o_orderkey as order_key,
    o_custkey as customer_key,
    o_orderstatus as status_code,
    o_totalprice as total_price,
    o_orderdate as order_date
from {{ source "tpch" "orders" }}
`,
		"models/staging/stg_tpch_line_items.sql": `select
    {{ surrogate_key "l_orderkey" "l_linenumber" }} as order_item_key,
    l_orderkey as order_key,
    l_extendedprice as extended_price,
    l_discount as discount_percentage
from {{ source "tpch" "lineitem" }}
`,
		"models/intermediate/int_order_items.sql": `select
    line_items.order_item_key,
    orders.order_key,
    orders.order_date,
    line_items.extended_price,
    {{ discounted_amount "line_items.extended_price" "line_items.discount_percentage" }} as item_discount_amount
from {{ ref "stg_tpch_orders" }} as orders
inner join {{ ref "stg_tpch_line_items" }} as line_items
    on orders.order_key = line_items.order_key
`,
		"models/intermediate/int_order_items_summary.sql": `select
    order_key,
    sum(extended_price) as gross_item_sales_amount,
    sum(item_discount_amount) as item_discount_amount
from {{ ref "int_order_items" }}
group by order_key
`,
		"models/marts/fct_orders.sql": `select
    orders.order_key,
    orders.status_code,
    orders.order_date,
    summary.gross_item_sales_amount,
    summary.item_discount_amount
from {{ ref "stg_tpch_orders" }} as orders
inner join {{ ref "int_order_items_summary" }} as summary
    on orders.order_key = summary.order_key
`,
		"models/marts/schema.yml": `models:
  - name: fct_orders
    columns:
      - name: order_key
        tests:
          - unique
          - not_null
          - relationships:
              to: stg_tpch_orders
              field: order_key
              severity: warn
      - name: status_code
        tests:
          - accepted_values:
              values: ['P', 'O', 'F']
`,
		"tests/fct_orders_discount.sql": `select *
from {{ ref "fct_orders" }}
where item_discount_amount > 0
`,
	}

	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create fixture dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write fixture file %s: %v", rel, err)
		}
	}

	return root
}
