package dag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"martflow/internal/dag"
	"martflow/pkg/errors"
)

func orderMartGraph() *dag.Graph {
	g := dag.New()
	g.AddNode("stg_tpch_orders", nil)
	g.AddNode("stg_tpch_line_items", nil)
	g.AddNode("int_order_items", []string{"stg_tpch_orders", "stg_tpch_line_items"})
	g.AddNode("int_order_items_summary", []string{"int_order_items"})
	g.AddNode("fct_orders", []string{"stg_tpch_orders", "int_order_items_summary"})
	return g
}

func TestTopoSort(t *testing.T) {
	order, err := orderMartGraph().TopoSort()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"stg_tpch_line_items",
		"stg_tpch_orders",
		"int_order_items",
		"int_order_items_summary",
		"fct_orders",
	}, order)
}

func TestTopoSortDeterministicTies(t *testing.T) {
	g := dag.New()
	g.AddNode("c", nil)
	g.AddNode("a", nil)
	g.AddNode("b", nil)

	order, err := g.TopoSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTopoSortCycle(t *testing.T) {
	g := dag.New()
	g.AddNode("a", []string{"b"})
	g.AddNode("b", []string{"a"})

	_, err := g.TopoSort()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDependencyCycle, errors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}

func TestTopoSortUnknownDependency(t *testing.T) {
	g := dag.New()
	g.AddNode("a", []string{"ghost"})

	_, err := g.TopoSort()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeModelNotFound, errors.GetErrorCode(err))
}

func TestDownstream(t *testing.T) {
	g := orderMartGraph()

	assert.Equal(t,
		[]string{"fct_orders", "int_order_items", "int_order_items_summary"},
		g.Downstream("stg_tpch_line_items"),
	)
	assert.Equal(t,
		[]string{"fct_orders"},
		g.Downstream("int_order_items_summary"),
	)
	assert.Empty(t, g.Downstream("fct_orders"))
}

func TestNodes(t *testing.T) {
	g := orderMartGraph()
	assert.Len(t, g.Nodes(), 5)
	assert.Equal(t, "fct_orders", g.Nodes()[0])
}
