package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpace_QueriesOrder(t *testing.T) {
	space := NewSpace([]string{"榕江县", "从江县"}, []string{"停车场", "公共厕所", "充电站"})

	queries := space.Queries()
	require.Len(t, queries, 6)
	assert.Equal(t, 6, space.Len())

	want := []Query{
		{Region: "榕江县", Category: "停车场"},
		{Region: "榕江县", Category: "公共厕所"},
		{Region: "榕江县", Category: "充电站"},
		{Region: "从江县", Category: "停车场"},
		{Region: "从江县", Category: "公共厕所"},
		{Region: "从江县", Category: "充电站"},
	}
	assert.Equal(t, want, queries)
}

func TestSpace_Dedupe(t *testing.T) {
	space := NewSpace(
		[]string{" 榕江县", "榕江县", "", "从江县"},
		[]string{"停车场", "  ", "停车场 "},
	)

	assert.Equal(t, []string{"榕江县", "从江县"}, space.Regions())
	assert.Equal(t, []string{"停车场"}, space.Categories())

	seen := make(map[Query]bool)
	for _, q := range space.Queries() {
		assert.False(t, seen[q], "duplicate query %s", q)
		seen[q] = true
	}
	assert.Len(t, seen, 2)
}

func TestSpace_Empty(t *testing.T) {
	space := NewSpace(nil, []string{"停车场"})
	assert.Equal(t, 0, space.Len())
	assert.Empty(t, space.Queries())
}

func TestQuery_String(t *testing.T) {
	q := Query{Region: "榕江县", Category: "咖啡厅|休闲餐饮场所"}
	assert.Equal(t, "榕江县/咖啡厅|休闲餐饮场所", q.String())
}
