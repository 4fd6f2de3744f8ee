package scheduler

import (
	"fmt"
	"testing"

	"github.com/onemotre/MapPOI/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeQueries(n int) []query.Query {
	out := make([]query.Query, n)
	for i := range out {
		out[i] = query.Query{Region: fmt.Sprintf("r%d", i/3), Category: fmt.Sprintf("c%d", i%3)}
	}
	return out
}

func TestPartition_CoversEveryQueryOnce(t *testing.T) {
	for _, n := range []int{1, 2, 7, 10, 24, 100} {
		for _, groups := range []int{1, 2, 3, 4, 7, 16, 200} {
			t.Run(fmt.Sprintf("n=%d/groups=%d", n, groups), func(t *testing.T) {
				queries := makeQueries(n)
				parts := Partition(queries, groups)

				wantGroups := groups
				if wantGroups > n {
					wantGroups = n
				}
				require.Len(t, parts, wantGroups)

				var flat []query.Query
				minSize, maxSize := n, 0
				for _, p := range parts {
					require.NotEmpty(t, p)
					flat = append(flat, p...)
					minSize = min(minSize, len(p))
					maxSize = max(maxSize, len(p))
				}
				assert.Equal(t, queries, flat, "chunks must be contiguous and in order")
				assert.LessOrEqual(t, maxSize-minSize, 1)
			})
		}
	}
}

func TestPartition_Edges(t *testing.T) {
	assert.Nil(t, Partition(nil, 4))

	parts := Partition(makeQueries(5), 0)
	require.Len(t, parts, 1)
	assert.Len(t, parts[0], 5)
}

func TestPartition_ChunksDoNotAlias(t *testing.T) {
	parts := Partition(makeQueries(4), 2)
	parts[0] = append(parts[0], query.Query{Region: "x", Category: "y"})
	assert.Equal(t, "r0", parts[1][0].Region)
	assert.Equal(t, "c2", parts[1][0].Category)
}
