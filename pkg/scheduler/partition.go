// Package scheduler fans the query space out over a fixed set of workers.
package scheduler

import "github.com/onemotre/MapPOI/pkg/query"

// Partition splits queries into at most groups contiguous chunks whose
// sizes differ by at most one. Every query lands in exactly one chunk and
// no chunk is empty.
func Partition(queries []query.Query, groups int) [][]query.Query {
	n := len(queries)
	if n == 0 {
		return nil
	}
	if groups <= 0 {
		groups = 1
	}
	if groups > n {
		groups = n
	}

	size, extra := n/groups, n%groups
	out := make([][]query.Query, 0, groups)
	start := 0
	for i := 0; i < groups; i++ {
		end := start + size
		if i < extra {
			end++
		}
		out = append(out, queries[start:end:end])
		start = end
	}
	return out
}
