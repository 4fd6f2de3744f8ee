// Package query enumerates the (region, category) search space of a harvest run.
package query

import (
	"fmt"
	"strings"
)

// Query is one (region, category) search against the POI API.
type Query struct {
	Region   string
	Category string
}

// String returns "region/category", used as a log and metric label.
func (q Query) String() string {
	return fmt.Sprintf("%s/%s", q.Region, q.Category)
}

// Space is the Cartesian product of regions and categories.
//
// Queries are ordered regions outer, categories inner. Partitioning relies on
// this order, so it must stay stable.
type Space struct {
	regions    []string
	categories []string
}

// NewSpace builds a Space. Blank and duplicate entries are dropped, the first
// occurrence of a value keeps its position.
func NewSpace(regions, categories []string) *Space {
	return &Space{
		regions:    dedupe(regions),
		categories: dedupe(categories),
	}
}

// Regions returns the normalised region list.
func (s *Space) Regions() []string {
	return append([]string(nil), s.regions...)
}

// Categories returns the normalised category list.
func (s *Space) Categories() []string {
	return append([]string(nil), s.categories...)
}

// Len returns the number of queries in the space.
func (s *Space) Len() int {
	return len(s.regions) * len(s.categories)
}

// Queries returns every query exactly once.
func (s *Space) Queries() []Query {
	queries := make([]Query, 0, s.Len())
	for _, region := range s.regions {
		for _, category := range s.categories {
			queries = append(queries, Query{Region: region, Category: category})
		}
	}
	return queries
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
