package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/onemotre/MapPOI/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"榕江县", "榕江县"},
		{"停车场|加油站", "停车场_加油站"},
		{"a;b c", "a_b_c"},
		{"a/b\\c", "a_b_c"},
		{"tab\there", "tab_here"},
		{"", "_"},
		{".", "_"},
		{"..", "__"},
		{"..a", "..a"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeName(tt.in), "SafeName(%q)", tt.in)
	}
}

func TestArtifactPath(t *testing.T) {
	got := ArtifactPath("out", "黔东南 州", "停车场|路边停车场", "xlsx")
	want := filepath.Join("out", "黔东南_州", "黔东南_州_停车场_路边停车场.xlsx")
	assert.Equal(t, want, got)

	assert.Equal(t, filepath.Join("out", "a", "a_b.csv"), ArtifactPath("out", "a", "b", ".csv"))
}

func TestArtifactPath_StaysBelowRoot(t *testing.T) {
	root := filepath.Join("out", "run")
	for _, region := range []string{"..", ".", "../..", "", "a/../.."} {
		got := ArtifactPath(root, region, "..", "csv")
		rel, err := filepath.Rel(root, got)
		require.NoError(t, err)
		assert.False(t, strings.HasPrefix(rel, ".."), "region %q escaped root: %s", region, got)
		assert.Equal(t, 2, len(strings.Split(rel, string(filepath.Separator))), "region %q: %s", region, rel)
	}
}

func TestCheckPaths(t *testing.T) {
	ok := []query.Query{
		{Region: "榕江县", Category: "停车场"},
		{Region: "榕江县", Category: "加油站"},
		{Region: "从江县", Category: "停车场"},
	}
	require.NoError(t, CheckPaths(ok))
	require.NoError(t, CheckPaths(nil))

	clash := append(ok, query.Query{Region: "a b", Category: "c"}, query.Query{Region: "a_b", Category: "c"})
	err := CheckPaths(clash)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPathCollision))
	assert.Contains(t, err.Error(), "a b/c")
	assert.Contains(t, err.Error(), "a_b/c")
}
