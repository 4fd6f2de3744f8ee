package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/onemotre/MapPOI/pkg/query"
)

// ErrPathCollision is returned when two queries map to one artifact path.
var ErrPathCollision = errors.New("artifact path collision")

// ArtifactPath returns root/<region>/<region>_<category>.<ext> with both
// names made safe for the filesystem.
func ArtifactPath(root, region, category, ext string) string {
	dir := SafeName(region)
	name := dir + "_" + SafeName(category) + "." + strings.TrimPrefix(ext, ".")
	return filepath.Join(root, dir, name)
}

// SafeName replaces '|', ';', '/', '\' and whitespace with '_'. Names made
// only of dots, and the empty name, become underscores so the result is
// always a single path element below its parent.
func SafeName(s string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r == '|', r == ';', r == '/', r == '\\', unicode.IsSpace(r):
			return '_'
		default:
			return r
		}
	}, s)
	if strings.Trim(out, ".") == "" {
		return strings.Repeat("_", max(len(out), 1))
	}
	return out
}

// CheckPaths reports the first pair of distinct queries whose artifacts
// would share a path, such as "a b" and "a_b".
func CheckPaths(queries []query.Query) error {
	seen := make(map[string]query.Query, len(queries))
	for _, q := range queries {
		p := ArtifactPath("", q.Region, q.Category, "")
		if prev, ok := seen[p]; ok && prev != q {
			return fmt.Errorf("%w: %s and %s both write %s", ErrPathCollision, prev, q, p)
		}
		seen[p] = q
	}
	return nil
}
