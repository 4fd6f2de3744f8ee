package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/onemotre/MapPOI/pkg/harvest"
	"github.com/onemotre/MapPOI/pkg/query"
	"github.com/rs/zerolog"
)

// Format is a tabular file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatXLSX, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported file format %q", s)
	}
}

type encoder func(w io.Writer, res harvest.Result) error

// FileSink writes one file per result under a root directory.
type FileSink struct {
	root   string
	format Format
	encode encoder
	logger zerolog.Logger

	mu      sync.Mutex
	written map[string]query.Query
}

// NewFileSink creates a sink writing format files below root.
func NewFileSink(root string, format Format, logger zerolog.Logger) (*FileSink, error) {
	if root == "" {
		return nil, fmt.Errorf("output root is required")
	}

	var enc encoder
	switch format {
	case FormatXLSX:
		enc = writeXLSX
	case FormatCSV:
		enc = writeCSV
	default:
		return nil, fmt.Errorf("unsupported file format %q", format)
	}

	return &FileSink{
		root:    root,
		format:  format,
		encode:  enc,
		written: make(map[string]query.Query),
		logger:  logger.With().Str("component", "file-sink").Str("format", string(format)).Logger(),
	}, nil
}

// Path returns the artifact path of res.
func (s *FileSink) Path(res harvest.Result) string {
	return ArtifactPath(s.root, res.Query.Region, res.Query.Category, string(s.format))
}

// Store writes res to its artifact path, replacing any previous file.
// The file is written to a temporary name first and renamed into place.
// Partial results of aborted queries are written like complete ones.
// A path already written by a different query is refused.
func (s *FileSink) Store(_ context.Context, res harvest.Result) error {
	path := s.Path(res)
	if err := s.claim(path, res.Query); err != nil {
		return &Error{Path: path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &Error{Path: path, Err: fmt.Errorf("create directory: %w", err)}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".mappoi-*.tmp")
	if err != nil {
		return &Error{Path: path, Err: fmt.Errorf("create temp file: %w", err)}
	}
	defer os.Remove(tmp.Name())

	if err := s.encode(tmp, res); err != nil {
		tmp.Close()
		return &Error{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &Error{Path: path, Err: fmt.Errorf("close temp file: %w", err)}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &Error{Path: path, Err: fmt.Errorf("rename: %w", err)}
	}

	s.logger.Debug().
		Str("path", path).
		Int("records", res.Len()).
		Msg("Artifact written")
	return nil
}

func (s *FileSink) claim(path string, q query.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.written[path]; ok && prev != q {
		return fmt.Errorf("%w: already written by %s", ErrPathCollision, prev)
	}
	s.written[path] = q
	return nil
}
