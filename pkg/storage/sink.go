// Package storage materializes harvest results: one artifact per
// (region, category) on disk, optionally mirrored into SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/onemotre/MapPOI/pkg/harvest"
)

// Sink persists finished query results. Implementations must be safe for
// concurrent use.
type Sink interface {
	Store(ctx context.Context, res harvest.Result) error
}

// Error is a failure to write one artifact.
type Error struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("store %s: %v", e.Path, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// MultiSink stores every result in each of its sinks, in order.
// A failing sink does not stop the others.
type MultiSink []Sink

// Store implements Sink.
func (m MultiSink) Store(ctx context.Context, res harvest.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Store(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard is a Sink that drops every result.
var Discard Sink = discard{}

type discard struct{}

func (discard) Store(context.Context, harvest.Result) error { return nil }
