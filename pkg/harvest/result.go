package harvest

import (
	"fmt"

	"github.com/onemotre/MapPOI/pkg/pagination"
	"github.com/onemotre/MapPOI/pkg/poi"
	"github.com/onemotre/MapPOI/pkg/query"
)

// TerminalState is how a query's harvest ended.
type TerminalState int

const (
	// StateExhausted means every available page was fetched.
	StateExhausted TerminalState = iota

	// StateAborted means the harvest stopped early; Result.Reason says why.
	StateAborted
)

// String implements fmt.Stringer.
func (s TerminalState) String() string {
	switch s {
	case StateExhausted:
		return "exhausted"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the outcome of harvesting one query.
// Records hold everything collected before the terminal state was reached,
// indexed 1..len(Records).
type Result struct {
	Query   query.Query
	Records []poi.Record
	State   TerminalState
	Reason  pagination.AbortReason

	// Pages is the number of successfully fetched pages.
	Pages int

	// ParseFailures is the number of malformed items skipped.
	ParseFailures int

	// TransportRetries is the amount of retry budget consumed.
	TransportRetries int

	// Congestion is the number of congestion responses waited out.
	Congestion int

	// CachedPages is the number of pages served from the page cache.
	CachedPages int

	// Err is the failure that aborted the query, nil when exhausted.
	Err error
}

// Exhausted reports whether the query completed normally.
func (r Result) Exhausted() bool {
	return r.State == StateExhausted
}

// Len returns the number of records.
func (r Result) Len() int {
	return len(r.Records)
}
