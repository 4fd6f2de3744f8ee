package pagination

import "fmt"

// DefaultMaxPages is the page ceiling used when none is configured.
// AMap v5 rejects page_num above 100.
const DefaultMaxPages = 100

// State is the cursor state.
type State int

const (
	// StatePending means no page has been requested yet.
	StatePending State = iota

	// StateInProgress means page Page() is the next page to fetch.
	StateInProgress

	// StateExhausted means the query has no more pages.
	StateExhausted

	// StateAborted means the query stopped on an unrecoverable failure.
	StateAborted
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInProgress:
		return "in_progress"
	case StateExhausted:
		return "exhausted"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AbortReason explains why a cursor was aborted.
type AbortReason string

const (
	// AbortNone is the zero reason of a cursor that was not aborted.
	AbortNone AbortReason = ""

	// AbortTransport means the transport retry budget ran out.
	AbortTransport AbortReason = "transport"

	// AbortDomain means the API reported a non-retryable error.
	AbortDomain AbortReason = "domain"

	// AbortCancelled means the run was shut down before the query finished.
	AbortCancelled AbortReason = "cancelled"
)

// Cursor is the pagination state of one query.
type Cursor struct {
	state    State
	page     int
	maxPages int
	reason   AbortReason
}

// NewCursor creates a cursor positioned before page 1.
// maxPages <= 0 selects DefaultMaxPages.
func NewCursor(maxPages int) *Cursor {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Cursor{
		state:    StatePending,
		page:     1,
		maxPages: maxPages,
	}
}

// Next returns the page to fetch. ok is false once the cursor is terminal.
func (c *Cursor) Next() (page int, ok bool) {
	switch c.state {
	case StatePending:
		c.state = StateInProgress
		return c.page, true
	case StateInProgress:
		return c.page, true
	default:
		return 0, false
	}
}

// Advance records the reported item count of the current page.
// A non-zero count moves to the next page unless that would pass the ceiling.
func (c *Cursor) Advance(reportedCount int) {
	if c.Terminal() {
		return
	}
	if reportedCount <= 0 {
		c.state = StateExhausted
		return
	}
	if c.page+1 > c.maxPages {
		c.state = StateExhausted
		return
	}
	c.page++
	c.state = StateInProgress
}

// Abort moves the cursor to StateAborted.
func (c *Cursor) Abort(reason AbortReason) {
	if c.Terminal() {
		return
	}
	c.state = StateAborted
	c.reason = reason
}

// Terminal reports whether the cursor is exhausted or aborted.
func (c *Cursor) Terminal() bool {
	return c.state == StateExhausted || c.state == StateAborted
}

// State returns the current state.
func (c *Cursor) State() State {
	return c.state
}

// Page returns the current page number.
func (c *Cursor) Page() int {
	return c.page
}

// MaxPages returns the page ceiling.
func (c *Cursor) MaxPages() int {
	return c.maxPages
}

// Reason returns the abort reason, AbortNone unless aborted.
func (c *Cursor) Reason() AbortReason {
	return c.reason
}
