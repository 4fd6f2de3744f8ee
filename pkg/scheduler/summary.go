package scheduler

import (
	"time"

	"github.com/onemotre/MapPOI/pkg/harvest"
	"github.com/onemotre/MapPOI/pkg/pagination"
	"github.com/onemotre/MapPOI/pkg/query"
	"github.com/onemotre/MapPOI/pkg/ratelimit"
)

// QueryReport is the per-query line of a run summary.
type QueryReport struct {
	Query   query.Query
	Worker  int
	State   harvest.TerminalState
	Reason  pagination.AbortReason
	Records int
	Pages   int
	Retries int
	Err     error

	// Stored is false when the result never reached the sink.
	Stored bool
}

// WorkerReport describes one worker's group.
type WorkerReport struct {
	Worker  int
	Queries int

	// Err is set when a query of the group panicked.
	Err error

	// Abandoned lists the group's queries that produced no result: the one
	// that panicked and those not yet started when it did, in group order.
	Abandoned []query.Query
}

// StorageFailure is a result the sink could not persist.
type StorageFailure struct {
	Query query.Query
	Err   error
}

// Summary is the report of a whole run.
type Summary struct {
	Queries         []QueryReport
	Workers         []WorkerReport
	StorageFailures []StorageFailure

	// GatePeak is the highest number of concurrent in-flight requests.
	GatePeak int

	// Gate is the admission gate snapshot at the end of the run.
	Gate     ratelimit.GateStats
	Duration time.Duration
}

// Records returns the total number of records harvested.
func (s Summary) Records() int {
	total := 0
	for _, q := range s.Queries {
		total += q.Records
	}
	return total
}

// Counts returns the number of exhausted and aborted queries.
func (s Summary) Counts() (exhausted, aborted int) {
	for _, q := range s.Queries {
		if q.State == harvest.StateExhausted {
			exhausted++
		} else {
			aborted++
		}
	}
	return exhausted, aborted
}

// Abandoned returns every abandoned query across workers.
func (s Summary) Abandoned() []query.Query {
	var out []query.Query
	for _, w := range s.Workers {
		out = append(out, w.Abandoned...)
	}
	return out
}

// Failed reports whether any worker panicked or any result was not stored.
func (s Summary) Failed() bool {
	if len(s.StorageFailures) > 0 {
		return true
	}
	for _, w := range s.Workers {
		if w.Err != nil {
			return true
		}
	}
	return false
}
