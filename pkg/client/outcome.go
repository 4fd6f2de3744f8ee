package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/onemotre/MapPOI/pkg/poi"
)

// OutcomeKind tags a fetch outcome.
type OutcomeKind int

const (
	// OutcomeSuccess carries a decoded page with status "1".
	OutcomeSuccess OutcomeKind = iota

	// OutcomeTransportFailure covers network errors, timeouts, non-2xx
	// statuses and undecodable bodies.
	OutcomeTransportFailure

	// OutcomeCongestion is the API's rate-limit error code.
	OutcomeCongestion

	// OutcomeDomainFailure is any other API-reported error.
	OutcomeDomainFailure
)

// String implements fmt.Stringer.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransportFailure:
		return "transport_failure"
	case OutcomeCongestion:
		return "congestion"
	case OutcomeDomainFailure:
		return "domain_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of fetching one page.
// Classification is a pure value; callers decide how to log it.
type Outcome struct {
	Kind OutcomeKind

	// Page is set on success.
	Page *poi.PageResponse

	// Err is an *APIError on failure outcomes.
	Err error

	// Attempts is the number of HTTP requests issued for this page.
	Attempts int

	// Congestion is the number of congestion responses absorbed for this page.
	Congestion int

	// Cached reports that the page was served from the page cache.
	Cached bool
}

// OK reports a successful outcome.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// Class returns the error class of a failure outcome, or "".
func (o Outcome) Class() ErrorClass {
	var apiErr *APIError
	if errors.As(o.Err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}

// Cancelled reports whether the outcome ended on run cancellation.
func (o Outcome) Cancelled() bool {
	return errors.Is(o.Err, ErrCancelled)
}

// classify turns one HTTP exchange into an outcome.
func classify(statusCode int, body []byte, reqErr error, congestionCodes map[string]struct{}) Outcome {
	if reqErr != nil {
		class := ErrorClassNetwork
		var netErr net.Error
		if errors.Is(reqErr, context.DeadlineExceeded) || (errors.As(reqErr, &netErr) && netErr.Timeout()) {
			class = ErrorClassTimeout
		}
		return Outcome{
			Kind: OutcomeTransportFailure,
			Err:  &APIError{ErrorClass: class, Err: reqErr},
		}
	}

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return Outcome{
			Kind: OutcomeTransportFailure,
			Err: &APIError{
				StatusCode: statusCode,
				ErrorClass: ErrorClassHTTPStatus,
				Message:    http.StatusText(statusCode),
			},
		}
	}

	page, err := poi.DecodePage(body)
	if err != nil {
		return Outcome{
			Kind: OutcomeTransportFailure,
			Err:  &APIError{StatusCode: statusCode, ErrorClass: ErrorClassDecode, Err: err},
		}
	}

	if !page.Success() {
		if _, ok := congestionCodes[page.InfoCode]; ok {
			return Outcome{
				Kind: OutcomeCongestion,
				Page: page,
				Err: &APIError{
					StatusCode: statusCode,
					ErrorClass: ErrorClassCongestion,
					Code:       page.InfoCode,
					Message:    page.Info,
					Err:        ErrCongestion,
				},
			}
		}
		return Outcome{
			Kind: OutcomeDomainFailure,
			Page: page,
			Err: &APIError{
				StatusCode: statusCode,
				ErrorClass: ErrorClassDomain,
				Code:       page.InfoCode,
				Message:    page.Info,
				Err:        ErrDomain,
			},
		}
	}

	return Outcome{Kind: OutcomeSuccess, Page: page}
}
