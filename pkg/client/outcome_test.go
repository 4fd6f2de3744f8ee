package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

var defaultCodes = map[string]struct{}{"10021": {}}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		reqErr    error
		wantKind  OutcomeKind
		wantClass ErrorClass
	}{
		{
			name:      "network error",
			reqErr:    errors.New("connection reset by peer"),
			wantKind:  OutcomeTransportFailure,
			wantClass: ErrorClassNetwork,
		},
		{
			name:      "deadline exceeded",
			reqErr:    fmt.Errorf("get: %w", context.DeadlineExceeded),
			wantKind:  OutcomeTransportFailure,
			wantClass: ErrorClassTimeout,
		},
		{
			name:      "server error",
			status:    500,
			wantKind:  OutcomeTransportFailure,
			wantClass: ErrorClassHTTPStatus,
		},
		{
			name:      "client error status",
			status:    404,
			wantKind:  OutcomeTransportFailure,
			wantClass: ErrorClassHTTPStatus,
		},
		{
			name:      "undecodable body",
			status:    200,
			body:      "<html>gateway</html>",
			wantKind:  OutcomeTransportFailure,
			wantClass: ErrorClassDecode,
		},
		{
			name:      "congestion",
			status:    200,
			body:      `{"status":"0","info":"CUQPS_HAS_EXCEEDED_THE_LIMIT","infocode":"10021"}`,
			wantKind:  OutcomeCongestion,
			wantClass: ErrorClassCongestion,
		},
		{
			name:      "domain error",
			status:    200,
			body:      `{"status":"0","info":"INVALID_USER_KEY","infocode":"10001"}`,
			wantKind:  OutcomeDomainFailure,
			wantClass: ErrorClassDomain,
		},
		{
			name:     "success",
			status:   200,
			body:     `{"status":"1","info":"OK","infocode":"10000","count":"0","pois":[]}`,
			wantKind: OutcomeSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := classify(tt.status, []byte(tt.body), tt.reqErr, defaultCodes)
			if out.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", out.Kind, tt.wantKind)
			}
			if out.Class() != tt.wantClass {
				t.Errorf("Class() = %q, want %q", out.Class(), tt.wantClass)
			}
			if out.OK() != (tt.wantKind == OutcomeSuccess) {
				t.Errorf("OK() = %v", out.OK())
			}
		})
	}
}

func TestClassify_CongestionCodeIsConfigurable(t *testing.T) {
	body := []byte(`{"status":"0","info":"CUQPS_HAS_EXCEEDED_THE_LIMIT","infocode":"10021"}`)

	out := classify(200, body, nil, map[string]struct{}{})
	if out.Kind != OutcomeDomainFailure {
		t.Errorf("Kind = %v, want %v", out.Kind, OutcomeDomainFailure)
	}
}

func TestOutcomeKind_String(t *testing.T) {
	tests := map[OutcomeKind]string{
		OutcomeSuccess:          "success",
		OutcomeTransportFailure: "transport_failure",
		OutcomeCongestion:       "congestion",
		OutcomeDomainFailure:    "domain_failure",
		OutcomeKind(9):          "outcome(9)",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{StatusCode: 200, ErrorClass: ErrorClassDomain, Code: "10001", Message: "INVALID_USER_KEY", Err: ErrDomain}

	want := "POI API domain error (status 200) infocode=10001: INVALID_USER_KEY: api reported an error"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrDomain) {
		t.Error("errors.Is(err, ErrDomain) = false")
	}
}
