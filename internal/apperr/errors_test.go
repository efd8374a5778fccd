package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"pipeline-console/internal/remote"
)

// TestHTTPStatusMapsCodes verifies code to status mapping through wrapping.
func TestHTTPStatusMapsCodes(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidArgument: http.StatusBadRequest,
		CodeNotFound:        http.StatusNotFound,
		CodeConflict:        http.StatusConflict,
		CodeUnavailable:     http.StatusBadGateway,
		CodeTimeout:         http.StatusGatewayTimeout,
		CodeInternal:        http.StatusInternalServerError,
	}
	for code, want := range cases {
		err := fmt.Errorf("wrapped: %w", E(code, "Op", "msg", nil))
		if got := HTTPStatus(err); got != want {
			t.Fatalf("HTTPStatus(%s) = %d, want %d", code, got, want)
		}
	}
	if got := HTTPStatus(errors.New("plain")); got != http.StatusInternalServerError {
		t.Fatalf("plain error status = %d", got)
	}
}

// TestAppErrorFormatting checks message composition and unwrapping.
func TestAppErrorFormatting(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := E(CodeUnavailable, "App.SubmitForm", "model server unreachable", cause)

	if got := err.Error(); got != "App.SubmitForm: model server unreachable: dial tcp: refused" {
		t.Fatalf("Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to reach cause")
	}
	if CodeOf(err) != CodeUnavailable || CodeOf(cause) != CodeInternal {
		t.Fatal("CodeOf mismatch")
	}
	if got := E(CodeInternal, "", "only message", nil).Error(); got != "only message" {
		t.Fatalf("Error() = %q", got)
	}
	if got := E(CodeConflict, "", "", nil).Error(); got != "CONFLICT" {
		t.Fatalf("Error() = %q", got)
	}
}

// timeoutErr reports itself as a network timeout.
type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

// TestFromCallClassifiesFailures maps each call failure kind to a code and safe message.
func TestFromCallClassifiesFailures(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		code    Code
		message string
	}{
		{
			name:    "transport",
			err:     &remote.CallError{Call: remote.CallSubmit, Kind: remote.KindTransport, Err: errors.New("connection refused")},
			code:    CodeUnavailable,
			message: "model server unreachable",
		},
		{
			name:    "timeout",
			err:     &remote.CallError{Call: remote.CallSubmit, Kind: remote.KindTransport, Err: &url.Error{Op: "Post", URL: "http://x", Err: timeoutErr{}}},
			code:    CodeTimeout,
			message: "model server timed out",
		},
		{
			name:    "status",
			err:     &remote.CallError{Call: remote.CallSubmit, Kind: remote.KindStatus, StatusCode: 422},
			code:    CodeUnavailable,
			message: "model server rejected the request (status 422)",
		},
		{
			name:    "malformed",
			err:     &remote.CallError{Call: remote.CallPipeline, Kind: remote.KindMalformed},
			code:    CodeUnavailable,
			message: "pipeline backend returned an unreadable response",
		},
		{
			name:    "not a call error",
			err:     errors.New("boom"),
			code:    CodeInternal,
			message: "unexpected error",
		},
	}

	for _, tc := range cases {
		err := FromCall("App.SubmitForm", tc.err)
		var ae *AppError
		if !errors.As(err, &ae) {
			t.Fatalf("%s: not an AppError: %v", tc.name, err)
		}
		if ae.Code != tc.code || ae.Message != tc.message {
			t.Fatalf("%s: got %s %q, want %s %q", tc.name, ae.Code, ae.Message, tc.code, tc.message)
		}
		if !errors.Is(err, tc.err) {
			t.Fatalf("%s: cause not wrapped", tc.name)
		}
	}
}
