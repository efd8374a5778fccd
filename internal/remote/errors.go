package remote

import "fmt"

// Call names one of the remote endpoints.
type Call string

const (
	CallSubmit   Call = "submit"
	CallRunModel Call = "run-model"
	CallPipeline Call = "run-full-pipeline"
)

// ErrorKind separates transport failures from unusable responses.
type ErrorKind string

const (
	// KindTransport means no response was received.
	KindTransport ErrorKind = "transport"
	// KindMalformed means the body could not be decoded.
	KindMalformed ErrorKind = "malformed"
	// KindStatus means the server answered with a non-2xx status.
	KindStatus ErrorKind = "status"
)

// CallError is a call-aware error with the raw response when one exists.
type CallError struct {
	Call       Call      `json:"call"`
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode,omitempty"`
	Body       string    `json:"body,omitempty"`
	Err        error     `json:"-"`
}

// Error formats call failures for logs and UI.
func (e *CallError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s %s: %s", e.Call, e.Kind, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status=%d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *CallError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
