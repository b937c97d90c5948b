package envtools

import (
	"fmt"
	"strings"
)

// ErrorCode defines string error
type ErrorCode string

// Error returns error message
func (e ErrorCode) Error() string {
	return string(e)
}

const (
	// ErrUnsupportedEnvironment indicates that the cluster could not be identified
	ErrUnsupportedEnvironment = ErrorCode("unsupported environment")
	// ErrParse indicates that the expected pattern was not found in a command output
	ErrParse = ErrorCode("unable to parse command output")
	// ErrMissingContext indicates a job scoped query made outside of a SLURM job
	ErrMissingContext = ErrorCode("not running inside a SLURM job")
)

// Error provides lookup failure details
type Error struct {
	Op     string
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	sb := new(strings.Builder)
	sb.WriteString(e.Op)
	if e.Reason != "" {
		sb.WriteString(": " + e.Reason)
	}
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(" (%s)", e.Cause.Error()))
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(op string, cause error, reasonFormat string, args ...any) *Error {
	return &Error{
		Op:     op,
		Reason: fmt.Sprintf(reasonFormat, args...),
		Cause:  cause,
	}
}
