package errors

import (
	"fmt"
	"sort"
	"strings"
)

// InternalError is implemented by package-local error types that know how
// to convert themselves into a coded *Error.
type InternalError interface {
	error
	Transform() *Error
}

// IsPipelineError reports whether err is a coded *Error (not unwrapped)
func IsPipelineError(err error) bool {
	_, ok := err.(*Error)
	return ok
}

// HasCode reports whether any error in err's chain carries code
func HasCode(err error, code Code) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code.Equals(code) {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// GetContext extracts context from a coded error
func GetContext(err error) map[string]string {
	if e, ok := err.(*Error); ok {
		return e.Context
	}
	return nil
}

// GetCode returns the code string of a coded error, "" otherwise
func GetCode(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Code.String()
	}
	return ""
}

// FormatError renders err for human-readable logs
func FormatError(err error) string {
	e, ok := err.(*Error)
	if !ok {
		return err.Error()
	}

	parts := []string{
		fmt.Sprintf("Code: %s", e.Code),
		fmt.Sprintf("Message: %s", e.Message),
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts = append(parts, "Context:")
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("  %s: %s", k, e.Context[k]))
		}
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause: %v", e.Cause))
	}

	return strings.Join(parts, "\n")
}

// AsError converts any error to the coded format:
//   - InternalError values are converted with Transform()
//   - *Error values are returned as-is
//   - anything else is wrapped under common.internal
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	if ie, ok := err.(InternalError); ok {
		return ie.Transform()
	}

	if e, ok := err.(*Error); ok {
		return e
	}

	return New(CommonInternal, err.Error(), err)
}
