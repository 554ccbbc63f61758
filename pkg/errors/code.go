package errors

import (
	stderrors "errors"
	"regexp"
	"strings"
)

// Code is a validated "package.name" error code. The package half names the
// pipeline component that raised the error, so log lines and exit messages
// can be filtered by component.
type Code struct {
	pkg  string
	name string
}

// CommonInternal tags errors that were not raised with a component code
var CommonInternal = MustNewCode("common.internal")

var (
	segment = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

	errCodeFormat = stderrors.New("code must be 'package.name' in lowercase letters, digits and underscores")
	errCodeName   = stderrors.New("code must not repeat 'err' or 'error'; the code is already an error")
)

// NewCode parses s into a Code
func NewCode(s string) (Code, error) {
	pkg, name, ok := strings.Cut(s, ".")
	if !ok || !segment.MatchString(pkg) || !segment.MatchString(name) {
		return Code{}, &codeError{code: s, cause: errCodeFormat}
	}
	if strings.Contains(s, "err") {
		return Code{}, &codeError{code: s, cause: errCodeName}
	}
	return Code{pkg: pkg, name: name}, nil
}

// MustNewCode is NewCode for package-level declarations; it panics on a
// malformed code
func MustNewCode(s string) Code {
	code, err := NewCode(s)
	if err != nil {
		panic(err)
	}
	return code
}

func (c Code) String() string {
	if c.pkg == "" {
		return ""
	}
	return c.pkg + "." + c.name
}

// Package returns the component half of the code
func (c Code) Package() string {
	return c.pkg
}

// Name returns the part after the dot
func (c Code) Name() string {
	return c.name
}

// Equals reports whether both codes are the same
func (c Code) Equals(other Code) bool {
	return c == other
}

type codeError struct {
	code  string
	cause error
}

func (e *codeError) Error() string {
	return "invalid error code '" + e.code + "': " + e.cause.Error()
}

func (e *codeError) Unwrap() error {
	return e.cause
}
