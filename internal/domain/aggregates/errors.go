package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies why a catalog write did not happen. Codes double as
// metric status labels, so they stay lowercase and stable.
type ErrorCode string

const (
	// CodeValidation: the observation is malformed. Retrying will not help.
	CodeValidation ErrorCode = "validation"
	// CodeDuplicateProperty: one observation named a property twice.
	CodeDuplicateProperty ErrorCode = "duplicate_property"
	CodeNotFound          ErrorCode = "not_found"
	// CodeConflict: a unique key, a held crawl lock or a stale row version.
	CodeConflict ErrorCode = "conflict"
	// CodePreconditionFailed: a referenced row (retailer, region) is missing.
	CodePreconditionFailed ErrorCode = "precondition_failed"
	// CodeRetryable: the database gave up on the transaction (serialization,
	// deadlock, lock timeout). The same observation may succeed again.
	CodeRetryable ErrorCode = "retryable"
	CodeInternal  ErrorCode = "internal"
)

// Retryable reports whether reapplying the same observation can succeed.
func (c ErrorCode) Retryable() bool { return c == CodeRetryable }

// Error is returned by every entity repository write.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Message != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}
	if b.Len() == 0 {
		return string(e.Code)
	}
	fmt.Fprintf(&b, " [%s]", e.Code)
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// LogFields renders the error as logger key/values.
func (e *Error) LogFields() []interface{} {
	if e == nil {
		return nil
	}
	return []interface{}{"code", string(e.Code), "op", e.Op, "error", e.Message}
}

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap tags err with code. The cause stays reachable through errors.Is.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return ""
	}
	return aggErr.Code
}

// IsRetryable reports whether err carries a retryable code.
func IsRetryable(err error) bool {
	return CodeOf(err).Retryable()
}
