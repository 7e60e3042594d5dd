// Package errorsx tags errors with a benchmark failure reason so the
// runner can tell a format problem from a vendor fault from a scoring
// gap without parsing error strings.
package errorsx

import "errors"

// ReasonedError carries a ReasonCode alongside the underlying error.
// The message stays the wrapped error's own; the reason travels out of
// band for matching.
type ReasonedError struct {
	Err    error
	Reason ReasonCode
}

func (e ReasonedError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return e.Err.Error()
}

func (e ReasonedError) Unwrap() error {
	return e.Err
}

// Wrap tags err with reason. A nil err stays nil, and an error that
// already carries a reason keeps its original one: the innermost tag is
// the closest to the fault.
func Wrap(err error, reason ReasonCode) error {
	if err == nil {
		return nil
	}
	var re ReasonedError
	if errors.As(err, &re) {
		return err
	}
	return ReasonedError{Err: err, Reason: reason}
}

// Reason returns the code carried anywhere in err's chain, or
// ReasonUnknown when the chain is untagged.
func Reason(err error) ReasonCode {
	if err == nil {
		return ReasonUnknown
	}
	var re ReasonedError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ReasonUnknown
}

// HasReason reports whether err's chain carries the given code.
func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}
