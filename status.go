package rtio

import (
	"errors"
	"fmt"
)

// Status is the closed vocabulary reported by devices and chain stages.
// Every Status except Ok implements error, so operations return them
// directly and callers match with errors.Is.
type Status uint8

// Statuses.
const (
	// Ok is never returned as an error: a nil error means Ok.
	Ok Status = iota
	// Failed is an unrecoverable condition.
	Failed
	// Xrun means the hardware underran or overran and was recovered.
	Xrun
	// Invalid means the operation is not allowed in the current state.
	Invalid
	// BufferFull means nothing can be enqueued at the moment.
	BufferFull
	// BufferEmpty means there is no data at the moment.
	BufferEmpty
	// Busy means the device is busy and the call should be repeated.
	Busy
	// Unsupported means the operation or format is not supported.
	Unsupported
)

var statusNames = [...]string{
	Ok:          "ok",
	Failed:      "failed",
	Xrun:        "xrun",
	Invalid:     "invalid state",
	BufferFull:  "buffer full",
	BufferEmpty: "buffer empty",
	Busy:        "busy",
	Unsupported: "unsupported",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

func (s Status) Error() string {
	return s.String()
}

// Transient reports whether s is a flow-control signal that the caller
// handles by retrying.
func (s Status) Transient() bool {
	switch s {
	case BufferFull, BufferEmpty, Busy:
		return true
	}
	return false
}

// Terminal reports whether s ends the current run.
func (s Status) Terminal() bool {
	switch s {
	case Failed, Invalid, Unsupported:
		return true
	}
	return false
}

// Error wraps a driver error together with the status it maps to.
type Error struct {
	Status Status
	Op     string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Status, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Status)
	}
	return e.Status.String()
}

// Unwrap returns the driver error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the wrapped status, so errors.Is(err, rtio.Xrun) holds for an
// Error carrying Xrun.
func (e *Error) Is(target error) bool {
	s, ok := target.(Status)
	return ok && s == e.Status
}

// Errorf returns an Error with status s for operation op.
func Errorf(s Status, op string, err error) error {
	return &Error{Status: s, Op: op, Err: err}
}

// StatusOf classifies err. Nil is Ok, errors without a status are Failed.
func StatusOf(err error) Status {
	if err == nil {
		return Ok
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return Failed
}
