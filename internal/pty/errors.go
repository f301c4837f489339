package pty

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind classifies a failure reported by this package.
type Kind string

const (
	InvalidArgument     Kind = "InvalidArgument"
	AllocationFailed    Kind = "AllocationFailed"
	SpawnFailed         Kind = "SpawnFailed"
	ResourceUnavailable Kind = "ResourceUnavailable"
	IoFailed            Kind = "IoFailed"
	ShellNotFound       Kind = "ShellNotFound"
)

// Reason narrows down a SpawnFailed or AllocationFailed error.
type Reason string

const (
	ExecFailed               Reason = "ExecFailed"
	ChdirFailed              Reason = "ChdirFailed"
	SetuidFailed             Reason = "SetuidFailed"
	SetgidFailed             Reason = "SetgidFailed"
	SpawnAPIFailed           Reason = "SpawnApiFailed"
	PseudoConsoleUnavailable Reason = "PseudoConsoleUnavailable"
)

// Sentinels for errors.Is. A sentinel with a Reason only matches errors
// carrying the same Reason.
var (
	ErrInvalidArgument     = &Error{Kind: InvalidArgument}
	ErrAllocationFailed    = &Error{Kind: AllocationFailed}
	ErrSpawnFailed         = &Error{Kind: SpawnFailed}
	ErrResourceUnavailable = &Error{Kind: ResourceUnavailable}
	ErrIoFailed            = &Error{Kind: IoFailed}
	ErrShellNotFound       = &Error{Kind: ShellNotFound}

	ErrExecFailed   = &Error{Kind: SpawnFailed, Reason: ExecFailed}
	ErrChdirFailed  = &Error{Kind: SpawnFailed, Reason: ChdirFailed}
	ErrSetuidFailed = &Error{Kind: SpawnFailed, Reason: SetuidFailed}
	ErrSetgidFailed = &Error{Kind: SpawnFailed, Reason: SetgidFailed}
)

// Error is the error type returned by every operation in this package.
type Error struct {
	// Op is the operation that failed ("spawn", "write", "resize", ...).
	Op string

	// Kind is the failure class.
	Kind Kind

	// Reason is set for SpawnFailed and AllocationFailed errors.
	Reason Reason

	// Msg is the human readable message, e.g. "chdir() failed: ".
	Msg string

	// Err is the underlying OS error, usually a syscall.Errno.
	Err error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		msg += e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same Kind (and Reason, when
// the sentinel names one).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Errno returns the OS error number carried by err, or 0.
func Errno(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}

// KindOf returns the Kind of err, or "" when err did not come from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(op string, kind Kind, msg string, err error) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg, Err: err}
}

func invalidArgument(op, format string, args ...any) *Error {
	return &Error{Op: op, Kind: InvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

func spawnError(reason Reason, msg string, err error) *Error {
	return &Error{Op: "spawn", Kind: SpawnFailed, Reason: reason, Msg: msg, Err: err}
}

func closedError(op string) *Error {
	return &Error{Op: op, Kind: ResourceUnavailable, Msg: "session is closed"}
}
