// Package ptyhost starts programs on pseudo-terminals and delivers their
// output and exit status as events.
//
//	sess, err := ptyhost.Spawn(ptyhost.SpawnRequest{
//		File: "sh",
//		Cols: 80,
//		Rows: 24,
//	}, ptyhost.ConsumerFunc(func(ev ptyhost.Event) {
//		...
//	}))
package ptyhost

import (
	"syscall"

	"github.com/ptyhost/ptyhost/internal/pty"
)

// Re-export types from internal/pty for external use
type (
	SpawnRequest = pty.SpawnRequest
	Credential   = pty.Credential
	WindowSize   = pty.WindowSize
	Session      = pty.Session
	State        = pty.State
	Registry     = pty.Registry
	Event        = pty.Event
	EventKind    = pty.EventKind
	ExitStatus   = pty.ExitStatus
	Consumer     = pty.Consumer
	ConsumerFunc = pty.ConsumerFunc
	Error        = pty.Error
	Kind         = pty.Kind
	Reason       = pty.Reason
	Stage        = pty.Stage
)

const (
	EventData = pty.EventData
	EventExit = pty.EventExit

	StateSpawning = pty.StateSpawning
	StateRunning  = pty.StateRunning
	StateClosing  = pty.StateClosing
	StateClosed   = pty.StateClosed

	InvalidArgument     = pty.InvalidArgument
	AllocationFailed    = pty.AllocationFailed
	SpawnFailed         = pty.SpawnFailed
	ResourceUnavailable = pty.ResourceUnavailable
	IoFailed            = pty.IoFailed
	ShellNotFound       = pty.ShellNotFound

	DefaultCols         = pty.DefaultCols
	DefaultRows         = pty.DefaultRows
	DefaultDrainTimeout = pty.DefaultDrainTimeout
)

// Sentinels for errors.Is.
var (
	ErrInvalidArgument     = pty.ErrInvalidArgument
	ErrAllocationFailed    = pty.ErrAllocationFailed
	ErrSpawnFailed         = pty.ErrSpawnFailed
	ErrResourceUnavailable = pty.ErrResourceUnavailable
	ErrIoFailed            = pty.ErrIoFailed
	ErrShellNotFound       = pty.ErrShellNotFound
	ErrExecFailed          = pty.ErrExecFailed
	ErrChdirFailed         = pty.ErrChdirFailed
	ErrSetuidFailed        = pty.ErrSetuidFailed
	ErrSetgidFailed        = pty.ErrSetgidFailed
)

// Spawn starts req.File on a new terminal. Events go to c until the
// single exit event.
func Spawn(req SpawnRequest, c Consumer) (*Session, error) {
	return pty.Spawn(req, c)
}

// Lookup finds a live session by id.
func Lookup(id uint64) (*Session, bool) {
	return pty.Lookup(id)
}

// Live returns the table of sessions that have not finished.
func Live() *Registry {
	return pty.Live()
}

// EnvBlock renders env as sorted KEY=VALUE strings.
func EnvBlock(env map[string]string) ([]string, error) {
	return pty.EnvBlock(env)
}

// EnvBlockUTF16 renders env as a double-NUL terminated UTF-16 block.
func EnvBlockUTF16(env map[string]string) ([]uint16, error) {
	return pty.EnvBlockUTF16(env)
}

// Environ returns the current process environment as a map.
func Environ() map[string]string {
	return pty.Environ()
}

// KindOf returns the Kind of err, or "" when it is not a terminal error.
func KindOf(err error) Kind {
	return pty.KindOf(err)
}

// Errno returns the OS error number carried by err, or 0.
func Errno(err error) syscall.Errno {
	return pty.Errno(err)
}

// HelperArgs builds the argument vector for a pre-exec helper.
func HelperArgs(helper, dir string, uid, gid int, closeFDs bool, file string, args []string) []string {
	return pty.HelperArgs(helper, dir, uid, gid, closeFDs, file, args)
}
