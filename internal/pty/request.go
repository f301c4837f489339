package pty

import (
	"fmt"
	"time"
)

const (
	// DefaultCols and DefaultRows size a terminal when the caller has no preference.
	DefaultCols = 80
	DefaultRows = 24

	// DefaultDrainTimeout bounds how long the exit event waits for the
	// reader to reach end of stream.
	DefaultDrainTimeout = 200 * time.Millisecond
)

// WindowSize is a terminal size in character cells.
type WindowSize struct {
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

func (w WindowSize) String() string {
	return fmt.Sprintf("%dx%d", w.Cols, w.Rows)
}

func (w WindowSize) pack() uint32 {
	return uint32(w.Cols)<<16 | uint32(w.Rows)
}

func unpackWindowSize(v uint32) WindowSize {
	return WindowSize{Cols: uint16(v >> 16), Rows: uint16(v)}
}

func newWindowSize(op string, cols, rows int) (WindowSize, error) {
	if cols <= 0 || rows <= 0 {
		return WindowSize{}, invalidArgument(op, "cols and rows must be positive, got %dx%d", cols, rows)
	}
	if cols > 0xffff || rows > 0xffff {
		return WindowSize{}, invalidArgument(op, "window size %dx%d out of range", cols, rows)
	}
	return WindowSize{Cols: uint16(cols), Rows: uint16(rows)}, nil
}

// Credential selects the user and group the child runs as. A value of -1
// keeps the current id.
type Credential struct {
	UID int
	GID int
}

// SpawnRequest describes a process to start on a new terminal.
type SpawnRequest struct {
	// File is the program to run. Without a path separator it is looked
	// up in PATH.
	File string

	// Args are the arguments after the program name.
	Args []string

	// Env is the complete child environment. Nil inherits the current one.
	Env map[string]string

	// Dir is the working directory. Empty keeps the current one.
	Dir string

	// Cols and Rows are the initial window size.
	Cols int
	Rows int

	// Credential switches user and group. Nil keeps both. POSIX only.
	Credential *Credential

	// UTF8 enables IUTF8 input processing. POSIX only.
	UTF8 bool

	// CloseFDs asks the helper to close inherited descriptors. POSIX only.
	CloseFDs bool

	// HelperPath is the pre-exec helper. Empty starts File directly. POSIX only.
	HelperPath string

	// HelperTimeout bounds the wait for the helper's report. Zero waits forever.
	HelperTimeout time.Duration

	// DrainTimeout overrides DefaultDrainTimeout.
	DrainTimeout time.Duration
}

func (r *SpawnRequest) validate() error {
	if r.File == "" {
		return invalidArgument("spawn", "file is required")
	}
	if _, err := newWindowSize("spawn", r.Cols, r.Rows); err != nil {
		return err
	}
	if r.HelperTimeout < 0 || r.DrainTimeout < 0 {
		return invalidArgument("spawn", "timeouts must not be negative")
	}
	return validateEnv(r.Env)
}

func (r *SpawnRequest) uidGid() (uid, gid int) {
	if r.Credential == nil {
		return -1, -1
	}
	return r.Credential.UID, r.Credential.GID
}

func (r *SpawnRequest) drainTimeout() time.Duration {
	if r.DrainTimeout > 0 {
		return r.DrainTimeout
	}
	return DefaultDrainTimeout
}
