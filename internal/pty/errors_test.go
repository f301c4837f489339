package pty

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"kind matches", invalidArgument("resize", "bad"), ErrInvalidArgument, true},
		{"kind differs", invalidArgument("resize", "bad"), ErrIoFailed, false},
		{"reason matches", spawnError(ChdirFailed, "chdir() failed: ", syscall.ENOENT), ErrChdirFailed, true},
		{"reason differs", spawnError(ChdirFailed, "chdir() failed: ", syscall.ENOENT), ErrExecFailed, false},
		{"kind sentinel ignores reason", spawnError(SetgidFailed, "setgid() failed: ", syscall.EPERM), ErrSpawnFailed, true},
		{"wrapped", fmt.Errorf("start: %w", closedError("write")), ErrResourceUnavailable, true},
		{"errno through unwrap", spawnError(ExecFailed, "exec() failed: ", syscall.ENOENT), syscall.ENOENT, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := spawnError(ChdirFailed, "chdir() failed: ", syscall.ENOENT)
	want := "spawn: chdir() failed: " + syscall.ENOENT.Error()
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}

	bare := &Error{Kind: IoFailed}
	if bare.Error() != "IoFailed" {
		t.Errorf("Expected kind as message, got %q", bare.Error())
	}
}

func TestErrnoAndKindOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", spawnError(ExecFailed, "exec() failed: ", syscall.EACCES))
	if got := Errno(err); got != syscall.EACCES {
		t.Errorf("Expected EACCES, got %v", got)
	}
	if got := KindOf(err); got != SpawnFailed {
		t.Errorf("Expected SpawnFailed, got %q", got)
	}
	if got := Errno(errors.New("plain")); got != 0 {
		t.Errorf("Expected 0 errno, got %v", got)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("Expected empty kind, got %q", got)
	}
}
