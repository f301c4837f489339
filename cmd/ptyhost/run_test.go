package main

import (
	"syscall"
	"testing"

	"github.com/ptyhost/ptyhost/internal/pty"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		st   pty.ExitStatus
		want int
	}{
		{pty.ExitStatus{}, 0},
		{pty.ExitStatus{Code: 3}, 3},
		{pty.ExitStatus{Code: -1}, 1},
		{pty.ExitStatus{Signal: syscall.SIGKILL}, 137},
		{pty.ExitStatus{Signal: syscall.SIGTERM}, 143},
	}
	for _, tt := range tests {
		if got := exitCode(tt.st); got != tt.want {
			t.Errorf("exitCode(%s) = %d, want %d", tt.st, got, tt.want)
		}
	}
}

func TestExitErrorUnwraps(t *testing.T) {
	var target exitError
	if !asExit(exitError(4), &target) || target != 4 {
		t.Errorf("expected exit status 4, got %d", target)
	}
	if asExit(syscall.EINVAL, &target) {
		t.Error("expected a non-exit error not to match")
	}
}
