package session

import (
	"errors"
	"syscall"
	"testing"

	"github.com/ptyhost/ptyhost/internal/model"
)

func TestParseSignal(t *testing.T) {
	tests := []struct {
		in   string
		want syscall.Signal
	}{
		{"TERM", syscall.SIGTERM},
		{"SIGTERM", syscall.SIGTERM},
		{"sigkill", syscall.SIGKILL},
		{" int ", syscall.SIGINT},
		{"HUP", syscall.SIGHUP},
		{"9", syscall.Signal(9)},
	}
	for _, tt := range tests {
		got, err := ParseSignal(tt.in)
		if err != nil {
			t.Errorf("ParseSignal(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSignal(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "0", "-3", "WINCH", "SIGFOO"} {
		if _, err := ParseSignal(bad); !errors.Is(err, model.ErrInvalidSignal) {
			t.Errorf("ParseSignal(%q): expected ErrInvalidSignal, got %v", bad, err)
		}
	}
}
