package session

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"github.com/ptyhost/ptyhost/internal/model"
)

var signalNames = map[string]syscall.Signal{
	"HUP":  syscall.SIGHUP,
	"INT":  syscall.SIGINT,
	"QUIT": syscall.SIGQUIT,
	"ABRT": syscall.SIGABRT,
	"KILL": syscall.SIGKILL,
	"PIPE": syscall.SIGPIPE,
	"ALRM": syscall.SIGALRM,
	"TERM": syscall.SIGTERM,
}

// ParseSignal accepts "TERM", "SIGTERM", "sigterm" or a number such as "15".
func ParseSignal(s string) (syscall.Signal, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "" {
		return 0, fmt.Errorf("%w: empty signal", model.ErrInvalidSignal)
	}
	if n, err := strconv.Atoi(name); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("%w: %d", model.ErrInvalidSignal, n)
		}
		return syscall.Signal(n), nil
	}
	if sig, ok := signalNames[strings.TrimPrefix(name, "SIG")]; ok {
		return sig, nil
	}
	return 0, fmt.Errorf("%w: %q", model.ErrInvalidSignal, s)
}
