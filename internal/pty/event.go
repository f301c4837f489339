package pty

import (
	"fmt"
	"syscall"
)

// EventKind identifies what an Event carries.
type EventKind int

const (
	// EventData carries bytes read from the terminal, in read order.
	EventData EventKind = iota + 1

	// EventExit is delivered exactly once per session, after all data.
	EventExit
)

func (k EventKind) String() string {
	switch k {
	case EventData:
		return "data"
	case EventExit:
		return "exit"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// ExitStatus describes how the child terminated.
// Signal is zero when the child exited normally.
type ExitStatus struct {
	Code   int            `json:"code"`
	Signal syscall.Signal `json:"signal"`
}

// Signaled reports whether the child was terminated by a signal.
func (s ExitStatus) Signaled() bool {
	return s.Signal != 0
}

func (s ExitStatus) String() string {
	if s.Signaled() {
		return fmt.Sprintf("signal %d", int(s.Signal))
	}
	return fmt.Sprintf("exit code %d", s.Code)
}

// Event is a notification delivered to a session's Consumer.
type Event struct {
	Kind      EventKind
	SessionID uint64
	Data      []byte
	Exit      ExitStatus
}

// Consumer receives session events. Events for a single session are
// delivered sequentially from one goroutine.
type Consumer interface {
	HandleEvent(ev Event)
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(ev Event)

// HandleEvent calls f(ev).
func (f ConsumerFunc) HandleEvent(ev Event) {
	f(ev)
}

// discard is used when the caller does not care about events.
var discard = ConsumerFunc(func(Event) {})
