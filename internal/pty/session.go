// Package pty spawns child processes on pseudo-terminals and streams their
// output to a Consumer.
//
// A Session owns one terminal and one child. Two goroutines run per
// session: the reader loop, which turns terminal output into data events,
// and the exit watcher, which reaps the child and delivers the exit event.
// A third goroutine drains the session's mailbox into the Consumer so that
// neither background goroutine ever waits on the caller.
package pty

import (
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	readBufferSize  = 1024
	writeChunkSize  = 1024
	maxWriteRetries = 3
	writeRetryDelay = 10 * time.Microsecond

	// killGracePeriod is how long Close waits after SIGHUP before SIGKILL.
	killGracePeriod = 2 * time.Second
)

// Software flow control characters.
const (
	xoff = 0x13
	xon  = 0x11
)

var (
	log    = logrus.WithField("component", "pty")
	nextID atomic.Uint64
)

// State is the lifecycle position of a Session. It only moves forward.
type State int32

const (
	StateSpawning State = iota
	StateRunning
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSpawning:
		return "spawning"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is a child process attached to a pseudo-terminal.
type Session struct {
	id       uint64
	ttyName  string
	backend  backend
	consumer Consumer
	log      *logrus.Entry

	drainTimeout time.Duration

	pid    atomic.Int64
	state  atomic.Int32
	size   atomic.Uint32
	closed atomic.Bool
	exited atomic.Bool

	exitOnce sync.Once
	exit     ExitStatus

	// wmu serializes writes and flow control bytes.
	wmu sync.Mutex

	lifecycleMu sync.Mutex
	started     bool

	masterOnce sync.Once
	closeOnce  sync.Once
	finishOnce sync.Once

	mailbox    *mailbox
	readerDone chan struct{}
	waiterDone chan struct{}
	done       chan struct{}
}

type sessionOptions struct {
	ttyName      string
	size         WindowSize
	drainTimeout time.Duration
}

// newSession registers a session in the Spawning state and starts its
// dispatcher. The reader and watcher start with start.
func newSession(b backend, c Consumer, opts sessionOptions) *Session {
	if c == nil {
		c = discard
	}
	if opts.drainTimeout <= 0 {
		opts.drainTimeout = DefaultDrainTimeout
	}
	id := nextID.Add(1)
	s := &Session{
		id:           id,
		ttyName:      opts.ttyName,
		backend:      b,
		consumer:     c,
		log:          log.WithField("session", id),
		drainTimeout: opts.drainTimeout,
		mailbox:      newMailbox(),
		readerDone:   make(chan struct{}),
		waiterDone:   make(chan struct{}),
		done:         make(chan struct{}),
	}
	s.size.Store(opts.size.pack())
	s.state.Store(int32(StateSpawning))

	go func() {
		defer close(s.done)
		s.mailbox.dispatch(s.consumer)
	}()

	sessions.add(s)
	return s
}

// start moves the session to Running and launches the reader and watcher.
func (s *Session) start(pid int) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started || s.closed.Load() {
		return newError("start", ResourceUnavailable, "session already started or closed", nil)
	}
	s.started = true
	s.pid.Store(int64(pid))
	s.advance(StateRunning)
	s.log.WithField("pid", pid).Debug("session running")

	go s.readLoop()
	go s.waitLoop()
	return nil
}

// advance moves the state forward to next. Backward moves are ignored.
func (s *Session) advance(next State) {
	for {
		cur := s.state.Load()
		if State(cur) >= next {
			return
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			return
		}
	}
}

// ID returns the process-wide unique session id.
func (s *Session) ID() uint64 {
	return s.id
}

// Pid returns the child pid, or 0 before a process is attached.
func (s *Session) Pid() int {
	return int(s.pid.Load())
}

// TTYName returns the slave device path. Empty on Windows.
func (s *Session) TTYName() string {
	return s.ttyName
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Size returns the last applied window size.
func (s *Session) Size() WindowSize {
	return unpackWindowSize(s.size.Load())
}

// Closed reports whether the terminal has been closed.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// ExitStatus returns the child's exit status once the exit event has been
// produced.
func (s *Session) ExitStatus() (ExitStatus, bool) {
	if !s.exited.Load() {
		return ExitStatus{}, false
	}
	select {
	case <-s.waiterDone:
		return s.exit, true
	default:
	}
	return ExitStatus{}, false
}

// Done is closed after the session is closed and every event has been
// handed to the consumer.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Write sends p to the terminal in chunks. A write that stalls is retried
// a few times; when the budget runs out Write returns the bytes written so
// far with io.ErrShortWrite.
func (s *Session) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.closed.Load() {
		return 0, closedError("write")
	}

	written := s.writeLocked(p)
	if written < len(p) {
		return written, io.ErrShortWrite
	}
	return written, nil
}

// writeLocked writes p within the retry budget and returns the count
// written. The caller holds wmu.
func (s *Session) writeLocked(p []byte) int {
	written := 0
	retries := maxWriteRetries
	for written < len(p) {
		if s.closed.Load() {
			break
		}
		end := min(written+writeChunkSize, len(p))
		n, err := s.backend.Write(p[written:end])
		if n > 0 {
			written += n
			continue
		}
		if err != nil && !isTemporary(err) {
			s.log.WithError(err).Debug("write failed")
			break
		}
		if retries == 0 {
			break
		}
		retries--
		time.Sleep(writeRetryDelay)
	}
	return written
}

// Resize changes the window size.
func (s *Session) Resize(cols, rows int) error {
	size, err := newWindowSize("resize", cols, rows)
	if err != nil {
		return err
	}
	if s.closed.Load() {
		return closedError("resize")
	}
	if err := s.backend.Resize(size); err != nil {
		if s.closed.Load() || errors.Is(err, os.ErrClosed) {
			return closedError("resize")
		}
		return err
	}
	s.size.Store(size.pack())
	return nil
}

// Signal delivers sig to the child.
func (s *Session) Signal(sig syscall.Signal) error {
	if sig <= 0 {
		return invalidArgument("signal", "invalid signal %d", int(sig))
	}
	if s.exited.Load() || s.State() == StateClosed {
		return closedError("signal")
	}
	if s.Pid() == 0 {
		return newError("signal", ResourceUnavailable, "no process attached", nil)
	}
	return s.backend.Signal(sig)
}

// Pause enables software flow control and sends XOFF.
func (s *Session) Pause() error {
	return s.setFlowControl("pause", true)
}

// Resume disables software flow control and sends XON.
func (s *Session) Resume() error {
	return s.setFlowControl("resume", false)
}

func (s *Session) setFlowControl(op string, paused bool) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.closed.Load() {
		return closedError(op)
	}
	err := s.backend.SetFlowControl(paused)
	var e *Error
	if errors.As(err, &e) && e.Op == "" {
		e.Op = op
	}
	if err != nil {
		return err
	}

	ctrl := byte(xon)
	if paused {
		ctrl = xoff
	}
	if s.writeLocked([]byte{ctrl}) != 1 {
		return newError(op, IoFailed, "flow control write failed: ", io.ErrShortWrite)
	}
	return nil
}

// Close hangs up the terminal, stops the child and waits for the exit
// watcher. It is safe to call more than once and from a Consumer.
func (s *Session) Close() error {
	s.lifecycleMu.Lock()
	started := s.started
	s.closed.Store(true)
	s.lifecycleMu.Unlock()

	if !started {
		s.advance(StateClosing)
		s.finish()
		return nil
	}

	s.closeOnce.Do(func() {
		s.advance(StateClosing)
		if !s.exited.Load() {
			_ = s.backend.Signal(syscall.SIGHUP)
		}
		s.closeMaster()

		select {
		case <-s.waiterDone:
		case <-time.After(killGracePeriod):
			s.log.Warn("child still running after hangup, killing it")
			if err := s.backend.Signal(syscall.SIGKILL); err != nil {
				s.log.WithError(err).Warn("failed to kill child")
			}
		}
	})
	<-s.waiterDone
	return nil
}

// readLoop turns terminal output into data events until end of stream.
func (s *Session) readLoop() {
	defer close(s.readerDone)

	buf := make([]byte, readBufferSize)
	for {
		n, err := s.backend.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			s.mailbox.put(Event{Kind: EventData, SessionID: s.id, Data: data})
		}
		if err == nil && n > 0 {
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
			s.log.WithError(err).Debug("terminal read ended")
		}

		s.closed.Store(true)
		s.advance(StateClosing)
		s.closeMaster()
		if !s.exited.Load() {
			s.backend.Hangup()
		}
		return
	}
}

// waitLoop reaps the child and delivers the single exit event.
func (s *Session) waitLoop() {
	defer close(s.waiterDone)

	status, err := s.backend.Wait()
	if err != nil {
		s.log.WithError(err).Warn("failed to wait for child")
		status = ExitStatus{Code: -1}
	}
	s.exited.Store(true)
	s.advance(StateClosing)

	// Let the reader drain what the child wrote before it exited.
	select {
	case <-s.readerDone:
	case <-time.After(s.drainTimeout):
		s.log.Debug("terminal still open after child exit")
	}

	s.exitOnce.Do(func() { s.exit = status })
	s.closed.Store(true)
	s.mailbox.put(Event{Kind: EventExit, SessionID: s.id, Exit: status})
	s.log.WithField("status", status.String()).Debug("child exited")

	s.closeMaster()
	select {
	case <-s.readerDone:
	case <-time.After(s.drainTimeout):
		s.log.Warn("reader did not stop after terminal close")
	}
	s.finish()
}

func (s *Session) closeMaster() {
	s.masterOnce.Do(func() {
		if err := s.backend.Close(); err != nil {
			s.log.WithError(err).Debug("failed to close terminal")
		}
	})
}

// finish releases what is left and unregisters the session.
func (s *Session) finish() {
	s.finishOnce.Do(func() {
		s.closeMaster()
		s.mailbox.close()
		sessions.remove(s.id)
		s.advance(StateClosed)
	})
}
