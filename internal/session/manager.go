package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/shlex"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ptyhost/ptyhost/internal/buffer"
	"github.com/ptyhost/ptyhost/internal/logger"
	"github.com/ptyhost/ptyhost/internal/metrics"
	"github.com/ptyhost/ptyhost/internal/model"
	"github.com/ptyhost/ptyhost/internal/pty"
	"github.com/ptyhost/ptyhost/internal/repository"
)

// DefaultRingBufferSize is the per-session history kept for new clients.
const DefaultRingBufferSize = 64 * 1024

// Observer is told about session output and lifecycle. Calls for one
// session arrive sequentially and must not block for long.
type Observer interface {
	SessionOutput(id string, data []byte)
	SessionExit(id string, status pty.ExitStatus)
	SessionRemoved(id string)
}

// Config holds configuration for the session manager.
type Config struct {
	LogDir         string
	MaxSessions    int
	Cols           int
	Rows           int
	HelperPath     string
	DrainTimeout   time.Duration
	RingBufferSize int
	Metrics        *metrics.Metrics
}

// Manager manages terminal sessions.
type Manager struct {
	repo    *repository.SessionRepository
	config  Config
	metrics *metrics.Metrics
	log     *logrus.Entry

	observerMu sync.RWMutex
	observer   Observer

	mu       sync.RWMutex
	sessions map[string]*SessionContext
	// reserved counts slots held by Create calls that have not finished.
	reserved int
}

// SessionContext holds the runtime state of a session started by this
// process. It is the session's pty.Consumer.
type SessionContext struct {
	manager  *Manager
	id       string
	pty      *pty.Session
	history  *buffer.RingBuffer
	recorder *logger.Recorder

	mu     sync.Mutex
	record *model.Session
	exited chan struct{}
}

// NewManager creates a new session manager.
func NewManager(repo *repository.SessionRepository, config Config) *Manager {
	if config.MaxSessions <= 0 {
		config.MaxSessions = 10
	}
	if config.Cols <= 0 || config.Rows <= 0 {
		config.Cols, config.Rows = pty.DefaultCols, pty.DefaultRows
	}
	if config.RingBufferSize <= 0 {
		config.RingBufferSize = DefaultRingBufferSize
	}

	m := &Manager{
		repo:     repo,
		config:   config,
		metrics:  config.Metrics,
		log:      logrus.WithField("component", "session"),
		sessions: make(map[string]*SessionContext),
	}
	m.metrics.TrackActive(m)
	return m
}

// SetObserver installs the receiver of output and lifecycle notifications.
func (m *Manager) SetObserver(o Observer) {
	m.observerMu.Lock()
	defer m.observerMu.Unlock()
	m.observer = o
}

func (m *Manager) currentObserver() Observer {
	m.observerMu.RLock()
	defer m.observerMu.RUnlock()
	return m.observer
}

// Recover marks sessions left running by a previous process as failed.
func (m *Manager) Recover(ctx context.Context) error {
	n, err := m.repo.MarkStaleRunning(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		m.log.WithField("count", n).Info("marked stale sessions as failed")
	}
	return nil
}

// resolveCommand turns a request into a program and its arguments.
func resolveCommand(req *model.CreateSessionRequest) (string, []string, error) {
	if req.File != "" {
		return req.File, req.Args, nil
	}
	words, err := shlex.Split(req.Command)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", model.ErrCommandRequired, err)
	}
	if len(words) == 0 {
		return "", nil, model.ErrCommandRequired
	}
	return words[0], append(words[1:], req.Args...), nil
}

// Create starts a new terminal session.
func (m *Manager) Create(ctx context.Context, req *model.CreateSessionRequest) (*model.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	file, args, err := resolveCommand(req)
	if err != nil {
		return nil, err
	}

	if err := m.reserve(); err != nil {
		return nil, err
	}
	inserted := false
	defer func() {
		if !inserted {
			m.release()
		}
	}()

	cols, rows := req.Cols, req.Rows
	if cols == 0 || rows == 0 {
		cols, rows = m.config.Cols, m.config.Rows
	}

	sessionID := uuid.New().String()
	now := time.Now()
	record := &model.Session{
		ID:          sessionID,
		Name:        req.Name,
		File:        file,
		Args:        args,
		Env:         req.Env,
		WorkDir:     req.WorkDir,
		Cols:        cols,
		Rows:        rows,
		Status:      model.SessionStatusRunning,
		LogFilePath: filepath.Join(m.config.LogDir, sessionID+".cast"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if record.Name == "" {
		record.Name = fmt.Sprintf("Session %s", sessionID[:8])
	}

	// Step 1: open the recording
	if m.config.LogDir != "" {
		if err := os.MkdirAll(m.config.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	recorder, err := logger.NewRecorder(record.LogFilePath)
	if err != nil {
		return nil, err
	}
	header := logger.Header{Width: cols, Height: rows, Command: file, Title: record.Name}
	if err := recorder.WriteHeader(header); err != nil {
		recorder.Close()
		return nil, err
	}

	// Step 2: persist, so the exit handler always finds the row
	if err := m.repo.Create(ctx, record); err != nil {
		recorder.Close()
		os.Remove(record.LogFilePath)
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	sc := &SessionContext{
		manager:  m,
		id:       sessionID,
		history:  buffer.NewRingBuffer(m.config.RingBufferSize),
		recorder: recorder,
		record:   record,
		exited:   make(chan struct{}),
	}

	// Step 3: spawn
	utf8 := true
	if req.UTF8 != nil {
		utf8 = *req.UTF8
	}
	ptySession, err := pty.Spawn(pty.SpawnRequest{
		File:         file,
		Args:         args,
		Env:          req.Env,
		Dir:          req.WorkDir,
		Cols:         cols,
		Rows:         rows,
		UTF8:         utf8,
		HelperPath:   m.config.HelperPath,
		DrainTimeout: m.config.DrainTimeout,
	}, sc)
	if err != nil {
		m.metrics.SpawnFailed(err)
		recorder.Close()
		os.Remove(record.LogFilePath)
		m.repo.Delete(context.Background(), sessionID)
		return nil, fmt.Errorf("failed to spawn PTY: %w", err)
	}
	m.metrics.SpawnSucceeded()

	pid := ptySession.Pid()
	sc.mu.Lock()
	sc.pty = ptySession
	record.PID = &pid
	record.TTYName = ptySession.TTYName()
	snapshot := *record
	sc.mu.Unlock()

	if err := m.repo.UpdateProcess(ctx, sessionID, pid, ptySession.TTYName()); err != nil {
		m.log.WithError(err).WithField("session", sessionID).Warn("failed to record pid")
	}

	m.mu.Lock()
	m.sessions[sessionID] = sc
	m.reserved--
	inserted = true
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"session": sessionID,
		"file":    file,
		"pid":     pid,
	}).Info("session started")
	return &snapshot, nil
}

// reserve holds a session slot until Create inserts the session or gives up.
func (m *Manager) reserve() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeLocked()+m.reserved >= m.config.MaxSessions {
		return fmt.Errorf("%w: maximum active sessions (%d) reached", model.ErrConcurrencyLimit, m.config.MaxSessions)
	}
	m.reserved++
	return nil
}

func (m *Manager) release() {
	m.mu.Lock()
	m.reserved--
	m.mu.Unlock()
}

// HandleEvent fans pty events out to history, recording, metrics and the
// observer.
func (sc *SessionContext) HandleEvent(ev pty.Event) {
	m := sc.manager
	switch ev.Kind {
	case pty.EventData:
		sc.history.Write(ev.Data)
		sc.recorder.HandleEvent(ev)
		m.metrics.BytesRead(len(ev.Data))
		if o := m.currentObserver(); o != nil {
			o.SessionOutput(sc.id, ev.Data)
		}
	case pty.EventExit:
		sc.handleExit(ev.Exit)
	}
}

func (sc *SessionContext) handleExit(st pty.ExitStatus) {
	m := sc.manager
	sc.recorder.HandleEvent(pty.Event{Kind: pty.EventExit, Exit: st})
	m.metrics.Exited(st)

	status := model.SessionStatusExited
	var code, signal *int
	if st.Signaled() {
		status = model.SessionStatusSignaled
		sig := int(st.Signal)
		signal = &sig
	} else {
		c := st.Code
		code = &c
		if c < 0 {
			status = model.SessionStatusFailed
		}
	}

	sc.mu.Lock()
	sc.record.Status = status
	sc.record.ExitCode = code
	sc.record.ExitSignal = signal
	sc.record.UpdatedAt = time.Now()
	sc.mu.Unlock()
	close(sc.exited)

	if err := m.repo.UpdateExit(context.Background(), sc.id, status, code, signal); err != nil &&
		!errors.Is(err, model.ErrSessionNotFound) {
		m.log.WithError(err).WithField("session", sc.id).Warn("failed to update session status")
	}
	if o := m.currentObserver(); o != nil {
		o.SessionExit(sc.id, st)
	}
	m.log.WithFields(logrus.Fields{"session": sc.id, "status": st.String()}).Info("session exited")
}

// Snapshot returns a copy of the session record.
func (sc *SessionContext) Snapshot() *model.Session {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	s := *sc.record
	return &s
}

// Running reports whether the process has not exited yet.
func (sc *SessionContext) Running() bool {
	select {
	case <-sc.exited:
		return false
	default:
		return true
	}
}

// History returns the buffered recent output.
func (sc *SessionContext) History() []byte {
	return sc.history.ReadAll()
}

// Get retrieves a session by ID.
func (m *Manager) Get(ctx context.Context, id string) (*model.Session, error) {
	if sc, ok := m.GetContext(id); ok {
		return sc.Snapshot(), nil
	}
	return m.repo.GetByID(ctx, id)
}

// GetContext returns the runtime state of a session started by this process.
func (m *Manager) GetContext(id string) (*SessionContext, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, ok := m.sessions[id]
	return sc, ok
}

// List retrieves all sessions, newest first.
func (m *Manager) List(ctx context.Context) ([]*model.Session, error) {
	return m.repo.List(ctx)
}

// ActiveCount returns the number of sessions whose process is running.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeLocked()
}

func (m *Manager) activeLocked() int {
	n := 0
	for _, sc := range m.sessions {
		if sc.Running() {
			n++
		}
	}
	return n
}

// MaxSessions returns the concurrent session limit.
func (m *Manager) MaxSessions() int {
	return m.config.MaxSessions
}

// Delete stops a session if it is running and removes its record.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	sc, exists := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if exists {
		sc.pty.Close()
		<-sc.pty.Done()
		if o := m.currentObserver(); o != nil {
			o.SessionRemoved(id)
		}
	}
	return m.repo.Delete(ctx, id)
}

// running returns the live pty of a session or an error naming why there is none.
func (m *Manager) running(id string) (*SessionContext, error) {
	sc, ok := m.GetContext(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrSessionNotFound, id)
	}
	return sc, nil
}

// Write sends data to a session's terminal. A short write returns the
// count with an error wrapping io.ErrShortWrite.
func (m *Manager) Write(id string, data []byte) (int, error) {
	sc, err := m.running(id)
	if err != nil {
		return 0, err
	}
	n, err := sc.pty.Write(data)
	if n > 0 {
		sc.recorder.WriteInput(data[:n])
		m.metrics.BytesWritten(n)
	}
	if errors.Is(err, io.ErrShortWrite) {
		m.metrics.ShortWrite()
	}
	return n, err
}

// Resize changes a session's window size.
func (m *Manager) Resize(id string, cols, rows int) error {
	sc, err := m.running(id)
	if err != nil {
		return err
	}
	if err := sc.pty.Resize(cols, rows); err != nil {
		return err
	}
	sc.recorder.WriteResize(cols, rows)

	sc.mu.Lock()
	sc.record.Cols, sc.record.Rows = cols, rows
	sc.mu.Unlock()
	if err := m.repo.UpdateSize(context.Background(), id, cols, rows); err != nil {
		m.log.WithError(err).WithField("session", id).Debug("failed to persist size")
	}
	return nil
}

// Signal delivers sig to a session's process.
func (m *Manager) Signal(id string, sig syscall.Signal) error {
	sc, err := m.running(id)
	if err != nil {
		return err
	}
	return sc.pty.Signal(sig)
}

// Pause stops terminal output with XOFF.
func (m *Manager) Pause(id string) error {
	sc, err := m.running(id)
	if err != nil {
		return err
	}
	return sc.pty.Pause()
}

// Resume restarts terminal output with XON.
func (m *Manager) Resume(id string) error {
	sc, err := m.running(id)
	if err != nil {
		return err
	}
	return sc.pty.Resume()
}

// GetHistory returns the buffered output history for a session.
func (m *Manager) GetHistory(id string) ([]byte, error) {
	sc, err := m.running(id)
	if err != nil {
		return nil, err
	}
	return sc.History(), nil
}

// Close stops every session and waits for their events to be delivered.
func (m *Manager) Close() error {
	m.mu.Lock()
	all := make([]*SessionContext, 0, len(m.sessions))
	for id, sc := range m.sessions {
		all = append(all, sc)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, sc := range all {
		wg.Add(1)
		go func(sc *SessionContext) {
			defer wg.Done()
			sc.pty.Close()
			<-sc.pty.Done()
		}(sc)
	}
	wg.Wait()
	return nil
}
