//go:build linux || darwin

package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/ptyhost/ptyhost/internal/db"
	"github.com/ptyhost/ptyhost/internal/logger"
	"github.com/ptyhost/ptyhost/internal/metrics"
	"github.com/ptyhost/ptyhost/internal/model"
	"github.com/ptyhost/ptyhost/internal/pty"
	"github.com/ptyhost/ptyhost/internal/repository"
)

type recordingObserver struct {
	mu      sync.Mutex
	output  map[string]*bytes.Buffer
	exits   map[string]pty.ExitStatus
	removed []string
	exited  chan string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		output: make(map[string]*bytes.Buffer),
		exits:  make(map[string]pty.ExitStatus),
		exited: make(chan string, 16),
	}
}

func (o *recordingObserver) SessionOutput(id string, data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.output[id] == nil {
		o.output[id] = &bytes.Buffer{}
	}
	o.output[id].Write(data)
}

func (o *recordingObserver) SessionExit(id string, status pty.ExitStatus) {
	o.mu.Lock()
	o.exits[id] = status
	o.mu.Unlock()
	o.exited <- id
}

func (o *recordingObserver) SessionRemoved(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removed = append(o.removed, id)
}

func (o *recordingObserver) outputOf(id string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.output[id] == nil {
		return ""
	}
	return o.output[id].String()
}

func (o *recordingObserver) waitExit(t *testing.T, id string) pty.ExitStatus {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case got := <-o.exited:
			if got == id {
				o.mu.Lock()
				defer o.mu.Unlock()
				return o.exits[id]
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for session %s to exit", id)
		}
	}
}

func setupTestManager(t *testing.T, maxSessions int) (*Manager, *recordingObserver) {
	t.Helper()
	tempDir := t.TempDir()

	database, err := db.NewTestDB()
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	manager := NewManager(repository.NewSessionRepository(database), Config{
		LogDir:       tempDir,
		MaxSessions:  maxSessions,
		DrainTimeout: time.Second,
		Metrics:      metrics.New(),
	})
	observer := newRecordingObserver()
	manager.SetObserver(observer)

	t.Cleanup(func() {
		manager.Close()
		database.Close()
	})
	return manager, observer
}

func TestManager_Create(t *testing.T) {
	manager, observer := setupTestManager(t, 5)
	ctx := context.Background()

	t.Run("create session successfully", func(t *testing.T) {
		session, err := manager.Create(ctx, &model.CreateSessionRequest{
			Command: "echo 'hello world'",
			Name:    "Test Session",
		})
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.ID == "" {
			t.Error("Session ID should not be empty")
		}
		if session.Name != "Test Session" {
			t.Errorf("Expected name 'Test Session', got '%s'", session.Name)
		}
		if session.File != "echo" || len(session.Args) != 1 || session.Args[0] != "hello world" {
			t.Errorf("Expected command to be split into echo [hello world], got %s %q", session.File, session.Args)
		}
		if session.PID == nil {
			t.Error("PID should not be nil")
		}
		if session.Cols != pty.DefaultCols || session.Rows != pty.DefaultRows {
			t.Errorf("Expected default size, got %dx%d", session.Cols, session.Rows)
		}

		status := observer.waitExit(t, session.ID)
		if status.Signaled() || status.Code != 0 {
			t.Errorf("Expected clean exit, got %s", status)
		}
		if !strings.Contains(observer.outputOf(session.ID), "hello world") {
			t.Errorf("Expected output to contain 'hello world', got %q", observer.outputOf(session.ID))
		}

		stored, err := manager.repo.GetByID(ctx, session.ID)
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		if stored.Status != model.SessionStatusExited || stored.ExitCode == nil || *stored.ExitCode != 0 {
			t.Errorf("Expected stored exit code 0, got %s %v", stored.Status, stored.ExitCode)
		}
		if stored.PID == nil || *stored.PID != *session.PID {
			t.Errorf("Expected stored pid %d, got %v", *session.PID, stored.PID)
		}
	})

	t.Run("create session with file and args", func(t *testing.T) {
		session, err := manager.Create(ctx, &model.CreateSessionRequest{
			File: "sh",
			Args: []string{"-c", "printf '%s' \"$TEST_VAR\"; exit 4"},
			Env:  map[string]string{"TEST_VAR": "test_value", "PATH": os.Getenv("PATH")},
		})
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.Name == "" {
			t.Error("Default name should be generated")
		}

		status := observer.waitExit(t, session.ID)
		if status.Code != 4 {
			t.Errorf("Expected exit code 4, got %s", status)
		}
		if !strings.Contains(observer.outputOf(session.ID), "test_value") {
			t.Errorf("Expected env value in output, got %q", observer.outputOf(session.ID))
		}
	})

	t.Run("reject session without command", func(t *testing.T) {
		_, err := manager.Create(ctx, &model.CreateSessionRequest{})
		if !errors.Is(err, model.ErrCommandRequired) {
			t.Errorf("Expected ErrCommandRequired, got %v", err)
		}
	})

	t.Run("reject blank command line", func(t *testing.T) {
		_, err := manager.Create(ctx, &model.CreateSessionRequest{Command: "   "})
		if !errors.Is(err, model.ErrCommandRequired) {
			t.Errorf("Expected ErrCommandRequired, got %v", err)
		}
	})

	t.Run("spawn failure leaves no record", func(t *testing.T) {
		before, err := manager.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		_, err = manager.Create(ctx, &model.CreateSessionRequest{File: "/nonexistent/program"})
		if !errors.Is(err, pty.ErrExecFailed) {
			t.Fatalf("Expected ErrExecFailed, got %v", err)
		}
		after, err := manager.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(after) != len(before) {
			t.Errorf("Expected %d sessions after failed spawn, got %d", len(before), len(after))
		}
	})
}

func TestManager_ConcurrencyLimit(t *testing.T) {
	manager, _ := setupTestManager(t, 1)
	ctx := context.Background()

	first, err := manager.Create(ctx, &model.CreateSessionRequest{Command: "sleep 30"})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if manager.ActiveCount() != 1 {
		t.Errorf("Expected 1 active session, got %d", manager.ActiveCount())
	}

	_, err = manager.Create(ctx, &model.CreateSessionRequest{Command: "sleep 30"})
	if !errors.Is(err, model.ErrConcurrencyLimit) {
		t.Fatalf("Expected ErrConcurrencyLimit, got %v", err)
	}

	if err := manager.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}
	if manager.ActiveCount() != 0 {
		t.Errorf("Expected 0 active sessions, got %d", manager.ActiveCount())
	}
	if _, err := manager.Create(ctx, &model.CreateSessionRequest{Command: "sleep 30"}); err != nil {
		t.Errorf("Expected create to succeed after delete, got %v", err)
	}
}

func TestManager_ConcurrentCreateRespectsLimit(t *testing.T) {
	manager, _ := setupTestManager(t, 2)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.Create(ctx, &model.CreateSessionRequest{Command: "sleep 30"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, model.ErrConcurrencyLimit):
		default:
			t.Errorf("Unexpected create error: %v", err)
		}
	}
	if created != 2 {
		t.Errorf("Expected exactly 2 sessions created, got %d", created)
	}
	if manager.ActiveCount() != 2 {
		t.Errorf("Expected 2 active sessions, got %d", manager.ActiveCount())
	}
}

func TestManager_FailedSpawnReleasesSlot(t *testing.T) {
	manager, _ := setupTestManager(t, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := manager.Create(ctx, &model.CreateSessionRequest{File: "/nonexistent/program"})
		if err == nil || errors.Is(err, model.ErrConcurrencyLimit) {
			t.Fatalf("Expected spawn failure, got %v", err)
		}
	}
	if _, err := manager.Create(ctx, &model.CreateSessionRequest{Command: "sleep 30"}); err != nil {
		t.Fatalf("Expected the slot to be free after failed spawns, got %v", err)
	}
}

func TestManager_Interaction(t *testing.T) {
	manager, observer := setupTestManager(t, 5)
	ctx := context.Background()

	session, err := manager.Create(ctx, &model.CreateSessionRequest{Command: "cat", Cols: 100, Rows: 30})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	t.Run("write echoes through the terminal", func(t *testing.T) {
		n, err := manager.Write(session.ID, []byte("ping\n"))
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if n != 5 {
			t.Errorf("Expected 5 bytes written, got %d", n)
		}
		deadline := time.Now().Add(5 * time.Second)
		for !strings.Contains(observer.outputOf(session.ID), "ping") {
			if time.Now().After(deadline) {
				t.Fatalf("Timed out waiting for echo, got %q", observer.outputOf(session.ID))
			}
			time.Sleep(10 * time.Millisecond)
		}
		history, err := manager.GetHistory(session.ID)
		if err != nil {
			t.Fatalf("GetHistory failed: %v", err)
		}
		if !bytes.Contains(history, []byte("ping")) {
			t.Errorf("Expected history to contain ping, got %q", history)
		}
	})

	t.Run("resize updates the record", func(t *testing.T) {
		if err := manager.Resize(session.ID, 120, 40); err != nil {
			t.Fatalf("Resize failed: %v", err)
		}
		got, err := manager.Get(ctx, session.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Cols != 120 || got.Rows != 40 {
			t.Errorf("Expected 120x40, got %dx%d", got.Cols, got.Rows)
		}
		stored, err := manager.repo.GetByID(ctx, session.ID)
		if err != nil {
			t.Fatal(err)
		}
		if stored.Cols != 120 || stored.Rows != 40 {
			t.Errorf("Expected stored 120x40, got %dx%d", stored.Cols, stored.Rows)
		}
	})

	t.Run("invalid resize is rejected", func(t *testing.T) {
		if err := manager.Resize(session.ID, 0, 40); !errors.Is(err, pty.ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("pause and resume", func(t *testing.T) {
		if err := manager.Pause(session.ID); err != nil {
			t.Errorf("Pause failed: %v", err)
		}
		if err := manager.Resume(session.ID); err != nil {
			t.Errorf("Resume failed: %v", err)
		}
	})

	t.Run("signal records the signal", func(t *testing.T) {
		if err := manager.Signal(session.ID, syscall.SIGTERM); err != nil {
			t.Fatalf("Signal failed: %v", err)
		}
		status := observer.waitExit(t, session.ID)
		if status.Signal != syscall.SIGTERM {
			t.Errorf("Expected SIGTERM, got %s", status)
		}
		stored, err := manager.repo.GetByID(ctx, session.ID)
		if err != nil {
			t.Fatal(err)
		}
		if stored.Status != model.SessionStatusSignaled || stored.ExitSignal == nil || *stored.ExitSignal != int(syscall.SIGTERM) {
			t.Errorf("Expected signaled with 15, got %s %v", stored.Status, stored.ExitSignal)
		}
	})

	t.Run("write after exit fails", func(t *testing.T) {
		_, err := manager.Write(session.ID, []byte("x"))
		if !errors.Is(err, pty.ErrResourceUnavailable) {
			t.Errorf("Expected ErrResourceUnavailable, got %v", err)
		}
	})

	t.Run("recording holds input output and resize", func(t *testing.T) {
		f, err := os.Open(session.LogFilePath)
		if err != nil {
			t.Fatalf("Failed to open recording: %v", err)
		}
		defer f.Close()
		header, events, err := logger.ReadCast(f)
		if err != nil {
			t.Fatalf("ReadCast failed: %v", err)
		}
		if header.Width != 100 || header.Height != 30 {
			t.Errorf("Expected header 100x30, got %dx%d", header.Width, header.Height)
		}
		seen := map[string]bool{}
		for _, ev := range events {
			seen[ev.EventType] = true
		}
		for _, typ := range []string{logger.EventOutput, logger.EventInput, logger.EventResize, logger.EventMarker} {
			if !seen[typ] {
				t.Errorf("Expected a %q event in the recording", typ)
			}
		}
	})
}

func TestManager_UnknownSession(t *testing.T) {
	manager, _ := setupTestManager(t, 5)
	ctx := context.Background()

	if _, err := manager.Get(ctx, "non-existent-id"); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("Get: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := manager.Write("non-existent-id", []byte("x")); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("Write: expected ErrSessionNotFound, got %v", err)
	}
	if err := manager.Resize("non-existent-id", 80, 24); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("Resize: expected ErrSessionNotFound, got %v", err)
	}
	if err := manager.Delete(ctx, "non-existent-id"); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("Delete: expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_DeleteRunning(t *testing.T) {
	manager, observer := setupTestManager(t, 5)
	ctx := context.Background()

	session, err := manager.Create(ctx, &model.CreateSessionRequest{Command: "sleep 30"})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if err := manager.Delete(ctx, session.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	observer.mu.Lock()
	_, exited := observer.exits[session.ID]
	removed := observer.removed
	observer.mu.Unlock()
	if !exited {
		t.Error("Expected an exit notification before removal")
	}
	if len(removed) != 1 || removed[0] != session.ID {
		t.Errorf("Expected removal of %s, got %v", session.ID, removed)
	}
	if _, ok := manager.GetContext(session.ID); ok {
		t.Error("Expected no runtime state after delete")
	}
}

func TestManager_Recover(t *testing.T) {
	manager, _ := setupTestManager(t, 5)
	ctx := context.Background()

	stale := &model.Session{
		ID:        "stale",
		Name:      "stale",
		File:      "sh",
		Cols:      80,
		Rows:      24,
		Status:    model.SessionStatusRunning,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := manager.repo.Create(ctx, stale); err != nil {
		t.Fatal(err)
	}
	if err := manager.Recover(ctx); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	got, err := manager.Get(ctx, "stale")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.SessionStatusFailed {
		t.Errorf("Expected failed, got %s", got.Status)
	}
}
