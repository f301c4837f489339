package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ptyhost/ptyhost/internal/model"
)

const sessionColumns = `id, name, file, args, env, workdir, cols, rows, status, exit_code, exit_signal,
	pid, tty_name, log_file_path, created_at, updated_at`

// SessionRepository provides data access for sessions.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session into the database.
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	envJSON, err := session.EnvToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize env: %w", err)
	}
	argsJSON, err := session.ArgsToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize args: %w", err)
	}

	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		session.ID,
		session.Name,
		session.File,
		argsJSON,
		envJSON,
		session.WorkDir,
		session.Cols,
		session.Rows,
		session.Status,
		session.ExitCode,
		session.ExitSignal,
		session.PID,
		session.TTYName,
		session.LogFilePath,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	session := &model.Session{}
	var argsJSON, envJSON, workdir, ttyName sql.NullString
	var exitCode, exitSignal, pid sql.NullInt64

	err := row.Scan(
		&session.ID,
		&session.Name,
		&session.File,
		&argsJSON,
		&envJSON,
		&workdir,
		&session.Cols,
		&session.Rows,
		&session.Status,
		&exitCode,
		&exitSignal,
		&pid,
		&ttyName,
		&session.LogFilePath,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := session.ArgsFromJSON(argsJSON.String); err != nil {
		return nil, fmt.Errorf("failed to parse args: %w", err)
	}
	if err := session.EnvFromJSON(envJSON.String); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}
	session.WorkDir = workdir.String
	session.TTYName = ttyName.String
	session.ExitCode = intPtr(exitCode)
	session.ExitSignal = intPtr(exitSignal)
	session.PID = intPtr(pid)
	return session, nil
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// List retrieves all sessions, newest first.
func (r *SessionRepository) List(ctx context.Context) ([]*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session from the database.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return expectRow(result)
}

// UpdateProcess records the pid and terminal of a started session.
func (r *SessionRepository) UpdateProcess(ctx context.Context, id string, pid int, ttyName string) error {
	query := `UPDATE sessions SET pid = ?, tty_name = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, pid, ttyName, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update session process: %w", err)
	}
	return expectRow(result)
}

// UpdateSize records the current window size.
func (r *SessionRepository) UpdateSize(ctx context.Context, id string, cols, rows int) error {
	query := `UPDATE sessions SET cols = ?, rows = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, cols, rows, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update session size: %w", err)
	}
	return expectRow(result)
}

// UpdateExit records how a session's process ended.
func (r *SessionRepository) UpdateExit(ctx context.Context, id string, status model.SessionStatus, exitCode, exitSignal *int) error {
	query := `
		UPDATE sessions
		SET status = ?, exit_code = ?, exit_signal = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, status, exitCode, exitSignal, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update session exit: %w", err)
	}
	return expectRow(result)
}

// MarkStaleRunning marks sessions left running by a previous process as
// failed and returns how many were changed.
func (r *SessionRepository) MarkStaleRunning(ctx context.Context) (int64, error) {
	query := `UPDATE sessions SET status = ?, updated_at = ? WHERE status = ?`

	result, err := r.db.ExecContext(ctx, query, model.SessionStatusFailed, time.Now(), model.SessionStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func expectRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrSessionNotFound
	}
	return nil
}
