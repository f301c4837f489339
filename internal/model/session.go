package model

import (
	"encoding/json"
	"time"
)

// SessionStatus represents the status of a terminal session.
type SessionStatus string

const (
	SessionStatusRunning  SessionStatus = "running"
	SessionStatusExited   SessionStatus = "exited"
	SessionStatusSignaled SessionStatus = "signaled"
	SessionStatusFailed   SessionStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s SessionStatus) Terminal() bool {
	return s != SessionStatusRunning
}

// Session represents a terminal session in the system.
type Session struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	File        string            `json:"file"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	WorkDir     string            `json:"workdir,omitempty"`
	Cols        int               `json:"cols"`
	Rows        int               `json:"rows"`
	Status      SessionStatus     `json:"status"`
	ExitCode    *int              `json:"exitCode,omitempty"`
	ExitSignal  *int              `json:"exitSignal,omitempty"`
	PID         *int              `json:"pid,omitempty"`
	TTYName     string            `json:"ttyName,omitempty"`
	LogFilePath string            `json:"logFilePath"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// EnvToJSON converts the Env map to a JSON string for storage.
func (s *Session) EnvToJSON() (string, error) {
	if s.Env == nil {
		return "", nil
	}
	data, err := json.Marshal(s.Env)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EnvFromJSON parses a JSON string into the Env map.
func (s *Session) EnvFromJSON(data string) error {
	if data == "" {
		s.Env = nil
		return nil
	}
	return json.Unmarshal([]byte(data), &s.Env)
}

// ArgsToJSON converts Args to a JSON array for storage.
func (s *Session) ArgsToJSON() (string, error) {
	if len(s.Args) == 0 {
		return "", nil
	}
	data, err := json.Marshal(s.Args)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ArgsFromJSON parses a stored JSON array into Args.
func (s *Session) ArgsFromJSON(data string) error {
	if data == "" {
		s.Args = nil
		return nil
	}
	return json.Unmarshal([]byte(data), &s.Args)
}

// Duration returns the time since the session was created.
func (s *Session) Duration() time.Duration {
	return time.Since(s.CreatedAt)
}

// CreateSessionRequest represents a request to create a new session.
// Either Command, a shell-style command line, or File is required.
type CreateSessionRequest struct {
	Command string            `json:"command"`
	File    string            `json:"file"`
	Args    []string          `json:"args"`
	Name    string            `json:"name"`
	Env     map[string]string `json:"env"`
	WorkDir string            `json:"workdir"`
	Cols    int               `json:"cols"`
	Rows    int               `json:"rows"`
	UTF8    *bool             `json:"utf8"`
}

// Validate validates the create session request.
func (r *CreateSessionRequest) Validate() error {
	if r.Command == "" && r.File == "" {
		return ErrCommandRequired
	}
	if r.Cols < 0 || r.Rows < 0 || r.Cols > 0xffff || r.Rows > 0xffff {
		return ErrInvalidSize
	}
	return nil
}

// InputRequest carries bytes for a session's terminal.
type InputRequest struct {
	Data string `json:"data"`
}

// InputResponse reports how much of an InputRequest was written.
type InputResponse struct {
	Written int  `json:"written"`
	Partial bool `json:"partial"`
}

// ResizeRequest changes a session's window size.
type ResizeRequest struct {
	Cols int `json:"cols" binding:"required"`
	Rows int `json:"rows" binding:"required"`
}

// SignalRequest names a signal by name ("TERM", "SIGTERM") or number.
type SignalRequest struct {
	Signal string `json:"signal" binding:"required"`
}
