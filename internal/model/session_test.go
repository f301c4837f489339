package model

import (
	"errors"
	"testing"
)

func TestCreateSessionRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  CreateSessionRequest
		want error
	}{
		{"command", CreateSessionRequest{Command: "sh"}, nil},
		{"file", CreateSessionRequest{File: "/bin/sh", Args: []string{"-l"}}, nil},
		{"size", CreateSessionRequest{Command: "sh", Cols: 132, Rows: 43}, nil},
		{"empty", CreateSessionRequest{}, ErrCommandRequired},
		{"negative cols", CreateSessionRequest{Command: "sh", Cols: -1, Rows: 24}, ErrInvalidSize},
		{"huge rows", CreateSessionRequest{Command: "sh", Cols: 80, Rows: 1 << 16}, ErrInvalidSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSessionJSONColumns(t *testing.T) {
	s := &Session{}
	if got, _ := s.EnvToJSON(); got != "" {
		t.Errorf("Expected empty env column, got %q", got)
	}
	if got, _ := s.ArgsToJSON(); got != "" {
		t.Errorf("Expected empty args column, got %q", got)
	}

	s.Env = map[string]string{"TERM": "xterm-256color"}
	s.Args = []string{"-c", "echo 'a b'"}
	env, err := s.EnvToJSON()
	if err != nil {
		t.Fatal(err)
	}
	args, err := s.ArgsToJSON()
	if err != nil {
		t.Fatal(err)
	}

	var back Session
	if err := back.EnvFromJSON(env); err != nil {
		t.Fatal(err)
	}
	if err := back.ArgsFromJSON(args); err != nil {
		t.Fatal(err)
	}
	if back.Env["TERM"] != "xterm-256color" || len(back.Args) != 2 || back.Args[1] != "echo 'a b'" {
		t.Errorf("Round trip mismatch: env=%v args=%q", back.Env, back.Args)
	}
	if err := back.ArgsFromJSON("{"); err == nil {
		t.Error("Expected error for malformed args column")
	}
}

func TestStatusTerminal(t *testing.T) {
	if SessionStatusRunning.Terminal() {
		t.Error("running must not be terminal")
	}
	for _, s := range []SessionStatus{SessionStatusExited, SessionStatusSignaled, SessionStatusFailed} {
		if !s.Terminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
}
