package ptyhost

import "github.com/ptyhost/ptyhost/internal/pty"

type (
	ConsoleRequest = pty.ConsoleRequest
	ConsoleHandle  = pty.ConsoleHandle
)

// SpawnConsole creates a pseudo console and its pipes without starting a
// process. Connect starts the process.
func SpawnConsole(req ConsoleRequest, c Consumer) (*ConsoleHandle, error) {
	return pty.SpawnConsole(req, c)
}

// Connect starts file on the console created by SpawnConsole and returns its pid.
func Connect(id uint64, file string, args []string, dir string, env map[string]string) (int, error) {
	return pty.Connect(id, file, args, dir, env)
}

// ConsoleProcessList lists the processes sharing pid's console.
func ConsoleProcessList(pid int) ([]int, error) {
	return pty.ConsoleProcessList(pid)
}
