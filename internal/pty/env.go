package pty

import (
	"os"
	"sort"
	"strings"
	"unicode/utf16"
)

// EnvBlock converts env into sorted KEY=VALUE strings.
func EnvBlock(env map[string]string) ([]string, error) {
	if err := validateEnv(env); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out, nil
}

// EnvBlockUTF16 encodes env as a Windows environment block: UTF-16
// KEY=VALUE entries, each NUL terminated, followed by one more NUL.
// An empty env still yields a valid, double-NUL terminated block.
func EnvBlockUTF16(env map[string]string) ([]uint16, error) {
	entries, err := EnvBlock(env)
	if err != nil {
		return nil, err
	}
	var block []uint16
	for _, e := range entries {
		block = append(block, utf16.Encode([]rune(e))...)
		block = append(block, 0)
	}
	if len(block) == 0 {
		block = append(block, 0)
	}
	return append(block, 0), nil
}

// Environ returns the current process environment as a map. Later
// duplicates win, matching how exec resolves them.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

func validateEnv(env map[string]string) error {
	for k, v := range env {
		if k == "" {
			return invalidArgument("env", "empty environment variable name")
		}
		if strings.ContainsAny(k, "=\x00") {
			return invalidArgument("env", "invalid environment variable name %q", k)
		}
		if strings.ContainsRune(v, 0) {
			return invalidArgument("env", "environment variable %s contains NUL", k)
		}
	}
	return nil
}
