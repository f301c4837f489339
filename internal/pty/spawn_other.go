//go:build !linux && !darwin && !windows

package pty

// Spawn is not available on this platform.
func Spawn(req SpawnRequest, c Consumer) (*Session, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return nil, newError("spawn", AllocationFailed, "pseudo-terminals are not supported on this platform", nil)
}
