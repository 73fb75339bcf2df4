package procguard

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrapped errors keep the underlying OS cause, so both the
// sentinel and the cause (for example syscall.EPERM) match with errors.Is.
var (
	ErrSpawnFailed  = errors.New("spawn failed")
	ErrSignalFailed = errors.New("interrupt failed")
	ErrWaitFailed   = errors.New("wait failed")
	ErrKillFailed   = errors.New("kill failed")
	ErrNotStarted   = errors.New("process not started")
)

func wrapErr(kind error, pid int, err error) error {
	return fmt.Errorf("%w: pid %d: %w", kind, pid, err)
}
