//go:build !windows

package procguard

import (
	"errors"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// prepareCommand is a no-op: SIGINT can be addressed to a single pid.
func prepareCommand(_ *exec.Cmd) {}

// sendInterrupt delivers SIGINT to the process itself, never to its process
// group, so the caller and any siblings are unaffected.
func sendInterrupt(p *os.Process) error {
	err := p.Signal(unix.SIGINT)
	if err == nil || errors.Is(err, os.ErrProcessDone) || errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
