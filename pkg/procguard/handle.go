package procguard

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// ExitStatus describes how a process ended.
type ExitStatus struct {
	// Code is the exit code, or -1 if the process was terminated by a signal.
	Code int
	// State is the OS-level process state. It may be nil for statuses that
	// were not produced by a real process.
	State *os.ProcessState
}

// Success reports whether the process exited with code 0.
func (s ExitStatus) Success() bool {
	return s.Code == 0
}

func (s ExitStatus) String() string {
	if s.State != nil {
		return s.State.String()
	}
	return fmt.Sprintf("exit status %d", s.Code)
}

// Handle owns one started command. A single reaper goroutine is the only
// caller of cmd.Wait; every other operation observes its result through the
// done channel, so callers must not call cmd.Wait themselves.
type Handle struct {
	cmd  *exec.Cmd
	pid  int
	done chan struct{}

	// Written by reap before done is closed.
	status  ExitStatus
	waitErr error
}

// Start prepares cmd for interrupt delivery, starts it and attaches a handle.
// Start failures wrap ErrSpawnFailed together with the OS error.
func Start(cmd *exec.Cmd) (*Handle, error) {
	if cmd == nil {
		return nil, fmt.Errorf("%w: nil command", ErrSpawnFailed)
	}
	prepareCommand(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawnFailed, cmd.Path, err)
	}
	return Attach(cmd)
}

// Attach wraps a command that has already been started.
//
// On Windows, graceful interrupts only work if the command was started with
// CREATE_NEW_PROCESS_GROUP; Start arranges that, callers of Attach must do it
// themselves.
func Attach(cmd *exec.Cmd) (*Handle, error) {
	if cmd == nil || cmd.Process == nil {
		return nil, ErrNotStarted
	}
	h := &Handle{
		cmd:  cmd,
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	go h.reap()
	return h, nil
}

func (h *Handle) reap() {
	err := h.cmd.Wait()
	if state := h.cmd.ProcessState; state != nil {
		// Pipe copy errors are reported alongside a valid state; the process
		// itself has exited, which is all the handle tracks.
		h.status = ExitStatus{Code: state.ExitCode(), State: state}
	} else {
		h.waitErr = err
	}
	close(h.done)
}

// Pid returns the process id.
func (h *Handle) Pid() int { return h.pid }

// Cmd returns the underlying command.
func (h *Handle) Cmd() *exec.Cmd { return h.cmd }

// Done returns a channel closed once the process has been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Handle) result() (ExitStatus, bool, error) {
	if h.waitErr != nil {
		return ExitStatus{Code: -1}, false, wrapErr(ErrWaitFailed, h.pid, h.waitErr)
	}
	return h.status, true, nil
}

// TryWait reports the exit status if the process has exited. It never blocks.
func (h *Handle) TryWait() (ExitStatus, bool, error) {
	if !h.exited() {
		return ExitStatus{}, false, nil
	}
	return h.result()
}

// Wait blocks until the process exits.
func (h *Handle) Wait() (ExitStatus, error) {
	<-h.done
	status, _, err := h.result()
	return status, err
}

// WaitTimeout blocks for at most d. If the process is still running when d
// elapses it returns false and leaves the process untouched.
func (h *Handle) WaitTimeout(d time.Duration) (ExitStatus, bool, error) {
	if d <= 0 {
		return h.TryWait()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-h.done:
		return h.result()
	case <-timer.C:
		return ExitStatus{}, false, nil
	}
}

// Kill terminates the process forcefully. Killing a process that has
// already exited succeeds.
func (h *Handle) Kill() error {
	if h.exited() {
		return nil
	}
	if err := h.cmd.Process.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) || h.exited() {
			return nil
		}
		return wrapErr(ErrKillFailed, h.pid, err)
	}
	return nil
}

// Interrupt asks the process to stop gracefully. Interrupting a process that
// has already exited succeeds.
func (h *Handle) Interrupt() error {
	if h.exited() {
		return nil
	}
	if err := sendInterrupt(h.cmd.Process); err != nil {
		if h.exited() {
			return nil
		}
		return wrapErr(ErrSignalFailed, h.pid, err)
	}
	return nil
}
