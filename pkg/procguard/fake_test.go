package procguard_test

import (
	"errors"
	"sync"
	"time"

	"github.com/smazurov/procguard/pkg/procguard"
)

// fakeProcess is a scripted procguard.Process. It never blocks: a Wait on a
// process that would not exit returns errWouldBlock instead.
type fakeProcess struct {
	mu sync.Mutex

	pid    int
	exited bool
	status procguard.ExitStatus

	exitOnInterrupt bool
	exitOnKill      bool
	exitOnWait      bool

	// exitAfterTimeout makes a bounded wait expire and the process exit
	// right after it.
	exitAfterTimeout bool

	interruptErr error
	killErr      error
	waitErr      error
	tryWaitErr   error

	calls []string
}

var errWouldBlock = errors.New("fake: wait would block forever")

func newFake(pid int) *fakeProcess {
	return &fakeProcess{pid: pid}
}

func (f *fakeProcess) exit(code int) {
	f.exited = true
	f.status = procguard.ExitStatus{Code: code}
}

func (f *fakeProcess) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeProcess) Pid() int { return f.pid }

func (f *fakeProcess) TryWait() (procguard.ExitStatus, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tryWaitErr != nil {
		return procguard.ExitStatus{}, false, f.tryWaitErr
	}
	return f.status, f.exited, nil
}

func (f *fakeProcess) Wait() (procguard.ExitStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "wait")
	if f.waitErr != nil {
		return procguard.ExitStatus{}, f.waitErr
	}
	if !f.exited && f.exitOnWait {
		f.exit(0)
	}
	if !f.exited {
		return procguard.ExitStatus{}, errWouldBlock
	}
	return f.status, nil
}

func (f *fakeProcess) WaitTimeout(time.Duration) (procguard.ExitStatus, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "wait_timeout")
	if f.waitErr != nil {
		return procguard.ExitStatus{}, false, f.waitErr
	}
	if !f.exited && f.exitOnWait {
		f.exit(0)
	}
	if !f.exited && f.exitAfterTimeout {
		f.exit(0)
		return procguard.ExitStatus{}, false, nil
	}
	return f.status, f.exited, nil
}

func (f *fakeProcess) Interrupt() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "interrupt")
	if f.exitOnInterrupt {
		f.exit(130)
	}
	return f.interruptErr
}

func (f *fakeProcess) Kill() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "kill")
	if f.exitOnKill {
		f.exit(-1)
	}
	return f.killErr
}
