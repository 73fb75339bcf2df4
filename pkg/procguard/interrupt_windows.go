//go:build windows

package procguard

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/windows"
)

// Console control events are delivered asynchronously on a thread created in
// every receiving process, so the ignore registration outlives the call to
// GenerateConsoleCtrlEvent by this much.
const ctrlEventSettle = 100 * time.Millisecond

var (
	kernel32                  = windows.NewLazySystemDLL("kernel32.dll")
	procSetConsoleCtrlHandler = kernel32.NewProc("SetConsoleCtrlHandler")
)

// prepareCommand starts the child as the leader of a new console process
// group. Interrupts are broadcast per group, so without this the event would
// also reach every process sharing our group.
func prepareCommand(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= windows.CREATE_NEW_PROCESS_GROUP
}

// sendInterrupt broadcasts CTRL_BREAK to the process group led by p. CTRL_C
// cannot be addressed to a group and is disabled in processes created with
// CREATE_NEW_PROCESS_GROUP, so CTRL_BREAK is the only usable event.
func sendInterrupt(p *os.Process) error {
	release, err := consoleIgnore.acquire()
	if err != nil {
		return fmt.Errorf("ignore console control events: %w", err)
	}
	defer func() {
		time.Sleep(ctrlEventSettle)
		release()
	}()

	return windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(p.Pid))
}

// ctrlIgnore is a reference-counted registration of a console control
// handler that swallows CTRL_C and CTRL_BREAK. The handler is installed when
// the first interrupt is in flight and removed when the last one finishes.
type ctrlIgnore struct {
	mu      sync.Mutex
	refs    int
	handler uintptr
}

var consoleIgnore ctrlIgnore

func (c *ctrlIgnore) acquire() (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refs == 0 {
		if c.handler == 0 {
			// NewCallback slots are never freed; create the one we need once.
			c.handler = windows.NewCallback(ignoreCtrlEvent)
		}
		if r, _, err := procSetConsoleCtrlHandler.Call(c.handler, 1); r == 0 {
			return nil, err
		}
	}
	c.refs++

	var once sync.Once
	return func() { once.Do(c.release) }, nil
}

func (c *ctrlIgnore) release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refs--
	if c.refs == 0 {
		_, _, _ = procSetConsoleCtrlHandler.Call(c.handler, 0)
	}
}

func ignoreCtrlEvent(ctrlType uint32) uintptr {
	switch ctrlType {
	case windows.CTRL_C_EVENT, windows.CTRL_BREAK_EVENT:
		return 1
	default:
		return 0
	}
}
