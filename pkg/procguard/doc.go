// Package procguard guarantees that a spawned child process reaches a known
// terminal state however the owning scope exits.
//
// A Guard pairs a process with a Strategy. When the guard is disposed,
// usually through a deferred Close, the strategy runs exactly once:
//
//	Wait                     wait indefinitely
//	WaitTimeout(d)           wait up to d, leave the process running afterwards
//	WaitTimeoutKill(d)       wait up to d, then kill and wait
//	CtrlC                    send a graceful interrupt, do not wait
//	CtrlCWait                interrupt, wait indefinitely
//	CtrlCWaitTimeout(d)      interrupt, wait up to d
//	CtrlCWaitTimeoutKill(d)  interrupt, wait up to d, then kill and wait
//	Kill                     kill, do not wait
//	KillWait                 kill and wait
//
// Example:
//
//	g, err := procguard.Spawn(exec.Command("server", "--port", "0"),
//	    procguard.CtrlCWaitTimeoutKill(5*time.Second))
//	if err != nil {
//	    return err
//	}
//	defer g.Close()
//
// Close swallows teardown errors because a deferred call cannot return them;
// they are logged at warn level. Callers that need the outcome call Dispose,
// which returns the Disposition and any error. Release disowns the process so
// that disposal does nothing.
//
// # Interrupts
//
// On Unix the interrupt is SIGINT addressed to the child's pid only.
//
// On Windows there is no per-process interrupt. The child must lead its own
// console process group (Start and Spawn create it with
// CREATE_NEW_PROCESS_GROUP; callers of Attach must do so themselves), and
// CTRL_BREAK is broadcast to that group while this process temporarily
// ignores console control events.
package procguard
