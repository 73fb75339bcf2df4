package procguard

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Process is the capability the termination engine drives. *Handle is the
// production implementation.
type Process interface {
	Pid() int
	TryWait() (ExitStatus, bool, error)
	Wait() (ExitStatus, error)
	WaitTimeout(d time.Duration) (ExitStatus, bool, error)
	Interrupt() error
	Kill() error
}

// Outcome classifies a Disposition.
type Outcome int

// Disposition outcomes.
const (
	// OutcomeUnknown means the process state could not be determined:
	// waiting failed, or a no-wait kill failed.
	OutcomeUnknown Outcome = iota
	// OutcomeExited means a wait observed the process exit.
	OutcomeExited
	// OutcomeTimedOut means a bounded wait expired and the process was left running.
	OutcomeTimedOut
	// OutcomeKilled means the process was killed.
	OutcomeKilled
	// OutcomeAlreadyExited means a phase found the process already exited
	// and the remaining phases were skipped.
	OutcomeAlreadyExited
	// OutcomeInterrupted means an interrupt was sent and exit was not awaited.
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExited:
		return "exited"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeKilled:
		return "killed"
	case OutcomeAlreadyExited:
		return "already_exited"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Disposition is the recorded result of running a strategy once.
type Disposition struct {
	Outcome Outcome
	// Status is valid when the exit was observed (Exited, AlreadyExited and
	// Killed after a wait).
	Status ExitStatus
	// Observed reports whether Status holds a real exit status.
	Observed bool
}

func (d Disposition) String() string {
	if d.Observed {
		return fmt.Sprintf("%s(%d)", d.Outcome, d.Status.Code)
	}
	return d.Outcome.String()
}

// Terminate runs strategy s against p exactly once and reports what happened.
//
// The engine is best effort: errors from individual phases are collected and
// returned joined, but never stop the sequence. An interrupt or kill error is
// discarded if the process turns out to have exited anyway. Terminate blocks
// without bound only for strategies that wait without a timeout.
func Terminate(p Process, s Strategy) (Disposition, error) {
	return terminate(p, s, slog.Default())
}

func terminate(p Process, s Strategy, logger *slog.Logger) (Disposition, error) {
	e := &engine{p: p, s: s, logger: logger}
	return e.run()
}

type engine struct {
	p      Process
	s      Strategy
	logger *slog.Logger
	errs   []error
}

func (e *engine) record(err error) {
	if err != nil {
		e.errs = append(e.errs, err)
	}
}

func (e *engine) finish(d Disposition) (Disposition, error) {
	e.logger.Debug("Termination finished",
		"pid", e.p.Pid(), "strategy", e.s.String(), "disposition", d.String())
	return d, errors.Join(e.errs...)
}

// poll reports a confirmed exit without blocking.
func (e *engine) poll() (ExitStatus, bool) {
	status, exited, err := e.p.TryWait()
	if err != nil {
		e.record(err)
		return status, false
	}
	return status, exited
}

func (e *engine) run() (Disposition, error) {
	if status, exited := e.poll(); exited {
		return e.finish(alreadyExited(status))
	}

	if e.s.Kills() {
		return e.killPhase()
	}

	if e.s.Interrupts() {
		if err := e.p.Interrupt(); err != nil {
			e.logger.Debug("Interrupt failed", "pid", e.p.Pid(), "error", err)
			if status, exited := e.poll(); exited {
				return e.finish(alreadyExited(status))
			}
			e.record(err)
		}
		if !e.s.Waits() {
			return e.finish(Disposition{Outcome: OutcomeInterrupted})
		}
	}

	timeout, bounded := e.s.Timeout()
	if !bounded {
		return e.waitPhase(OutcomeExited)
	}

	status, exited, err := e.p.WaitTimeout(timeout)
	if err != nil {
		e.record(err)
		return e.finish(Disposition{Outcome: OutcomeUnknown})
	}
	if exited {
		return e.finish(exitedWith(status))
	}
	if !e.s.EscalatesOnTimeout() {
		return e.finish(Disposition{Outcome: OutcomeTimedOut})
	}

	e.logger.Debug("Wait timed out, killing", "pid", e.p.Pid(), "timeout", timeout)
	if status, exited := e.poll(); exited {
		return e.finish(alreadyExited(status))
	}
	return e.killPhase()
}

// killPhase kills the process and, unless the strategy is the no-wait Kill,
// waits for it without bound. A no-wait Kill whose kill failed reports
// Unknown, since nothing confirms the process stopped.
func (e *engine) killPhase() (Disposition, error) {
	killed := true
	if err := e.p.Kill(); err != nil {
		if status, exited := e.poll(); exited {
			return e.finish(alreadyExited(status))
		}
		e.record(err)
		killed = false
	}
	if e.s.Kind() == KindKill {
		if !killed {
			return e.finish(Disposition{Outcome: OutcomeUnknown})
		}
		return e.finish(Disposition{Outcome: OutcomeKilled})
	}
	return e.waitPhase(OutcomeKilled)
}

func (e *engine) waitPhase(outcome Outcome) (Disposition, error) {
	status, err := e.p.Wait()
	if err != nil {
		e.record(err)
		return e.finish(Disposition{Outcome: OutcomeUnknown})
	}
	return e.finish(Disposition{Outcome: outcome, Status: status, Observed: true})
}

func exitedWith(status ExitStatus) Disposition {
	return Disposition{Outcome: OutcomeExited, Status: status, Observed: true}
}

// alreadyExited is the disposition for an exit found by a poll at a phase
// boundary, before the next phase acted.
func alreadyExited(status ExitStatus) Disposition {
	return Disposition{Outcome: OutcomeAlreadyExited, Status: status, Observed: true}
}
