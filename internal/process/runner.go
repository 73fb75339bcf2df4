package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/procguard/internal/config"
	"github.com/smazurov/procguard/internal/events"
	"github.com/smazurov/procguard/pkg/procguard"
)

// Exit codes reported for dispositions that carry no child exit code.
const (
	ExitSpawnFailed = 1
	ExitUnknown     = 1
	ExitTimedOut    = 124
	ExitInterrupted = 130
	ExitKilled      = 137
)

// Options describes one supervised child.
type Options struct {
	// Args is the command line; Args[0] is resolved through PATH.
	Args     []string
	Strategy procguard.Strategy
	// Deadline bounds how long the child may run. Zero means no bound.
	Deadline time.Duration
	// StopFile requests disposal when the file appears. Its directory must exist.
	StopFile string
	Dir      string
	Env      []string
	// GuardLogger receives the guard's own diagnostics. Defaults to the
	// runner's logger.
	GuardLogger *slog.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Result is what a Run produced.
type Result struct {
	ExitCode    int
	Reason      events.StopReason
	Disposition procguard.Disposition
	// Err is the spawn error or the teardown error from Dispose.
	Err error
}

// Runner spawns one guarded child and disposes it on the first stop trigger:
// the child exiting, SIGINT/SIGTERM, the deadline, the stop file or Shutdown.
type Runner struct {
	opts    Options
	bus     *events.Bus
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	signals []os.Signal
}

// NewRunner creates a runner. bus may be nil when nobody listens.
func NewRunner(opts Options, bus *events.Bus, logger *slog.Logger) *Runner {
	if bus == nil {
		bus = events.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		opts:    opts,
		bus:     bus,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// Shutdown asks a running Run to dispose its child.
func (r *Runner) Shutdown() {
	r.cancel()
}

func (r *Runner) command() (*exec.Cmd, error) {
	if len(r.opts.Args) == 0 {
		return nil, fmt.Errorf("%w: empty command", procguard.ErrSpawnFailed)
	}
	cmd := exec.Command(r.opts.Args[0], r.opts.Args[1:]...)
	cmd.Dir = r.opts.Dir
	if len(r.opts.Env) > 0 {
		cmd.Env = append(os.Environ(), r.opts.Env...)
	}
	// The child shares our terminal unless the caller redirects it
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if r.opts.Stdin != nil {
		cmd.Stdin = r.opts.Stdin
	}
	if r.opts.Stdout != nil {
		cmd.Stdout = r.opts.Stdout
	}
	if r.opts.Stderr != nil {
		cmd.Stderr = r.opts.Stderr
	}
	return cmd, nil
}

// Run blocks until the child has been disposed and reports the result.
func (r *Runner) Run() Result {
	cmd, err := r.command()
	if err != nil {
		r.logger.Error("Failed to start process", "error", err)
		return Result{ExitCode: ExitSpawnFailed, Err: err}
	}

	// Subscribe before any trigger can fire
	stopCh := make(chan events.StopRequestedEvent, 4)
	unsub := events.SubscribeToChannel(r.bus, stopCh)
	defer unsub()

	// Signals are caught from before the child exists, so one sent the
	// moment it starts is queued rather than killing procguard.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, r.signals...)
	defer signal.Stop(sigChan)

	guardLogger := r.opts.GuardLogger
	if guardLogger == nil {
		guardLogger = r.logger
	}
	guard, err := procguard.Spawn(cmd, r.opts.Strategy,
		procguard.WithLogger(guardLogger),
		procguard.WithObserver(r.publishDisposal))
	if err != nil {
		r.logger.Error("Failed to start process", "error", err, "command", cmd.String())
		return Result{ExitCode: ExitSpawnFailed, Err: err}
	}
	defer guard.Close()

	handle := guard.Process().(*procguard.Handle)
	r.logger.Info("Process started", "pid", handle.Pid(), "command", cmd.String(), "strategy", r.opts.Strategy.String())
	r.bus.Publish(events.ProcessSpawnedEvent{
		Pid:       handle.Pid(),
		Command:   r.opts.Args,
		Strategy:  r.opts.Strategy.String(),
		Timestamp: timestamp(),
	})

	stopTriggers := r.startTriggers(sigChan)
	defer stopTriggers()

	var reason events.StopReason
	select {
	case <-handle.Done():
		reason = events.StopChildExited
		r.logger.Info("Process exited on its own", "pid", handle.Pid())
		r.publishStop(reason, "")
	case ev := <-stopCh:
		reason = ev.Reason
		r.logger.Info("Stop requested", "pid", handle.Pid(), "reason", string(reason), "detail", ev.Detail)
	case <-r.ctx.Done():
		reason = events.StopShutdown
		r.logger.Info("Context cancelled, disposing process", "pid", handle.Pid())
		r.publishStop(reason, "")
	}

	disp, err := guard.Dispose()
	exitCode := ExitCode(disp)
	if err != nil {
		r.logger.Warn("Process teardown incomplete", "pid", handle.Pid(), "disposition", disp.String(), "error", err)
	}
	r.logger.Info("Process disposed", "pid", handle.Pid(), "disposition", disp.String(), "exit_code", exitCode)

	return Result{ExitCode: exitCode, Reason: reason, Disposition: disp, Err: err}
}

// startTriggers arms the signal, deadline and stop-file triggers. Each one
// publishes a StopRequestedEvent. sigChan must already be registered with
// signal.Notify. The returned function disarms the triggers.
func (r *Runner) startTriggers(sigChan <-chan os.Signal) func() {
	var cleanups []func()

	sigDone := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			r.publishStop(events.StopSignal, sig.String())
		case <-sigDone:
		}
	}()
	cleanups = append(cleanups, func() { close(sigDone) })

	if r.opts.Deadline > 0 {
		timer := time.AfterFunc(r.opts.Deadline, func() {
			r.publishStop(events.StopDeadline, r.opts.Deadline.String())
		})
		cleanups = append(cleanups, func() { timer.Stop() })
	}

	if r.opts.StopFile != "" {
		if w, err := r.watchStopFile(); err != nil {
			r.logger.Warn("Stop file trigger disabled", "path", r.opts.StopFile, "error", err)
		} else {
			cleanups = append(cleanups, func() {
				if err := w.Stop(); err != nil {
					r.logger.Debug("Stop file watcher close failed", "error", err)
				}
			})
		}
	}

	return func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
}

func (r *Runner) watchStopFile() (*config.Watcher[os.FileInfo], error) {
	w := config.NewConfigWatcher(r.opts.StopFile, os.Stat, r.logger,
		config.WithDebounce[os.FileInfo](10*time.Millisecond),
		config.WithLoadOnStart[os.FileInfo]())
	w.OnReload(func(os.FileInfo) {
		r.publishStop(events.StopFile, r.opts.StopFile)
	})
	if err := w.Start(); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *Runner) publishStop(reason events.StopReason, detail string) {
	r.bus.Publish(events.StopRequestedEvent{
		Reason:    reason,
		Detail:    detail,
		Timestamp: timestamp(),
	})
}

func (r *Runner) publishDisposal(rep procguard.Report) {
	ev := events.ProcessDisposedEvent{
		Pid:         rep.Pid,
		Strategy:    rep.Strategy.String(),
		Outcome:     rep.Disposition.Outcome.String(),
		ExitCode:    rep.Disposition.Status.Code,
		Observed:    rep.Disposition.Observed,
		DurationSec: rep.Elapsed.Seconds(),
		Timestamp:   timestamp(),
	}
	if rep.Err != nil {
		ev.Error = rep.Err.Error()
	}
	r.bus.Publish(ev)
}

// ExitCode maps a disposition to the exit code procguard itself reports.
// An observed exit passes the child's code through; a child ended by a
// signal reports 128+signal like a shell does.
func ExitCode(d procguard.Disposition) int {
	switch d.Outcome {
	case procguard.OutcomeKilled:
		return ExitKilled
	case procguard.OutcomeTimedOut:
		return ExitTimedOut
	case procguard.OutcomeInterrupted:
		return ExitInterrupted
	case procguard.OutcomeExited, procguard.OutcomeAlreadyExited:
		return statusCode(d.Status)
	default:
		return ExitUnknown
	}
}

func statusCode(s procguard.ExitStatus) int {
	if s.Code >= 0 {
		return s.Code
	}
	if s.State != nil {
		if ws, ok := s.State.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
	}
	return ExitUnknown
}

// IsSpawnError reports whether a Result failed before the child started.
func IsSpawnError(err error) bool {
	return errors.Is(err, procguard.ErrSpawnFailed)
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
