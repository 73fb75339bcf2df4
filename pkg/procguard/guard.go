package procguard

import (
	"log/slog"
	"os/exec"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a Guard.
type State int32

// Guard states.
const (
	StateActive   State = iota // strategy will run on disposal
	StateReleased              // process handed back to the caller
	StateDisposed              // strategy has run
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateReleased:
		return "released"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Report describes one disposal. It is passed to the observer registered
// with WithObserver.
type Report struct {
	Pid         int
	Strategy    Strategy
	Disposition Disposition
	Err         error
	Elapsed     time.Duration
}

// Option configures a Guard.
type Option func(*Guard)

// WithLogger sets the logger used for disposal diagnostics.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithObserver registers a function called after the strategy has run.
func WithObserver(fn func(Report)) Option {
	return func(g *Guard) {
		g.observer = fn
	}
}

// Guard ties a process to a termination strategy that runs when the owning
// scope ends:
//
//	g, err := procguard.Spawn(exec.Command("worker"), procguard.CtrlCWaitTimeoutKill(5*time.Second))
//	if err != nil {
//		return err
//	}
//	defer g.Close()
//
// The strategy runs at most once. Release hands the process back without
// running it.
type Guard struct {
	process  Process
	strategy Strategy
	state    atomic.Int32
	logger   *slog.Logger
	observer func(Report)
}

// New guards an already running process.
func New(p Process, s Strategy, opts ...Option) *Guard {
	g := &Guard{
		process:  p,
		strategy: s,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.state.Store(int32(StateActive))
	return g
}

// Spawn starts cmd and guards the resulting process. If the OS cannot
// create the process the error wraps ErrSpawnFailed and no guard is returned.
func Spawn(cmd *exec.Cmd, s Strategy, opts ...Option) (*Guard, error) {
	h, err := Start(cmd)
	if err != nil {
		return nil, err
	}
	g := New(h, s, opts...)
	g.logger.Debug("Process spawned", "pid", h.Pid(), "command", cmd.String(), "strategy", s.String())
	return g, nil
}

// Process returns the guarded process.
func (g *Guard) Process() Process { return g.process }

// Strategy returns the strategy chosen at construction.
func (g *Guard) Strategy() Strategy { return g.strategy }

// State returns the current lifecycle state.
func (g *Guard) State() State { return State(g.state.Load()) }

// Release disowns the process and returns it. No termination action is
// taken, now or later.
func (g *Guard) Release() Process {
	if g.state.CompareAndSwap(int32(StateActive), int32(StateReleased)) {
		g.logger.Debug("Guard released", "pid", g.process.Pid())
	}
	return g.process
}

// Dispose runs the strategy if the guard is still active and reports the
// outcome. Once released or disposed it returns a zero Disposition and nil.
func (g *Guard) Dispose() (Disposition, error) {
	if !g.state.CompareAndSwap(int32(StateActive), int32(StateDisposed)) {
		return Disposition{}, nil
	}

	start := time.Now()
	d, err := terminate(g.process, g.strategy, g.logger)
	elapsed := time.Since(start)

	if g.observer != nil {
		g.observer(Report{
			Pid:         g.process.Pid(),
			Strategy:    g.strategy,
			Disposition: d,
			Err:         err,
			Elapsed:     elapsed,
		})
	}
	return d, err
}

// Close is the scope-exit hook. It runs the strategy once and, because a
// deferred call has nowhere to return an error to, logs any teardown error
// instead of returning it. Use Dispose to observe the result.
func (g *Guard) Close() {
	d, err := g.Dispose()
	if err != nil {
		g.logger.Warn("Process teardown incomplete",
			"pid", g.process.Pid(), "strategy", g.strategy.String(), "disposition", d.String(), "error", err)
	}
}
