package procguard

import (
	"errors"
	"os/exec"
	"sync"
)

// Run spawns cmd, calls fn with the running process and disposes the guard
// when fn returns or panics. A panic is re-raised after disposal. Run returns
// fn's error; teardown errors are logged as by Guard.Close.
func Run(cmd *exec.Cmd, s Strategy, fn func(Process) error, opts ...Option) error {
	g, err := Spawn(cmd, s, opts...)
	if err != nil {
		return err
	}
	defer g.Close()
	return fn(g.Process())
}

// Scope owns several guards and disposes them in reverse order of
// acquisition, like a sequence of deferred Close calls.
type Scope struct {
	mu     sync.Mutex
	guards []*Guard
	opts   []Option
}

// NewScope returns an empty scope. The options apply to guards created by
// Scope.Spawn.
func NewScope(opts ...Option) *Scope {
	return &Scope{opts: opts}
}

// Add hands g to the scope.
func (s *Scope) Add(g *Guard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guards = append(s.guards, g)
}

// Spawn starts cmd under strategy st and adds the guard to the scope.
func (s *Scope) Spawn(cmd *exec.Cmd, st Strategy) (*Guard, error) {
	g, err := Spawn(cmd, st, s.opts...)
	if err != nil {
		return nil, err
	}
	s.Add(g)
	return g, nil
}

// Len returns the number of guards owned by the scope.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.guards)
}

// Close disposes every guard, last acquired first. Released guards are
// skipped. All teardown errors are returned joined.
func (s *Scope) Close() error {
	s.mu.Lock()
	guards := s.guards
	s.guards = nil
	s.mu.Unlock()

	var errs []error
	for i := len(guards) - 1; i >= 0; i-- {
		if _, err := guards[i].Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
