package events

// Event type constants for kelindar/event.
const (
	TypeProcessSpawned uint32 = iota + 1
	TypeStopRequested
	TypeProcessDisposed
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StopReason says what ended supervision of a child.
type StopReason string

// Stop reasons.
const (
	StopChildExited StopReason = "child_exited"
	StopSignal      StopReason = "signal"
	StopDeadline    StopReason = "deadline"
	StopFile        StopReason = "stop_file"
	StopShutdown    StopReason = "shutdown"
)

// ProcessSpawnedEvent is published once a guarded child is running.
type ProcessSpawnedEvent struct {
	Pid       int      `json:"pid"`
	Command   []string `json:"command"`
	Strategy  string   `json:"strategy"`
	Timestamp string   `json:"timestamp"`
}

// Type returns the event type identifier for ProcessSpawnedEvent.
func (e ProcessSpawnedEvent) Type() uint32 { return TypeProcessSpawned }

// StopRequestedEvent asks the runner to dispose its guard. Detail carries
// the signal name or stop file path.
type StopRequestedEvent struct {
	Reason    StopReason `json:"reason"`
	Detail    string     `json:"detail,omitempty"`
	Timestamp string     `json:"timestamp"`
}

// Type returns the event type identifier for StopRequestedEvent.
func (e StopRequestedEvent) Type() uint32 { return TypeStopRequested }

// ProcessDisposedEvent reports the result of running a guard's strategy.
// ExitCode is only meaningful when Observed is true.
type ProcessDisposedEvent struct {
	Pid         int     `json:"pid"`
	Strategy    string  `json:"strategy"`
	Outcome     string  `json:"outcome"`
	ExitCode    int     `json:"exit_code"`
	Observed    bool    `json:"observed"`
	Error       string  `json:"error,omitempty"`
	DurationSec float64 `json:"duration_sec"`
	Timestamp   string  `json:"timestamp"`
}

// Type returns the event type identifier for ProcessDisposedEvent.
func (e ProcessDisposedEvent) Type() uint32 { return TypeProcessDisposed }
