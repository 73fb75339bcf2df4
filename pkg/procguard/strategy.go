package procguard

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies one of the termination strategies.
type Kind int

// Strategy kinds.
const (
	KindWait Kind = iota
	KindWaitTimeout
	KindWaitTimeoutKill
	KindCtrlC
	KindCtrlCWait
	KindCtrlCWaitTimeout
	KindCtrlCWaitTimeoutKill
	KindKill
	KindKillWait
)

var kindNames = [...]string{
	KindWait:                 "wait",
	KindWaitTimeout:          "wait-timeout",
	KindWaitTimeoutKill:      "wait-timeout-kill",
	KindCtrlC:                "ctrlc",
	KindCtrlCWait:            "ctrlc-wait",
	KindCtrlCWaitTimeout:     "ctrlc-wait-timeout",
	KindCtrlCWaitTimeoutKill: "ctrlc-wait-timeout-kill",
	KindKill:                 "kill",
	KindKillWait:             "kill-wait",
}

var kindDescriptions = [...]string{
	KindWait:                 "Wait indefinitely for the process to exit.",
	KindWaitTimeout:          "Wait up to the timeout; leave the process running if it outlives it.",
	KindWaitTimeoutKill:      "Wait up to the timeout, then kill the process and wait for it.",
	KindCtrlC:                "Send a graceful interrupt and return without waiting.",
	KindCtrlCWait:            "Send a graceful interrupt and wait indefinitely.",
	KindCtrlCWaitTimeout:     "Send a graceful interrupt and wait up to the timeout.",
	KindCtrlCWaitTimeoutKill: "Send a graceful interrupt, wait up to the timeout, then kill.",
	KindKill:                 "Kill the process and return without waiting.",
	KindKillWait:             "Kill the process and wait for it to exit.",
}

// String returns the kebab-case name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("unknown(%d)", int(k))
	}
	return kindNames[k]
}

// Timed reports whether strategies of this kind carry a timeout.
func (k Kind) Timed() bool {
	switch k {
	case KindWaitTimeout, KindWaitTimeoutKill, KindCtrlCWaitTimeout, KindCtrlCWaitTimeoutKill:
		return true
	default:
		return false
	}
}

// Strategy describes what to do with a process when its guard is disposed.
// Values are immutable; build them with the constructors below. The zero
// value is Wait.
type Strategy struct {
	kind    Kind
	timeout time.Duration
}

// Wait waits indefinitely for the process to exit.
func Wait() Strategy { return Strategy{kind: KindWait} }

// WaitTimeout waits up to d for the process to exit.
func WaitTimeout(d time.Duration) Strategy { return timed(KindWaitTimeout, d) }

// WaitTimeoutKill waits up to d, then kills the process and waits for it.
func WaitTimeoutKill(d time.Duration) Strategy { return timed(KindWaitTimeoutKill, d) }

// CtrlC sends a graceful interrupt and does not wait.
func CtrlC() Strategy { return Strategy{kind: KindCtrlC} }

// CtrlCWait sends a graceful interrupt and waits indefinitely.
func CtrlCWait() Strategy { return Strategy{kind: KindCtrlCWait} }

// CtrlCWaitTimeout sends a graceful interrupt and waits up to d.
func CtrlCWaitTimeout(d time.Duration) Strategy { return timed(KindCtrlCWaitTimeout, d) }

// CtrlCWaitTimeoutKill sends a graceful interrupt, waits up to d, then kills.
func CtrlCWaitTimeoutKill(d time.Duration) Strategy { return timed(KindCtrlCWaitTimeoutKill, d) }

// Kill kills the process and does not wait.
func Kill() Strategy { return Strategy{kind: KindKill} }

// KillWait kills the process and waits for it to exit.
func KillWait() Strategy { return Strategy{kind: KindKillWait} }

func timed(k Kind, d time.Duration) Strategy {
	if d < 0 {
		d = 0
	}
	return Strategy{kind: k, timeout: d}
}

// Kind returns the strategy kind.
func (s Strategy) Kind() Kind { return s.kind }

// Interrupts reports whether the strategy starts with a graceful interrupt.
func (s Strategy) Interrupts() bool {
	switch s.kind {
	case KindCtrlC, KindCtrlCWait, KindCtrlCWaitTimeout, KindCtrlCWaitTimeoutKill:
		return true
	default:
		return false
	}
}

// Kills reports whether the strategy kills the process unconditionally.
func (s Strategy) Kills() bool {
	return s.kind == KindKill || s.kind == KindKillWait
}

// Waits reports whether the strategy waits for the process at all.
func (s Strategy) Waits() bool {
	return s.kind != KindCtrlC && s.kind != KindKill
}

// Timeout returns the wait bound of timed strategies.
func (s Strategy) Timeout() (time.Duration, bool) {
	if !s.kind.Timed() {
		return 0, false
	}
	return s.timeout, true
}

// EscalatesOnTimeout reports whether an expired wait is followed by a kill.
func (s Strategy) EscalatesOnTimeout() bool {
	return s.kind == KindWaitTimeoutKill || s.kind == KindCtrlCWaitTimeoutKill
}

// String returns the canonical text form, e.g. "ctrlc-wait-timeout-kill:5s".
func (s Strategy) String() string {
	if s.kind.Timed() {
		return s.kind.String() + ":" + s.timeout.String()
	}
	return s.kind.String()
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if s.kind < 0 || int(s.kind) >= len(kindNames) {
		return nil, fmt.Errorf("invalid strategy kind %d", int(s.kind))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStrategy parses the text form produced by Strategy.String. Names are
// case-insensitive and underscores are accepted in place of dashes. Timed
// kinds require a Go duration after a colon.
func ParseStrategy(text string) (Strategy, error) {
	name, arg, hasArg := strings.Cut(strings.TrimSpace(text), ":")
	name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")

	kind := Kind(-1)
	for k, n := range kindNames {
		if n == name {
			kind = Kind(k)
			break
		}
	}
	if kind < 0 {
		return Strategy{}, fmt.Errorf("unknown strategy %q", text)
	}

	if !kind.Timed() {
		if hasArg {
			return Strategy{}, fmt.Errorf("strategy %s does not take a timeout", name)
		}
		return Strategy{kind: kind}, nil
	}

	if !hasArg {
		return Strategy{}, fmt.Errorf("strategy %s requires a timeout, e.g. %s:5s", name, name)
	}
	d, err := time.ParseDuration(strings.TrimSpace(arg))
	if err != nil {
		return Strategy{}, fmt.Errorf("strategy %s: invalid timeout: %w", name, err)
	}
	if d < 0 {
		return Strategy{}, fmt.Errorf("strategy %s: negative timeout %s", name, d)
	}
	return timed(kind, d), nil
}

// StrategyInfo describes one strategy kind.
type StrategyInfo struct {
	Kind        Kind
	Name        string
	Timed       bool
	Description string
}

// Strategies lists every strategy kind in declaration order.
func Strategies() []StrategyInfo {
	infos := make([]StrategyInfo, 0, len(kindNames))
	for k := range kindNames {
		kind := Kind(k)
		infos = append(infos, StrategyInfo{
			Kind:        kind,
			Name:        kind.String(),
			Timed:       kind.Timed(),
			Description: kindDescriptions[kind],
		})
	}
	return infos
}
