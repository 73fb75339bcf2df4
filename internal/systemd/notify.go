// Package systemd reports the guarded child's lifecycle to the service
// manager when procguard runs as a Type=notify unit.
package systemd

import (
	"fmt"
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/procguard/internal/events"
)

// EventSource is the subscription side of the event bus.
type EventSource interface {
	Subscribe(handler any) func()
}

// Notifier translates bus events into sd_notify messages. Outside systemd
// (no NOTIFY_SOCKET) every notification is a no-op.
type Notifier struct {
	logger *slog.Logger
	notify func(state string) (bool, error)
}

// NewNotifier creates a notifier that writes to $NOTIFY_SOCKET.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
	}
}

// Subscribe sends READY=1 once the child is running, STOPPING=1 on the first
// stop trigger and a final STATUS line after disposal.
// Returns a function that removes every subscription.
func (n *Notifier) Subscribe(bus EventSource) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.ProcessSpawnedEvent) {
			n.send(fmt.Sprintf("%s\nSTATUS=Running pid %d (%s)", daemon.SdNotifyReady, e.Pid, e.Strategy))
		}),
		bus.Subscribe(func(e events.StopRequestedEvent) {
			n.send(fmt.Sprintf("%s\nSTATUS=Stopping child: %s", daemon.SdNotifyStopping, e.Reason))
		}),
		bus.Subscribe(func(e events.ProcessDisposedEvent) {
			n.send(fmt.Sprintf("STATUS=Child disposed: %s", e.Outcome))
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(state)
	switch {
	case err != nil:
		n.logger.Warn("sd_notify failed", "error", err)
	case !sent:
		n.logger.Debug("Not running under systemd, notification skipped")
	}
}
