// Package systemd reports service state to the service manager via sd_notify.
// All calls are no-ops when NOTIFY_SOCKET is unset.
package systemd

import (
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages and logs delivery failures.
type Notifier struct {
	logger *slog.Logger
	notify func(unsetEnvironment bool, state string) (bool, error)
}

// NewNotifier creates a notifier bound to the service manager socket.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logger: logger, notify: daemon.SdNotify}
}

// Ready reports that both processes of the run are up.
func (n *Notifier) Ready(status string) {
	n.send(daemon.SdNotifyReady + "\nSTATUS=" + status)
}

// Status updates the free-form status line.
func (n *Notifier) Status(status string) {
	n.send("STATUS=" + status)
}

// Stopping reports that cleanup has begun.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

func (n *Notifier) send(state string) {
	if n == nil {
		return
	}
	sent, err := n.notify(false, state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify sent", "state", state)
	}
}
