package binding

import (
	"errors"
	"log/slog"

	"github.com/roach88/livelist/internal/list"
)

// ErrStopped is returned by Flush once the binding has stopped.
var ErrStopped = errors.New("binding stopped")

// logDropped records an event discarded by the stale delivery guard.
func logDropped(logger *slog.Logger, env envelope, live string) {
	logger.Debug("dropped stale event",
		"kind", env.event.Kind.String(),
		"key", env.event.Key(),
		"event_token", env.token,
		"live_token", live,
	)
}

// logUnknownChange records a changed event for a key the list does not hold.
// The reducer leaves the list untouched; repeated warnings usually mean the
// feed delivered child_changed before child_added.
func logUnknownChange(logger *slog.Logger, token string, ev list.Event) {
	logger.Warn("changed event for unknown key left unapplied",
		"key", ev.Key(),
		"token", token,
	)
}
