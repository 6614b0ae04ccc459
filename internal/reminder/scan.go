package reminder

import (
	"time"

	"github.com/teampulsehq/teampulse/internal/store"
)

// DefaultWindow is the lookahead before a task's due time during which a
// reminder may fire.
const DefaultWindow = 2 * time.Minute

// Scan returns the task to remind the user about, or nil. Admins never get
// reminders, and an already-surfaced reminder suppresses further matches
// until dismissed. Among qualifying tasks the first in collection order wins;
// the rest are not queued.
func Scan(now time.Time, tasks []store.Task, user store.User, active *store.Task, window time.Duration) *store.Task {
	if user.IsAdmin() || active != nil {
		return nil
	}

	for _, t := range tasks {
		if t.AssigneeID != user.ID || t.Status == store.StatusDone {
			continue
		}
		diff := t.DueDate.Sub(now)
		if diff > 0 && diff < window {
			task := t
			return &task
		}
	}
	return nil
}
