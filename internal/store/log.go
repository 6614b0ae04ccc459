package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageLog is an append-only message list. Snapshots are whole-slice copies,
// so a reader never observes a half-applied update.
type MessageLog struct {
	mu   sync.Mutex
	msgs []Message
}

func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

func (l *MessageLog) Append(m Message) Message {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	next := make([]Message, len(l.msgs), len(l.msgs)+1)
	copy(next, l.msgs)
	l.msgs = append(next, m)
	return m
}

// Resolve removes the pending placeholder and appends the terminal message in
// one step: no snapshot ever contains both, or neither.
func (l *MessageLog) Resolve(pendingID string, terminal Message) Message {
	if terminal.ID == "" {
		terminal.ID = uuid.NewString()
	}
	if terminal.Timestamp.IsZero() {
		terminal.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	next := make([]Message, 0, len(l.msgs)+1)
	for _, m := range l.msgs {
		if m.ID != pendingID {
			next = append(next, m)
		}
	}
	l.msgs = append(next, terminal)
	return terminal
}

// Remove deletes a message by id, if present.
func (l *MessageLog) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := make([]Message, 0, len(l.msgs))
	for _, m := range l.msgs {
		if m.ID != id {
			next = append(next, m)
		}
	}
	l.msgs = next
}

func (l *MessageLog) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

func (l *MessageLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}
