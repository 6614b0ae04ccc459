package bus

import (
	"context"
	"sync"
	"time"
)

type InboundMessage struct {
	Channel   string
	SenderID  string
	ChatID    string
	Content   string
	Timestamp time.Time
	Metadata  map[string]any
}

func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// UserID returns the collaborator-selected user carried in the message
// metadata, if any.
func (m *InboundMessage) UserID() string {
	if m.Metadata == nil {
		return ""
	}
	if id, ok := m.Metadata["userId"].(string); ok {
		return id
	}
	return ""
}

type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
	Kind    string // "" for chat replies, "reminder" for due-soon calls
}

// MessageBus carries traffic between channels and the gateway. Each channel
// registers an outbound handler under its name; DispatchOutbound fans
// outbound messages to the owning channel.
type MessageBus struct {
	Inbound  chan InboundMessage
	Outbound chan OutboundMessage

	mu          sync.RWMutex
	subscribers map[string]func(OutboundMessage)
}

func NewMessageBus(bufSize int) *MessageBus {
	return &MessageBus{
		Inbound:     make(chan InboundMessage, bufSize),
		Outbound:    make(chan OutboundMessage, bufSize),
		subscribers: make(map[string]func(OutboundMessage)),
	}
}

func (b *MessageBus) SubscribeOutbound(channel string, fn func(OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channel] = fn
}

func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-b.Outbound:
			b.mu.RLock()
			fn := b.subscribers[msg.Channel]
			b.mu.RUnlock()
			if fn != nil {
				fn(msg)
			}
		case <-ctx.Done():
			return
		}
	}
}
