package session

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/teampulsehq/teampulse/internal/store"
)

// MentionTrigger is the substring that pulls the assistant into a chat
// message. Matched case-insensitively.
const MentionTrigger = "@ai"

const (
	chatFallbackText = "Sorry, I'm having trouble connecting right now."

	welcomeFormat         = "Hello %s! I'm your AI assistant. I can help with project analysis, suggestions, and more. Here's what I'm seeing right now:\n\n%s"
	welcomeFallbackFormat = "Hello %s! I'm having trouble analyzing the project data at the moment, but I'm still here to help with any questions you have."
)

// Collaborator is the session's view of the text-generation service.
type Collaborator interface {
	ChatReply(ctx context.Context, userText string, tasks []store.Task, users []store.User) (string, error)
	ProactiveAlerts(ctx context.Context, tasks []store.Task, users []store.User) (string, error)
}

// result of an outstanding collaborator call; the session pattern-matches on
// it to pick the terminal text, so a raw error never reaches the log.
type result struct {
	text string
	err  error
}

// Session holds one user's conversation: an append-only message log plus the
// lifecycle of assistant replies (pending placeholder -> terminal message).
type Session struct {
	chat        *store.Store
	log         *store.MessageLog
	user        store.User
	collab      Collaborator
	alwaysReply bool
	onReply     func(store.Message)
	logger      *zap.Logger

	// epoch guards against late replies: a call dispatched before Reset is
	// dropped when it lands.
	epoch atomic.Int64
}

type Option func(*Session)

// WithAlwaysReply makes the assistant answer every posted message instead of
// only mentions. This is the dedicated assistant-panel mode.
func WithAlwaysReply() Option {
	return func(s *Session) { s.alwaysReply = true }
}

// WithReplyHook registers fn to run for every terminal assistant message.
// Channels that cannot watch the log use it to push replies out.
func WithReplyHook(fn func(store.Message)) Option {
	return func(s *Session) { s.onReply = fn }
}

func New(st *store.Store, log *store.MessageLog, user store.User, collab Collaborator, logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		chat:   st,
		log:    log,
		user:   user,
		collab: collab,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) User() store.User {
	return s.user
}

func (s *Session) Messages() []store.Message {
	return s.log.Messages()
}

// HasMention reports whether text contains the assistant trigger, any case.
func HasMention(text string) bool {
	return strings.Contains(strings.ToLower(text), MentionTrigger)
}

// Post appends the user's message and returns it immediately. When the text
// mentions the assistant (or the session is in always-reply mode) a pending
// placeholder is appended and the collaborator call dispatched; the
// placeholder is later swapped for exactly one terminal message.
func (s *Session) Post(ctx context.Context, text string, file *store.Attachment) store.Message {
	msg := s.log.Append(store.Message{UserID: s.user.ID, Text: text, File: file})

	if s.collab == nil {
		return msg
	}
	if !s.alwaysReply && !HasMention(text) {
		return msg
	}

	pending := s.log.Append(store.Message{UserID: store.AssistantUserID, Pending: true})
	epoch := s.epoch.Load()
	tasks := s.chat.Tasks()
	users := s.chat.Users()

	go s.resolve(ctx, epoch, pending.ID, text, tasks, users)

	return msg
}

func (s *Session) resolve(ctx context.Context, epoch int64, pendingID, text string, tasks []store.Task, users []store.User) {
	var res result
	res.text, res.err = s.collab.ChatReply(ctx, text, tasks, users)

	if s.epoch.Load() != epoch {
		// Superseded session: drop the reply, clean up the placeholder.
		s.logger.Debug("dropping late assistant reply", zap.String("user", s.user.ID))
		s.log.Remove(pendingID)
		return
	}

	terminal := store.Message{UserID: store.AssistantUserID}
	if res.err != nil {
		s.logger.Warn("assistant reply failed", zap.Error(res.err))
		terminal.Text = chatFallbackText
	} else {
		terminal.Text = res.text
	}
	resolved := s.log.Resolve(pendingID, terminal)
	if s.onReply != nil {
		s.onReply(resolved)
	}
}

// SeedAlerts requests the proactive analysis once at session start and posts
// it as the assistant's opening message. Failures degrade to a fixed
// apologetic text. Independent of the per-message pending bookkeeping.
func (s *Session) SeedAlerts(ctx context.Context) {
	if s.collab == nil {
		return
	}

	epoch := s.epoch.Load()
	tasks := s.chat.Tasks()
	users := s.chat.Users()

	go func() {
		alerts, err := s.collab.ProactiveAlerts(ctx, tasks, users)
		if s.epoch.Load() != epoch {
			return
		}

		var text string
		if err != nil {
			s.logger.Warn("proactive alerts failed", zap.Error(err))
			text = fmt.Sprintf(welcomeFallbackFormat, s.user.Name)
		} else {
			text = fmt.Sprintf(welcomeFormat, s.user.Name, alerts)
		}
		msg := s.log.Append(store.Message{UserID: store.AssistantUserID, Text: text})
		if s.onReply != nil {
			s.onReply(msg)
		}
	}()
}

// Reset supersedes the session: any collaborator call still in flight is
// dropped when it resolves.
func (s *Session) Reset() {
	s.epoch.Add(1)
}
