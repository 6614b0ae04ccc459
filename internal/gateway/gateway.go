// Package gateway wires the pieces together: store, collaborator, channels,
// per-user sessions and reminder scans.
package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/teampulsehq/teampulse/internal/assistant"
	"github.com/teampulsehq/teampulse/internal/bus"
	"github.com/teampulsehq/teampulse/internal/channel"
	"github.com/teampulsehq/teampulse/internal/config"
	"github.com/teampulsehq/teampulse/internal/notify"
	"github.com/teampulsehq/teampulse/internal/reminder"
	"github.com/teampulsehq/teampulse/internal/session"
	"github.com/teampulsehq/teampulse/internal/store"
)

const dismissCommand = "/dismiss"

// Options for creating a Gateway
type Options struct {
	Runtime    assistant.Runtime // injected collaborator runtime (for testing)
	SignalChan chan os.Signal    // for testing signal handling
}

// chatState is one channel conversation: the acting user, their session and
// their reminder scan.
type chatState struct {
	user      store.User
	session   *session.Session
	reminders *reminder.Service
}

type Gateway struct {
	cfg      *config.Config
	log      *zap.Logger
	bus      *bus.MessageBus
	store    *store.Store
	collab   *assistant.Client
	channels *channel.ChannelManager

	mu    sync.Mutex
	chats map[string]*chatState

	signalChan chan os.Signal
}

// New creates a Gateway with default options
func New(cfg *config.Config, log *zap.Logger) (*Gateway, error) {
	return NewWithOptions(cfg, log, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(cfg *config.Config, log *zap.Logger, opts Options) (*Gateway, error) {
	g := &Gateway{
		cfg:   cfg,
		log:   log,
		chats: make(map[string]*chatState),
	}

	g.bus = bus.NewMessageBus(config.DefaultBufSize)

	g.store = store.New()
	store.Seed(g.store)
	g.store.SetNotifier(notify.FromConfig(cfg.Notify, log.Named("notify")))

	if opts.Runtime != nil {
		g.collab = assistant.NewWithRuntime(opts.Runtime, log.Named("assistant"))
	} else {
		collab, err := assistant.New(cfg, log.Named("assistant"))
		if err != nil {
			return nil, fmt.Errorf("create assistant client: %w", err)
		}
		g.collab = collab
	}

	chMgr, err := channel.NewChannelManager(cfg.Channels, cfg.Gateway, g.bus, g.store, log.Named("channel"))
	if err != nil {
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	if web, ok := chMgr.WebUI(); ok {
		web.SetReport(g.renderedReport)
	}

	g.signalChan = opts.SignalChan

	return g, nil
}

// renderedReport produces the progress report as display HTML.
func (g *Gateway) renderedReport(ctx context.Context, user store.User) (string, error) {
	report, err := g.collab.ProgressReport(ctx, g.store.Tasks(), g.store.Users())
	if err != nil {
		return "", err
	}
	return assistant.RenderHTML(report), nil
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	g.log.Info("channels started", zap.Strings("channels", g.channels.EnabledChannels()))

	go g.processLoop(ctx)

	g.log.Info("running", zap.String("host", g.cfg.Gateway.Host), zap.Int("port", g.cfg.Gateway.Port))

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	g.log.Info("shutting down")
	return g.Shutdown()
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			g.handleInbound(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	g.log.Info("inbound",
		zap.String("channel", msg.Channel),
		zap.String("sender", msg.SenderID),
		zap.String("content", truncate(msg.Content, 80)),
	)

	user := g.resolveUser(msg)
	state := g.ensureChat(ctx, msg, user)

	if msg.Metadata != nil && msg.Metadata["event"] == "login" {
		return
	}

	if msg.Content == dismissCommand {
		state.reminders.Dismiss()
		return
	}
	if msg.Content == "" && msg.Metadata["attachment"] == nil {
		return
	}

	var file *store.Attachment
	if att, ok := msg.Metadata["attachment"].(*store.Attachment); ok {
		file = att
	}

	state.session.Post(ctx, msg.Content, file)
}

// resolveUser maps the message onto a team member. Unknown or missing ids
// fall back to the first non-assistant member.
func (g *Gateway) resolveUser(msg bus.InboundMessage) store.User {
	if user, ok := g.store.UserByID(msg.UserID()); ok {
		return user
	}
	for _, u := range g.store.Users() {
		if u.Role == store.RoleMember && u.ID != store.AssistantUserID {
			return u
		}
	}
	return store.User{ID: msg.SenderID, Role: store.RoleMember}
}

// ensureChat returns the conversation state for this message, creating it on
// first contact or when the acting user changes. Creation counts as login:
// the assistant seeds its proactive digest and the reminder scan starts.
func (g *Gateway) ensureChat(ctx context.Context, msg bus.InboundMessage, user store.User) *chatState {
	key := msg.SessionKey()

	g.mu.Lock()
	state, ok := g.chats[key]
	if ok && state.user.ID == user.ID {
		g.mu.Unlock()
		return state
	}
	if ok {
		// User switched on the same chat: the old session is superseded.
		state.session.Reset()
		state.reminders.Stop()
	}

	// Every terminal assistant message is pushed back to the owning channel.
	// For the web UI the frame is the reload signal; push channels deliver
	// the text itself.
	outChannel, outChat := msg.Channel, msg.ChatID
	sess := session.New(g.store, g.store.Chat(), user, g.collab, g.log.Named("session"),
		session.WithReplyHook(func(m store.Message) {
			g.bus.Outbound <- bus.OutboundMessage{
				Channel: outChannel,
				ChatID:  outChat,
				Content: m.Text,
			}
		}))

	rem := reminder.NewService(
		user,
		g.store.Tasks,
		time.Duration(g.cfg.Reminder.WindowMs)*time.Millisecond,
		time.Duration(g.cfg.Reminder.TickMs)*time.Millisecond,
		g.log.Named("reminder"),
	)
	rem.OnRemind = func(task store.Task) {
		g.bus.Outbound <- bus.OutboundMessage{
			Channel: outChannel,
			ChatID:  outChat,
			Kind:    "reminder",
			Content: fmt.Sprintf("Hi %s, your task %q is due within the next two minutes. This is your reminder call.", user.Name, task.Title),
		}
	}

	state = &chatState{user: user, session: sess, reminders: rem}
	g.chats[key] = state
	g.mu.Unlock()

	sess.SeedAlerts(ctx)
	if err := rem.Start(ctx); err != nil {
		g.log.Warn("reminder start failed", zap.String("user", user.ID), zap.Error(err))
	}

	return state
}

func (g *Gateway) Shutdown() error {
	g.mu.Lock()
	for _, state := range g.chats {
		state.session.Reset()
		state.reminders.Stop()
	}
	g.mu.Unlock()

	_ = g.channels.StopAll()
	if g.collab != nil {
		g.collab.Close()
	}
	g.log.Info("shutdown complete")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
