package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/teampulsehq/teampulse/internal/store"
)

type mockCollaborator struct {
	reply    string
	alerts   string
	err      error
	release  chan struct{} // when non-nil, calls block until closed
	lastText string
}

func (m *mockCollaborator) ChatReply(ctx context.Context, userText string, tasks []store.Task, users []store.User) (string, error) {
	m.lastText = userText
	if m.release != nil {
		<-m.release
	}
	return m.reply, m.err
}

func (m *mockCollaborator) ProactiveAlerts(ctx context.Context, tasks []store.Task, users []store.User) (string, error) {
	if m.release != nil {
		<-m.release
	}
	return m.alerts, m.err
}

func newTestStore() *store.Store {
	st := store.New()
	st.Bootstrap(
		[]store.User{
			{ID: "u2", Name: "Alice", Role: store.RoleMember},
			{ID: store.AssistantUserID, Name: "AI Assistant", Role: store.RoleMember},
		},
		[]store.Task{{ID: "t1", Title: "Write docs", AssigneeID: "u2", Status: store.StatusTodo}},
	)
	return st
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func assistantMessages(log *store.MessageLog) []store.Message {
	var out []store.Message
	for _, m := range log.Messages() {
		if m.UserID == store.AssistantUserID {
			out = append(out, m)
		}
	}
	return out
}

func TestHasMention(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"@ai what's the status?", true},
		{"hey @AI please summarize", true},
		{"email me at a@inbox.com", false},
		{"no mention here", false},
		{"@Ai", true},
	}
	for _, c := range cases {
		if got := HasMention(c.text); got != c.want {
			t.Errorf("HasMention(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestPostWithoutMention(t *testing.T) {
	st := newTestStore()
	log := store.NewMessageLog()
	collab := &mockCollaborator{reply: "should not appear"}
	user, _ := st.UserByID("u2")
	s := New(st, log, user, collab, zap.NewNop())

	msg := s.Post(context.Background(), "just chatting", nil)
	if msg.UserID != "u2" {
		t.Errorf("message user = %q, want u2", msg.UserID)
	}
	time.Sleep(50 * time.Millisecond)
	if got := log.Len(); got != 1 {
		t.Errorf("log length = %d, want 1 (no assistant involvement)", got)
	}
}

func TestPostMentionResolvesPending(t *testing.T) {
	st := newTestStore()
	log := store.NewMessageLog()
	collab := &mockCollaborator{reply: "here is the summary", release: make(chan struct{})}
	user, _ := st.UserByID("u2")
	s := New(st, log, user, collab, zap.NewNop())

	s.Post(context.Background(), "@ai summarize the project", nil)

	// Placeholder visible while the call is in flight.
	msgs := assistantMessages(log)
	if len(msgs) != 1 || !msgs[0].Pending {
		t.Fatalf("want one pending assistant message, got %+v", msgs)
	}
	pendingID := msgs[0].ID

	close(collab.release)
	waitFor(t, func() bool {
		msgs := assistantMessages(log)
		return len(msgs) == 1 && !msgs[0].Pending
	})

	msgs = assistantMessages(log)
	if msgs[0].Text != "here is the summary" {
		t.Errorf("terminal text = %q, want collaborator reply", msgs[0].Text)
	}
	if msgs[0].ID == pendingID {
		t.Error("terminal message kept the placeholder id")
	}
	if collab.lastText != "@ai summarize the project" {
		t.Errorf("collaborator saw %q", collab.lastText)
	}
}

func TestPostMentionFallbackOnError(t *testing.T) {
	st := newTestStore()
	log := store.NewMessageLog()
	collab := &mockCollaborator{err: errors.New("boom")}
	user, _ := st.UserByID("u2")
	s := New(st, log, user, collab, zap.NewNop())

	s.Post(context.Background(), "@ai are you there?", nil)

	waitFor(t, func() bool {
		msgs := assistantMessages(log)
		return len(msgs) == 1 && !msgs[0].Pending
	})
	if got := assistantMessages(log)[0].Text; got != chatFallbackText {
		t.Errorf("terminal text = %q, want fallback", got)
	}
}

func TestAlwaysReplyMode(t *testing.T) {
	st := newTestStore()
	log := store.NewMessageLog()
	collab := &mockCollaborator{reply: "direct answer"}
	user, _ := st.UserByID("u2")
	s := New(st, log, user, collab, zap.NewNop(), WithAlwaysReply())

	s.Post(context.Background(), "no trigger word at all", nil)

	waitFor(t, func() bool {
		msgs := assistantMessages(log)
		return len(msgs) == 1 && !msgs[0].Pending && msgs[0].Text == "direct answer"
	})
}

func TestResetDropsLateReply(t *testing.T) {
	st := newTestStore()
	log := store.NewMessageLog()
	collab := &mockCollaborator{reply: "too late", release: make(chan struct{})}
	user, _ := st.UserByID("u2")
	s := New(st, log, user, collab, zap.NewNop())

	s.Post(context.Background(), "@ai slow question", nil)
	if len(assistantMessages(log)) != 1 {
		t.Fatal("expected a pending placeholder")
	}

	s.Reset()
	close(collab.release)

	waitFor(t, func() bool {
		return len(assistantMessages(log)) == 0
	})
	if got := log.Len(); got != 1 {
		t.Errorf("log length = %d, want 1 (user message only)", got)
	}
}

func TestSeedAlertsWelcome(t *testing.T) {
	st := newTestStore()
	log := store.NewMessageLog()
	collab := &mockCollaborator{alerts: "Task \"Write docs\" is due soon."}
	user, _ := st.UserByID("u2")
	s := New(st, log, user, collab, zap.NewNop())

	s.SeedAlerts(context.Background())

	waitFor(t, func() bool { return log.Len() == 1 })
	got := log.Messages()[0]
	if got.UserID != store.AssistantUserID {
		t.Errorf("welcome sender = %q", got.UserID)
	}
	if !strings.HasPrefix(got.Text, "Hello Alice!") {
		t.Errorf("welcome text = %q, want greeting with user name", got.Text)
	}
	if !strings.Contains(got.Text, collab.alerts) {
		t.Errorf("welcome text %q missing alerts body", got.Text)
	}
}

func TestSeedAlertsFallback(t *testing.T) {
	st := newTestStore()
	log := store.NewMessageLog()
	collab := &mockCollaborator{err: errors.New("quota exceeded")}
	user, _ := st.UserByID("u2")
	s := New(st, log, user, collab, zap.NewNop())

	s.SeedAlerts(context.Background())

	waitFor(t, func() bool { return log.Len() == 1 })
	got := log.Messages()[0].Text
	if !strings.Contains(got, "having trouble analyzing") {
		t.Errorf("fallback welcome = %q", got)
	}
	if !strings.Contains(got, "Alice") {
		t.Errorf("fallback welcome %q missing user name", got)
	}
}

func TestReplyHook(t *testing.T) {
	st := newTestStore()
	log := store.NewMessageLog()
	collab := &mockCollaborator{reply: "pushed reply", alerts: "all quiet"}
	user, _ := st.UserByID("u2")

	got := make(chan store.Message, 2)
	s := New(st, log, user, collab, zap.NewNop(), WithReplyHook(func(m store.Message) {
		got <- m
	}))

	s.SeedAlerts(context.Background())
	select {
	case m := <-got:
		if !strings.Contains(m.Text, "all quiet") {
			t.Errorf("hook welcome = %q", m.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hook not called for welcome")
	}

	s.Post(context.Background(), "@ai ping", nil)
	select {
	case m := <-got:
		if m.Text != "pushed reply" {
			t.Errorf("hook reply = %q", m.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hook not called for reply")
	}
}

func TestNilCollaborator(t *testing.T) {
	st := newTestStore()
	log := store.NewMessageLog()
	user, _ := st.UserByID("u2")
	s := New(st, log, user, nil, zap.NewNop())

	s.Post(context.Background(), "@ai anyone home?", nil)
	s.SeedAlerts(context.Background())
	time.Sleep(50 * time.Millisecond)

	if got := log.Len(); got != 1 {
		t.Errorf("log length = %d, want 1", got)
	}
}
