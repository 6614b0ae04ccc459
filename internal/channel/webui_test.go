package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/teampulsehq/teampulse/internal/bus"
	"github.com/teampulsehq/teampulse/internal/config"
	"github.com/teampulsehq/teampulse/internal/store"
)

func newTestWebUI(t *testing.T) (*WebUIChannel, *bus.MessageBus, *store.Store) {
	t.Helper()
	b := bus.NewMessageBus(10)
	st := store.New()
	st.Bootstrap(
		[]store.User{
			{ID: "u1", Name: "Admin User", Role: store.RoleAdmin},
			{ID: "u2", Name: "Alice", Role: store.RoleMember},
			{ID: "u3", Name: "Bob", Role: store.RoleMember},
		},
		[]store.Task{
			{ID: "t1", Title: "Design new landing page", AssigneeID: "u2", Status: store.StatusInProgress, DueDate: time.Now().Add(48 * time.Hour)},
			{ID: "t2", Title: "Fix login bug", AssigneeID: "u3", Status: store.StatusTodo, DueDate: time.Now().Add(24 * time.Hour)},
		},
	)
	ch, err := NewWebUIChannel(config.WebUIConfig{Enabled: true}, config.GatewayConfig{}, b, st, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWebUIChannel: %v", err)
	}
	return ch, b, st
}

func TestWebUI_HandleUsers(t *testing.T) {
	ch, _, _ := newTestWebUI(t)

	w := httptest.NewRecorder()
	ch.handleUsers(w, httptest.NewRequest(http.MethodGet, "/api/users", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var users []store.User
	if err := json.Unmarshal(w.Body.Bytes(), &users); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(users) != 3 {
		t.Errorf("len(users) = %d, want 3", len(users))
	}
}

func TestWebUI_HandleTasks_RoleGated(t *testing.T) {
	ch, _, _ := newTestWebUI(t)

	var adminTasks, memberTasks []store.Task

	w := httptest.NewRecorder()
	ch.handleTasks(w, httptest.NewRequest(http.MethodGet, "/api/tasks?userId=u1", nil))
	if err := json.Unmarshal(w.Body.Bytes(), &adminTasks); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = httptest.NewRecorder()
	ch.handleTasks(w, httptest.NewRequest(http.MethodGet, "/api/tasks?userId=u2", nil))
	if err := json.Unmarshal(w.Body.Bytes(), &memberTasks); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(adminTasks) != 2 {
		t.Errorf("admin sees %d tasks, want 2", len(adminTasks))
	}
	if len(memberTasks) != 1 || memberTasks[0].AssigneeID != "u2" {
		t.Errorf("member tasks = %+v, want only own", memberTasks)
	}
}

func TestWebUI_HandleTasks_UnknownUser(t *testing.T) {
	ch, _, _ := newTestWebUI(t)

	w := httptest.NewRecorder()
	ch.handleTasks(w, httptest.NewRequest(http.MethodGet, "/api/tasks?userId=ghost", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestWebUI_HandleCreateTask_AdminOnly(t *testing.T) {
	ch, _, st := newTestWebUI(t)

	body := `{"userId":"u2","task":{"title":"New","description":"d","assigneeId":"u3","dueDate":"2026-09-04T12:00:00Z"}}`
	w := httptest.NewRecorder()
	ch.handleCreateTask(w, httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body)))
	if w.Code != http.StatusForbidden {
		t.Errorf("member create status = %d, want 403", w.Code)
	}

	body = `{"userId":"u1","task":{"title":"New","description":"d","assigneeId":"u3","dueDate":"2026-09-04T12:00:00Z"}}`
	w = httptest.NewRecorder()
	ch.handleCreateTask(w, httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("admin create status = %d, want 201: %s", w.Code, w.Body.String())
	}

	if got := len(st.Tasks()); got != 3 {
		t.Errorf("task count = %d, want 3", got)
	}
	if st.Tasks()[0].Title != "New" {
		t.Errorf("new task not prepended: %+v", st.Tasks()[0])
	}
}

func TestWebUI_HandleCreateTask_Invalid(t *testing.T) {
	ch, _, _ := newTestWebUI(t)

	body := `{"userId":"u1","task":{"title":"","description":"","assigneeId":"","dueDate":"2026-09-04T12:00:00Z"}}`
	w := httptest.NewRecorder()
	ch.handleCreateTask(w, httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestWebUI_HandleStatus_MemberRestrictions(t *testing.T) {
	ch, _, st := newTestWebUI(t)

	// Members may close their own task out.
	body := `{"userId":"u2","taskId":"t1","status":"done"}`
	w := httptest.NewRecorder()
	ch.handleStatus(w, httptest.NewRequest(http.MethodPost, "/api/tasks/status", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("member done status = %d, want 200: %s", w.Code, w.Body.String())
	}

	// But cannot move someone else's task back to todo.
	body = `{"userId":"u2","taskId":"t2","status":"in_progress"}`
	w = httptest.NewRecorder()
	ch.handleStatus(w, httptest.NewRequest(http.MethodPost, "/api/tasks/status", strings.NewReader(body)))
	if w.Code != http.StatusForbidden {
		t.Errorf("member foreign-move status = %d, want 403", w.Code)
	}

	// Admins may set anything.
	body = `{"userId":"u1","taskId":"t2","status":"in_progress"}`
	w = httptest.NewRecorder()
	ch.handleStatus(w, httptest.NewRequest(http.MethodPost, "/api/tasks/status", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Errorf("admin move status = %d, want 200", w.Code)
	}

	for _, task := range st.Tasks() {
		switch task.ID {
		case "t1":
			if task.Status != store.StatusDone {
				t.Errorf("t1 status = %q, want done", task.Status)
			}
		case "t2":
			if task.Status != store.StatusInProgress {
				t.Errorf("t2 status = %q, want in_progress", task.Status)
			}
		}
	}
}

func TestWebUI_HandleStatus_UnknownTask(t *testing.T) {
	ch, _, _ := newTestWebUI(t)

	body := `{"userId":"u1","taskId":"ghost","status":"done"}`
	w := httptest.NewRecorder()
	ch.handleStatus(w, httptest.NewRequest(http.MethodPost, "/api/tasks/status", strings.NewReader(body)))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestWebUI_HandleStats(t *testing.T) {
	ch, _, _ := newTestWebUI(t)

	w := httptest.NewRecorder()
	ch.handleStats(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	var stats statsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.ByStatus[store.StatusTodo] != 1 || stats.ByStatus[store.StatusInProgress] != 1 {
		t.Errorf("byStatus = %v", stats.ByStatus)
	}
	if _, ok := stats.ByMember["u2"]; !ok {
		t.Errorf("byMember missing u2: %v", stats.ByMember)
	}
}

func TestWebUI_HandleMessages(t *testing.T) {
	ch, _, st := newTestWebUI(t)
	st.Chat().Append(store.Message{UserID: "u2", Text: "morning"})

	w := httptest.NewRecorder()
	ch.handleMessages(w, httptest.NewRequest(http.MethodGet, "/api/messages", nil))

	var msgs []store.Message
	if err := json.Unmarshal(w.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "morning" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestWebUI_HandleReport_Unwired(t *testing.T) {
	ch, _, _ := newTestWebUI(t)

	w := httptest.NewRecorder()
	ch.handleReport(w, httptest.NewRequest(http.MethodGet, "/api/report?userId=u1", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestWebUI_HandleReport(t *testing.T) {
	ch, _, _ := newTestWebUI(t)
	ch.SetReport(func(ctx context.Context, user store.User) (string, error) {
		return "<strong>Report</strong> for " + user.Name, nil
	})

	w := httptest.NewRecorder()
	ch.handleReport(w, httptest.NewRequest(http.MethodGet, "/api/report?userId=u1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp["html"], "Admin User") {
		t.Errorf("report html = %q", resp["html"])
	}
}

func TestWebUI_HandleFrame_Login(t *testing.T) {
	ch, b, _ := newTestWebUI(t)

	ch.handleFrame("webui-1", wsMessage{Type: "login", UserID: "u2"})

	select {
	case inbound := <-b.Inbound:
		if inbound.Metadata["event"] != "login" {
			t.Errorf("metadata event = %v, want login", inbound.Metadata["event"])
		}
		if inbound.UserID() != "u2" {
			t.Errorf("user id = %q, want u2", inbound.UserID())
		}
	default:
		t.Error("expected inbound login event")
	}
}

func TestWebUI_HandleFrame_Message(t *testing.T) {
	ch, b, _ := newTestWebUI(t)

	ch.handleFrame("webui-1", wsMessage{
		Type:    "message",
		UserID:  "u2",
		Content: "@ai what should I focus on?",
		File:    &store.Attachment{Name: "shot.png", Kind: store.AttachmentImage, URL: "data:image/png;base64,xx"},
	})

	select {
	case inbound := <-b.Inbound:
		if inbound.Content != "@ai what should I focus on?" {
			t.Errorf("content = %q", inbound.Content)
		}
		if inbound.ChatID != "webui-1" {
			t.Errorf("chat id = %q, want webui-1", inbound.ChatID)
		}
		if _, ok := inbound.Metadata["attachment"].(*store.Attachment); !ok {
			t.Error("expected attachment metadata")
		}
	default:
		t.Error("expected inbound message")
	}
}

func TestWebUI_HandleFrame_Dismiss(t *testing.T) {
	ch, b, _ := newTestWebUI(t)

	ch.handleFrame("webui-1", wsMessage{Type: "dismiss", UserID: "u3"})

	select {
	case inbound := <-b.Inbound:
		if inbound.Content != "/dismiss" {
			t.Errorf("content = %q, want /dismiss", inbound.Content)
		}
	default:
		t.Error("expected inbound dismiss")
	}
}

func TestWebUI_HandleFrame_EmptyIgnored(t *testing.T) {
	ch, b, _ := newTestWebUI(t)

	ch.handleFrame("webui-1", wsMessage{Type: "message", UserID: "u2"})
	ch.handleFrame("webui-1", wsMessage{Type: "login"})
	ch.handleFrame("webui-1", wsMessage{Type: "unknown", Content: "x"})

	select {
	case <-b.Inbound:
		t.Error("empty or unknown frames should be dropped")
	default:
	}
}
