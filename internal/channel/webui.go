package channel

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/teampulsehq/teampulse/internal/bus"
	"github.com/teampulsehq/teampulse/internal/config"
	"github.com/teampulsehq/teampulse/internal/store"
)

//go:embed static
var staticFiles embed.FS

const webUIChannelName = "webui"

// wsMessage is the frame exchanged with browser clients. Inbound types are
// "login", "message" and "dismiss"; outbound types are "message" and
// "reminder".
type wsMessage struct {
	Type    string            `json:"type"`
	UserID  string            `json:"userId,omitempty"`
	Content string            `json:"content,omitempty"`
	File    *store.Attachment `json:"file,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	id   string
}

// ReportFunc produces the rendered progress report for a user.
type ReportFunc func(ctx context.Context, user store.User) (string, error)

type WebUIChannel struct {
	BaseChannel
	addr    string
	store   *store.Store
	report  ReportFunc
	log     *zap.Logger
	server  *http.Server
	clients sync.Map
	nextID  atomic.Int64
}

func NewWebUIChannel(cfg config.WebUIConfig, gwCfg config.GatewayConfig, b *bus.MessageBus, st *store.Store, log *zap.Logger) (*WebUIChannel, error) {
	port := gwCfg.Port
	if port == 0 {
		port = config.DefaultPort
	}

	ch := &WebUIChannel{
		BaseChannel: NewBaseChannel(webUIChannelName, b, cfg.AllowFrom),
		addr:        fmt.Sprintf("%s:%d", gwCfg.Host, port),
		store:       st,
		log:         log,
	}
	return ch, nil
}

// SetReport wires the progress-report producer. Without it the report
// endpoint answers 503.
func (w *WebUIChannel) SetReport(fn ReportFunc) {
	w.report = fn
}

func (w *WebUIChannel) Start(ctx context.Context) error {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("embed static fs: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", w.handleWS)
	mux.HandleFunc("GET /api/users", w.handleUsers)
	mux.HandleFunc("GET /api/tasks", w.handleTasks)
	mux.HandleFunc("POST /api/tasks", w.handleCreateTask)
	mux.HandleFunc("POST /api/tasks/status", w.handleStatus)
	mux.HandleFunc("GET /api/stats", w.handleStats)
	mux.HandleFunc("GET /api/messages", w.handleMessages)
	mux.HandleFunc("GET /api/report", w.handleReport)

	w.server = &http.Server{
		Addr:    w.addr,
		Handler: mux,
	}

	go func() {
		w.log.Info("listening", zap.String("addr", w.addr))
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			w.log.Error("server error", zap.Error(err))
		}
	}()

	return nil
}

func (w *WebUIChannel) handleWS(wr http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(wr, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		w.log.Warn("websocket accept error", zap.Error(err))
		return
	}

	clientID := fmt.Sprintf("webui-%d", w.nextID.Add(1))
	client := &wsClient{conn: conn, id: clientID}
	w.clients.Store(clientID, client)
	w.log.Info("client connected", zap.String("client", clientID))

	defer func() {
		w.clients.Delete(clientID)
		conn.CloseNow()
		w.log.Info("client disconnected", zap.String("client", clientID))
	}()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		if !w.IsAllowed(clientID) {
			w.log.Warn("rejected message", zap.String("client", clientID))
			continue
		}

		w.handleFrame(clientID, msg)
	}
}

func (w *WebUIChannel) handleFrame(clientID string, msg wsMessage) {
	inbound := bus.InboundMessage{
		Channel:   webUIChannelName,
		SenderID:  clientID,
		ChatID:    clientID,
		Timestamp: time.Now(),
		Metadata:  map[string]any{"userId": msg.UserID},
	}

	switch msg.Type {
	case "login":
		if msg.UserID == "" {
			return
		}
		inbound.Metadata["event"] = "login"
	case "dismiss":
		inbound.Content = "/dismiss"
	case "message":
		if msg.Content == "" && msg.File == nil {
			return
		}
		inbound.Content = msg.Content
		if msg.File != nil {
			inbound.Metadata["attachment"] = msg.File
		}
	default:
		return
	}

	w.bus.Inbound <- inbound
}

func writeJSON(wr http.ResponseWriter, status int, v any) {
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(status)
	_ = json.NewEncoder(wr).Encode(v)
}

// userFromQuery resolves the acting user from the userId query parameter.
func (w *WebUIChannel) userFromQuery(wr http.ResponseWriter, r *http.Request) (store.User, bool) {
	id := r.URL.Query().Get("userId")
	user, ok := w.store.UserByID(id)
	if !ok {
		writeJSON(wr, http.StatusNotFound, map[string]string{"error": "unknown user"})
		return store.User{}, false
	}
	return user, true
}

func (w *WebUIChannel) handleUsers(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, w.store.Users())
}

func (w *WebUIChannel) handleTasks(wr http.ResponseWriter, r *http.Request) {
	user, ok := w.userFromQuery(wr, r)
	if !ok {
		return
	}
	tasks := w.store.TasksFor(user)
	if tasks == nil {
		tasks = []store.Task{}
	}
	writeJSON(wr, http.StatusOK, tasks)
}

type createTaskRequest struct {
	UserID string          `json:"userId"`
	Task   store.TaskInput `json:"task"`
}

func (w *WebUIChannel) handleCreateTask(wr http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(wr, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	user, ok := w.store.UserByID(req.UserID)
	if !ok {
		writeJSON(wr, http.StatusNotFound, map[string]string{"error": "unknown user"})
		return
	}
	if !user.IsAdmin() {
		writeJSON(wr, http.StatusForbidden, map[string]string{"error": "only admins can create tasks"})
		return
	}

	task, err := w.store.AddTask(req.Task)
	if err != nil {
		writeJSON(wr, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(wr, http.StatusCreated, task)
}

type statusRequest struct {
	UserID string       `json:"userId"`
	TaskID string       `json:"taskId"`
	Status store.Status `json:"status"`
}

func (w *WebUIChannel) handleStatus(wr http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(wr, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	user, ok := w.store.UserByID(req.UserID)
	if !ok {
		writeJSON(wr, http.StatusNotFound, map[string]string{"error": "unknown user"})
		return
	}

	var task store.Task
	found := false
	for _, t := range w.store.Tasks() {
		if t.ID == req.TaskID {
			task = t
			found = true
			break
		}
	}
	if !found {
		writeJSON(wr, http.StatusNotFound, map[string]string{"error": "unknown task"})
		return
	}

	allowed := false
	for _, s := range store.StatusOptions(user, task) {
		if s == req.Status {
			allowed = true
			break
		}
	}
	if !allowed {
		writeJSON(wr, http.StatusForbidden, map[string]string{"error": "status not permitted"})
		return
	}

	if !w.store.UpdateTaskStatus(req.TaskID, req.Status) {
		writeJSON(wr, http.StatusNotFound, map[string]string{"error": "unknown task"})
		return
	}
	writeJSON(wr, http.StatusOK, map[string]string{"status": string(req.Status)})
}

type statsResponse struct {
	ByStatus map[store.Status]int            `json:"byStatus"`
	ByMember map[string]map[store.Status]int `json:"byMember"`
}

func (w *WebUIChannel) handleStats(wr http.ResponseWriter, r *http.Request) {
	tasks := w.store.Tasks()
	writeJSON(wr, http.StatusOK, statsResponse{
		ByStatus: store.CountsByStatus(tasks),
		ByMember: store.CountsByMember(tasks, w.store.Users()),
	})
}

func (w *WebUIChannel) handleMessages(wr http.ResponseWriter, r *http.Request) {
	msgs := w.store.Chat().Messages()
	if msgs == nil {
		msgs = []store.Message{}
	}
	writeJSON(wr, http.StatusOK, msgs)
}

func (w *WebUIChannel) handleReport(wr http.ResponseWriter, r *http.Request) {
	if w.report == nil {
		writeJSON(wr, http.StatusServiceUnavailable, map[string]string{"error": "report unavailable"})
		return
	}
	user, ok := w.userFromQuery(wr, r)
	if !ok {
		return
	}

	html, err := w.report(r.Context(), user)
	if err != nil {
		writeJSON(wr, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(wr, http.StatusOK, map[string]string{"html": html})
}

func (w *WebUIChannel) Send(msg bus.OutboundMessage) error {
	kind := msg.Kind
	if kind == "" {
		kind = "message"
	}
	data, err := json.Marshal(wsMessage{
		Type:    kind,
		Content: msg.Content,
	})
	if err != nil {
		return err
	}

	client, ok := w.clients.Load(msg.ChatID)
	if !ok {
		// Broadcast to all clients if no specific target
		w.clients.Range(func(key, value any) bool {
			c := value.(*wsClient)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = c.conn.Write(ctx, websocket.MessageText, data)
			return true
		})
		return nil
	}

	c := client.(*wsClient)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (w *WebUIChannel) Stop() error {
	if w.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.server.Shutdown(ctx); err != nil {
			w.log.Warn("shutdown error", zap.Error(err))
		}
	}
	w.clients.Range(func(key, value any) bool {
		c := value.(*wsClient)
		c.conn.CloseNow()
		return true
	})
	w.log.Info("stopped")
	return nil
}
