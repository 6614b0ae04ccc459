package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Notifier receives the fire-and-forget signal sent when a task is assigned.
// Delivery is not confirmed and never retried.
type Notifier interface {
	TaskAssigned(task Task, assignee User)
}

// TaskInput is what callers supply to create a task. A status field is
// accepted for wire compatibility but ignored: tasks always start at todo.
type TaskInput struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description" validate:"required"`
	AssigneeID  string    `json:"assigneeId" validate:"required"`
	Status      Status    `json:"status,omitempty"`
	DueDate     time.Time `json:"dueDate" validate:"required"`
}

// Store owns the authoritative in-memory collections. Task and user slices are
// replaced whole on mutation; derived views are recomputed on every read.
type Store struct {
	mu       sync.Mutex
	users    []User
	tasks    []Task
	chat     *MessageLog
	validate *validator.Validate
	notifier Notifier
}

func New() *Store {
	return &Store{
		chat:     NewMessageLog(),
		validate: validator.New(),
	}
}

func (s *Store) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Bootstrap replaces the user and task collections. Called once at session
// start with the full current data set.
func (s *Store) Bootstrap(users []User, tasks []Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append([]User(nil), users...)
	s.tasks = append([]Task(nil), tasks...)
}

func (s *Store) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]User(nil), s.users...)
}

// Members returns users with the member role, assistant included, matching the
// shape the collaborator prompt expects.
func (s *Store) Members() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []User
	for _, u := range s.users {
		if u.Role == RoleMember {
			out = append(out, u)
		}
	}
	return out
}

func (s *Store) UserByID(id string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

func (s *Store) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Task(nil), s.tasks...)
}

// AddTask validates the input, assigns a fresh id and prepends the task
// (most-recent-first). Status is always forced to todo regardless of input.
// The assignee notification is dispatched fire-and-forget.
func (s *Store) AddTask(input TaskInput) (Task, error) {
	if err := s.validate.Struct(input); err != nil {
		return Task{}, fmt.Errorf("validate task input: %w", err)
	}

	task := Task{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		AssigneeID:  input.AssigneeID,
		Status:      StatusTodo,
		DueDate:     input.DueDate,
	}

	s.mu.Lock()
	next := make([]Task, 0, len(s.tasks)+1)
	next = append(next, task)
	next = append(next, s.tasks...)
	s.tasks = next

	notifier := s.notifier
	assignee := User{ID: input.AssigneeID}
	for _, u := range s.users {
		if u.ID == input.AssigneeID {
			assignee = u
			break
		}
	}
	s.mu.Unlock()

	if notifier != nil {
		go notifier.TaskAssigned(task, assignee)
	}

	return task, nil
}

// UpdateTaskStatus replaces the status of the matching task. Unknown ids and
// values outside the fixed status set are a no-op. Role-based transition
// restrictions stay at the caller boundary (see StatusOptions).
func (s *Store) UpdateTaskStatus(taskID string, status Status) bool {
	if !status.Valid() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]Task, len(s.tasks))
	copy(next, s.tasks)
	for i := range next {
		if next[i].ID == taskID {
			next[i].Status = status
			s.tasks = next
			return true
		}
	}
	return false
}

// TasksFor is the role-gated view: admins see every task, members only their
// own assignments.
func (s *Store) TasksFor(user User) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.IsAdmin() {
		return append([]Task(nil), s.tasks...)
	}
	var out []Task
	for _, t := range s.tasks {
		if t.AssigneeID == user.ID {
			out = append(out, t)
		}
	}
	return out
}

// Chat is the shared team message log.
func (s *Store) Chat() *MessageLog {
	return s.chat
}

// StatusOptions lists the statuses a user may move a task to. Members are
// limited to keeping the current status or closing the task out.
func StatusOptions(user User, task Task) []Status {
	if user.IsAdmin() {
		return append([]Status(nil), Statuses...)
	}
	if task.Status == StatusDone {
		return []Status{StatusDone}
	}
	return []Status{task.Status, StatusDone}
}

// CountsByStatus groups a task set by status. Missing statuses count zero.
func CountsByStatus(tasks []Task) map[Status]int {
	counts := map[Status]int{
		StatusTodo:       0,
		StatusInProgress: 0,
		StatusDone:       0,
	}
	for _, t := range tasks {
		counts[t.Status]++
	}
	return counts
}

// CountsByMember groups tasks by assignee then status, for the per-member
// workload breakdown.
func CountsByMember(tasks []Task, users []User) map[string]map[Status]int {
	counts := make(map[string]map[Status]int)
	for _, u := range users {
		if u.Role != RoleMember {
			continue
		}
		counts[u.ID] = map[Status]int{
			StatusTodo:       0,
			StatusInProgress: 0,
			StatusDone:       0,
		}
	}
	for _, t := range tasks {
		if byStatus, ok := counts[t.AssigneeID]; ok {
			byStatus[t.Status]++
		}
	}
	return counts
}
