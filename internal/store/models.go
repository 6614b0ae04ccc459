package store

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Statuses is the full fixed set, in board order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// AssistantUserID is the synthetic user that authors assistant messages.
const AssistantUserID = "ai"

type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AssigneeID  string    `json:"assigneeId"`
	Status      Status    `json:"status"`
	DueDate     time.Time `json:"dueDate"`
}

func (t Task) Overdue(now time.Time) bool {
	return t.DueDate.Before(now) && t.Status != StatusDone
}

type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

type Attachment struct {
	Name string         `json:"name"`
	Kind AttachmentKind `json:"kind"`
	URL  string         `json:"url"`
}

type Message struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
	File      *Attachment `json:"file,omitempty"`
	Pending   bool        `json:"pending,omitempty"`
}
