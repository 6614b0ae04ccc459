package store

import "time"

// Seed loads the demo data set: one admin, three members, the assistant user,
// six tasks and a short chat history. Due dates are relative to now so the
// due-soon task (t3) stays inside the reminder window on a fresh start.
func Seed(s *Store) {
	now := time.Now()

	users := []User{
		{ID: "u1", Name: "Admin User", Role: RoleAdmin, Avatar: "https://i.pravatar.cc/150?u=u1"},
		{ID: "u2", Name: "Alice", Role: RoleMember, Avatar: "https://i.pravatar.cc/150?u=u2"},
		{ID: "u3", Name: "Bob", Role: RoleMember, Avatar: "https://i.pravatar.cc/150?u=u3"},
		{ID: "u4", Name: "Charlie", Role: RoleMember, Avatar: "https://i.pravatar.cc/150?u=u4"},
		{ID: AssistantUserID, Name: "AI Assistant", Role: RoleMember, Avatar: "https://robohash.org/ai-assistant.png?bgset=bg2"},
	}

	tasks := []Task{
		{ID: "t1", Title: "Design new landing page", Description: "Create a modern design for the new landing page.", AssigneeID: "u2", Status: StatusInProgress, DueDate: now.Add(2 * 24 * time.Hour)},
		{ID: "t2", Title: "Develop user authentication", Description: "Implement JWT-based authentication.", AssigneeID: "u3", Status: StatusTodo, DueDate: now.Add(3 * 24 * time.Hour)},
		{ID: "t3", Title: "Setup CI/CD pipeline", Description: "Configure GitHub Actions for automated deployment.", AssigneeID: "u3", Status: StatusTodo, DueDate: now.Add(80 * time.Second)},
		{ID: "t4", Title: "Write API documentation", Description: "Use Swagger to document all endpoints.", AssigneeID: "u4", Status: StatusDone, DueDate: now.Add(-24 * time.Hour)},
		{ID: "t5", Title: "Test payment gateway integration", Description: "Perform end-to-end testing for Stripe.", AssigneeID: "u2", Status: StatusInProgress, DueDate: now.Add(4 * 24 * time.Hour)},
		{ID: "t6", Title: "Refactor old codebase", Description: "Improve performance and readability of legacy code.", AssigneeID: "u4", Status: StatusTodo, DueDate: now.Add(5 * 24 * time.Hour)},
	}

	s.Bootstrap(users, tasks)

	s.chat.Append(Message{ID: "m1", UserID: "u2", Text: "Hey team, I've started on the landing page design. I'll share mockups by EOD.", Timestamp: now.Add(-time.Hour)})
	s.chat.Append(Message{ID: "m2", UserID: "u1", Text: "Great, Alice! Looking forward to it.", Timestamp: now.Add(-58 * time.Minute)})
	s.chat.Append(Message{ID: "m3", UserID: "u3", Text: "I have a question about the auth flow, I'll post it in the relevant task.", Timestamp: now.Add(-56 * time.Minute)})
}
