package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/teampulsehq/teampulse/internal/store"
)

func statusLabel(s store.Status) string {
	switch s {
	case store.StatusTodo:
		return "To Do"
	case store.StatusInProgress:
		return "In Progress"
	case store.StatusDone:
		return "Done"
	default:
		return string(s)
	}
}

// projectSnapshot renders the tasks grouped per team member, with overdue
// markers, as the data block shared by all three prompts.
func projectSnapshot(tasks []store.Task, users []store.User) string {
	now := time.Now()
	var sb strings.Builder
	sb.WriteString("Current project status:\n")

	for _, u := range users {
		if u.Role != store.RoleMember {
			continue
		}
		var memberTasks []store.Task
		for _, t := range tasks {
			if t.AssigneeID == u.ID {
				memberTasks = append(memberTasks, t)
			}
		}
		if len(memberTasks) == 0 {
			continue
		}

		fmt.Fprintf(&sb, "\nTeam Member: %s\n", u.Name)
		for _, t := range memberTasks {
			overdue := ""
			if t.Overdue(now) {
				overdue = " (OVERDUE)"
			}
			fmt.Fprintf(&sb, "- Task: %q, Status: %s, Due: %s%s\n",
				t.Title, statusLabel(t.Status), t.DueDate.Format("2006-01-02"), overdue)
		}
	}

	return sb.String()
}

func progressReportPrompt(tasks []store.Task, users []store.User) string {
	return fmt.Sprintf(`You are an executive business analyst AI. Your goal is to provide a sharp, actionable intelligence report based on the project data. Use Markdown for formatting.
Your report should be structured with the following sections:
1. **Overall Progress:** A brief, high-level overview of project velocity and completion rate.
2. **Key Wins:** Highlight recently completed tasks and praise high-performing team members.
3. **Potential Risks & Bottlenecks:** Identify any overdue tasks, or members with a heavy 'To Do' load.
4. **Strategic Recommendations:** Suggest actionable steps to mitigate risks and improve performance.

Here is the data:
%s`, projectSnapshot(tasks, users))
}

func chatReplyPrompt(userText string, tasks []store.Task, users []store.User) string {
	return fmt.Sprintf(`You are a friendly and helpful AI team member integrated into a project management chat. Your name is 'AI Assistant'.
A user has mentioned you by typing '@AI'. Analyze their message in the context of the provided project data and provide a concise, helpful response.

**Project Data:**
%s

**User Message:**
%q

Your response should be conversational and directly address the user's query. If they ask a general question, provide a general answer. If they ask about the project, use the data to inform your response.`,
		projectSnapshot(tasks, users), userText)
}

func proactiveAlertsPrompt(tasks []store.Task, users []store.User) string {
	return fmt.Sprintf(`You are a proactive AI project monitor. Analyze the provided task data and generate 2-3 brief, insightful alerts or suggestions for the project manager.
Format each alert as a single, actionable sentence. Prefix each with "Insight:" or "Alert:".

Example:
- Alert: Charlie has 3 high-priority tasks due this week. Suggest checking in on their workload.
- Insight: The design phase is ahead of schedule. This could be an opportunity to start user testing earlier.

Here is the data:
%s`, projectSnapshot(tasks, users))
}
