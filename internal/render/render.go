// Package render builds the plain-text messages and button choices sent to
// participants.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xiaot623/studybuddy/internal/domain"
)

// Menu button labels. Typing one is the same as sending its command.
const (
	LabelAdd    = "➕ Add Task"
	LabelList   = "📋 List Tasks"
	LabelDelete = "🗑️ Delete Task"
	LabelHelp   = "❓ Help"
	LabelCancel = "❌ Cancel"
)

// MenuChoices are the main menu buttons. Their payload is the command itself.
func MenuChoices() []domain.Choice {
	return []domain.Choice{
		{Label: LabelAdd, Data: string(domain.CommandAdd)},
		{Label: LabelList, Data: string(domain.CommandList)},
		{Label: LabelDelete, Data: string(domain.CommandDelete)},
		{Label: LabelHelp, Data: string(domain.CommandHelp)},
	}
}

// KindChoices are offered when asking for a task kind.
func KindChoices() []domain.Choice {
	return []domain.Choice{
		{Label: "📝 Assignment", Data: domain.CallbackKindAssignment},
		{Label: "📖 Exam", Data: domain.CallbackKindExam},
	}
}

// ConfirmChoices are offered when asking to confirm a deletion.
func ConfirmChoices() []domain.Choice {
	return []domain.Choice{
		{Label: "✅ Yes", Data: domain.CallbackConfirmYes},
		{Label: "❌ No", Data: domain.CallbackConfirmNo},
	}
}

// SelectionChoices numbers the tasks of a delete snapshot.
func SelectionChoices(tasks []domain.Task) []domain.Choice {
	out := make([]domain.Choice, 0, len(tasks)+1)
	for i := range tasks {
		n := strconv.Itoa(i + 1)
		out = append(out, domain.Choice{Label: n, Data: domain.CallbackSelectPrefix + n})
	}
	return append(out, domain.Choice{Label: LabelCancel, Data: domain.CallbackCancel})
}

// TaskIcon returns the emoji for a kind.
func TaskIcon(kind domain.TaskKind) string {
	switch kind {
	case domain.TaskKindAssignment:
		return "📝"
	case domain.TaskKindExam:
		return "📖"
	}
	return "📌"
}

// KindName is the capitalized display name of a kind.
func KindName(kind domain.TaskKind) string {
	switch kind {
	case domain.TaskKindAssignment:
		return "Assignment"
	case domain.TaskKindExam:
		return "Exam"
	}
	return string(kind)
}

// Date formats a due date like "December 25, 2025".
func Date(d time.Time) string {
	return d.Format("January 02, 2006")
}

// Relative describes d relative to today ("tomorrow", "in 3 days", ...).
func Relative(d, today time.Time) string {
	days := int(d.Sub(today).Hours() / 24)
	switch {
	case days < 0:
		return "overdue"
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	case days < 7:
		return fmt.Sprintf("in %d days", days)
	case days < 14:
		return "in 1 week"
	case days < 30:
		return fmt.Sprintf("in %d weeks", days/7)
	case days < 60:
		return "in 1 month"
	}
	return fmt.Sprintf("in %d months", days/30)
}

func Welcome(firstName string) string {
	if firstName == "" {
		firstName = "Student"
	}
	return fmt.Sprintf("👋 Welcome to StudyBuddy, %s!\n\n"+
		"I help you manage assignments and exam deadlines so you never miss important dates.\n\n"+
		"• %s - Create a new assignment or exam\n"+
		"• %s - View all upcoming deadlines\n"+
		"• %s - Remove completed tasks\n"+
		"• %s - Get detailed help\n\n"+
		"Let's ace those deadlines! 📚✨", firstName, LabelAdd, LabelList, LabelDelete, LabelHelp)
}

func Help(maxTitle int) string {
	return fmt.Sprintf("📚 StudyBuddy Help\n\n"+
		"/start - Start the bot and see welcome message\n"+
		"/add - Create a new assignment or exam\n"+
		"/list - View all upcoming tasks\n"+
		"/delete - Remove a task\n"+
		"/cancel - Cancel the current action\n"+
		"/help - Show this help message\n\n"+
		"💡 Tips:\n"+
		"• Dates use DD/MM/YYYY (e.g., 25/12/2025); dots and dashes work too\n"+
		"• You'll receive a reminder 24 hours before each deadline\n"+
		"• Task titles can be up to %d characters long", maxTitle)
}

func UnknownInput() string {
	return "I didn't understand that. Use /add, /list, /delete or /help."
}

func NothingToCancel() string {
	return "Nothing to cancel. You're not in the middle of any task."
}

func Cancelled() string {
	return "❌ Operation cancelled.\n\nUse /add to create a new task or /help to see available commands."
}

func GenericFailure() string {
	return "❌ Oops! Something went wrong. Please try again in a moment."
}

func AskKind() string {
	return "Let's add a new task! 📝\n\nWhat type of task is this?"
}

func AskTitle(kind domain.TaskKind) string {
	name := KindName(kind)
	return fmt.Sprintf("Great! Adding a new %s. 📚\n\nWhat's the name/title of this %s?\n\nExample: Math Homework Chapter 5",
		name, strings.ToLower(name))
}

func AskDate() string {
	return "Perfect! ✅\n\nWhen is this task due?\n\nPlease enter the date in DD/MM/YYYY format.\n\nExamples:\n• 25/12/2025\n• 15.03.2026\n• 01-01-2026"
}

// Retry appends the retry hint to a validation reason.
func Retry(reason string) string {
	return reason + "\n\nPlease try again:"
}

func TaskCreated(kind domain.TaskKind, title string, due time.Time) string {
	return fmt.Sprintf("✅ Task Added Successfully!\n\n%s %s\n📅 Due: %s\n⏰ Reminder: %s (24 hours before)",
		TaskIcon(kind), title, Date(due), Date(due.AddDate(0, 0, -1)))
}

func CreateFailed() string {
	return "❌ Oops! Something went wrong while saving your task.\n\nPlease try again with /add"
}

func NoTasksToDelete() string {
	return "You don't have any tasks to delete! 🎉\n\nUse /add to create a new task."
}

// SelectionList numbers the tasks for the delete flow.
func SelectionList(tasks []domain.Task) string {
	var b strings.Builder
	b.WriteString("🗑️ Delete a Task\n\nSelect a task:\n")
	for i, t := range tasks {
		fmt.Fprintf(&b, "%d. %s %s (%s)\n", i+1, TaskIcon(t.Kind), t.Title, t.DueDate.Format("Jan 02"))
	}
	b.WriteString("\nPlease enter the number of the task you want to delete:")
	return b.String()
}

func ConfirmDeletion(t domain.Task) string {
	return fmt.Sprintf("Are you sure you want to delete this task?\n\n%s %s\n📅 Due: %s\n📚 Type: %s\n\nReply with YES to confirm or NO to cancel.",
		TaskIcon(t.Kind), t.Title, Date(t.DueDate), KindName(t.Kind))
}

func TaskDeleted(t domain.Task) string {
	return fmt.Sprintf("✅ Task Deleted Successfully!\n\n🗑️ %s\n\nUse /list to view your remaining tasks.", t.Title)
}

func DeleteFailed() string {
	return "❌ Failed to delete task. It may have already been removed.\n\nUse /list to check your current tasks."
}

func DeletionCancelled() string {
	return "❌ Deletion cancelled. Your task is safe! 😊\n\nUse /delete to try again or /list to view your tasks."
}

// SessionLost is sent when a flow's stored data is missing or stale.
func SessionLost(restart domain.Command) string {
	return fmt.Sprintf("❌ Error: Task not found. Please start over with %s", restart)
}

// TaskList renders the /list output.
func TaskList(tasks []domain.Task, today time.Time) string {
	if len(tasks) == 0 {
		return "🎉 No upcoming tasks!\n\nUse /add to create a new task."
	}
	var b strings.Builder
	b.WriteString("📋 Your Upcoming Tasks:\n")
	for i, t := range tasks {
		fmt.Fprintf(&b, "\n%d. %s %s\n   Due: %s (%s)", i+1, TaskIcon(t.Kind), t.Title, Date(t.DueDate), Relative(t.DueDate, today))
	}
	return b.String()
}

// Reminder is the notification payload for a task entering its window.
func Reminder(t domain.Task) string {
	return fmt.Sprintf("⏰ REMINDER\n\n%s %s\n📅 Due: %s (%s)\n\nDon't forget! 📚",
		TaskIcon(t.Kind), t.Title, t.DueDate.Format("Monday"), Date(t.DueDate))
}
