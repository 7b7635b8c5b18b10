// Package domain defines the core domain models for studybuddy.
package domain

// TaskKind represents the kind of a deadline item.
type TaskKind string

const (
	TaskKindAssignment TaskKind = "assignment"
	TaskKindExam       TaskKind = "exam"
)

// TaskKinds lists the closed set of kinds in display order.
var TaskKinds = []TaskKind{TaskKindAssignment, TaskKindExam}

// Valid reports whether k is one of the known kinds.
func (k TaskKind) Valid() bool {
	switch k {
	case TaskKindAssignment, TaskKindExam:
		return true
	}
	return false
}

// DialogState is a participant's position in a flow's state machine.
// The zero value means no flow is active.
type DialogState string

const (
	StateIdle DialogState = ""

	// Create flow
	StateCreateAwaitingKind  DialogState = "create.awaiting_kind"
	StateCreateAwaitingTitle DialogState = "create.awaiting_title"
	StateCreateAwaitingDate  DialogState = "create.awaiting_date"

	// Delete flow
	StateDeleteAwaitingSelection    DialogState = "delete.awaiting_selection"
	StateDeleteAwaitingConfirmation DialogState = "delete.awaiting_confirmation"
)

// Command is a slash command understood by the dialog engine.
type Command string

const (
	CommandStart  Command = "/start"
	CommandHelp   Command = "/help"
	CommandAdd    Command = "/add"
	CommandList   Command = "/list"
	CommandDelete Command = "/delete"
	CommandCancel Command = "/cancel"
)

// Callback payloads attached to choices.
const (
	CallbackKindAssignment = "type_assignment"
	CallbackKindExam       = "type_exam"
	CallbackConfirmYes     = "confirm_yes"
	CallbackConfirmNo      = "confirm_no"
	CallbackCancel         = "cancel"
	CallbackSelectPrefix   = "select_"
)
