package domain

import "strings"

// Input is one user turn's payload: either free text or a structured selection
// (a button callback). Exactly one of the fields is set.
type Input struct {
	Text     string `json:"text,omitempty"`
	Callback string `json:"callback,omitempty"`
}

// IsCallback reports whether the input came from a structured selection.
func (in Input) IsCallback() bool {
	return in.Callback != ""
}

// Token collapses both input shapes to the text a validator understands.
// Callback payloads map to the free-text equivalent of the option they encode.
func (in Input) Token() string {
	if !in.IsCallback() {
		return in.Text
	}
	switch in.Callback {
	case CallbackKindAssignment:
		return string(TaskKindAssignment)
	case CallbackKindExam:
		return string(TaskKindExam)
	case CallbackConfirmYes:
		return "yes"
	case CallbackConfirmNo:
		return "no"
	}
	if n, ok := strings.CutPrefix(in.Callback, CallbackSelectPrefix); ok {
		return n
	}
	return in.Callback
}

// Turn is one incoming message from a participant.
type Turn struct {
	ParticipantID string `json:"participant_id"`
	OwnerID       string `json:"owner_id"`
	Username      string `json:"username,omitempty"`
	FirstName     string `json:"first_name,omitempty"`
	Input         Input  `json:"input"`
}

// Choice is a selectable option rendered next to a prompt.
type Choice struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}
