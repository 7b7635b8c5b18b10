package domain

import "time"

// Session is the ephemeral state of one participant's in-progress dialog.
type Session struct {
	State DialogState `json:"state"`

	// Create flow
	Kind  TaskKind `json:"kind,omitempty"`
	Title string   `json:"title,omitempty"`

	// Delete flow. Tasks is the list frozen at flow entry; Selected is a copy.
	Tasks    []Task `json:"tasks,omitempty"`
	Selected *Task  `json:"selected,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether a flow is in progress.
func (s Session) Active() bool {
	return s.State != StateIdle
}

// Clone returns a deep copy so stored sessions never alias caller data.
func (s Session) Clone() Session {
	out := s
	if s.Tasks != nil {
		out.Tasks = append([]Task(nil), s.Tasks...)
	}
	if s.Selected != nil {
		sel := *s.Selected
		out.Selected = &sel
	}
	return out
}
