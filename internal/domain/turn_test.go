package domain

import "testing"

func TestInputTokenCollapsesCallbacks(t *testing.T) {
	cases := map[string]Input{
		"assignment": {Callback: CallbackKindAssignment},
		"exam":       {Callback: CallbackKindExam},
		"yes":        {Callback: CallbackConfirmYes},
		"no":         {Callback: CallbackConfirmNo},
		"3":          {Callback: CallbackSelectPrefix + "3"},
		" Exam ":     {Text: " Exam "},
	}
	for want, in := range cases {
		if got := in.Token(); got != want {
			t.Fatalf("Token(%+v) = %q, want %q", in, got, want)
		}
	}
}

func TestSessionCloneDoesNotAlias(t *testing.T) {
	sel := Task{ID: "t1"}
	s := Session{Tasks: []Task{{ID: "t1"}}, Selected: &sel}
	c := s.Clone()
	c.Tasks[0].ID = "changed"
	c.Selected.ID = "changed"
	if s.Tasks[0].ID != "t1" || s.Selected.ID != "t1" {
		t.Fatalf("clone aliases original: %+v", s)
	}
}
