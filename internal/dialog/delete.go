package dialog

import (
	"context"

	"github.com/xiaot623/studybuddy/internal/clock"
	"github.com/xiaot623/studybuddy/internal/domain"
	"github.com/xiaot623/studybuddy/internal/render"
	"github.com/xiaot623/studybuddy/internal/validate"
)

func (e *Engine) list(ctx context.Context, t turn) error {
	tasks, err := e.store.ListTasksForOwner(ctx, t.owner(), false)
	if err != nil {
		return e.failure(ctx, t, "list_tasks", "", err)
	}
	return e.gateway.Prompt(ctx, t.ParticipantID, render.TaskList(tasks, clock.Today(e.clock.Now())), render.MenuChoices())
}

func (e *Engine) startDelete(ctx context.Context, t turn) error {
	tasks, err := e.store.ListTasksForOwner(ctx, t.owner(), false)
	if err != nil {
		return e.failure(ctx, t, "list_tasks", "", err)
	}
	if len(tasks) == 0 {
		return e.gateway.Send(ctx, t.ParticipantID, render.NoTasksToDelete())
	}

	e.sessions.Put(t.key, domain.Session{
		State: domain.StateDeleteAwaitingSelection,
		Tasks: tasks,
	})
	return e.gateway.Prompt(ctx, t.ParticipantID, render.SelectionList(tasks), render.SelectionChoices(tasks))
}

func (e *Engine) onSelection(ctx context.Context, t turn, sess domain.Session) error {
	if len(sess.Tasks) == 0 {
		e.sessions.Clear(t.key)
		e.log.Warn("delete session has no snapshot", "participant", t.key)
		return e.gateway.Send(ctx, t.ParticipantID, render.SessionLost(domain.CommandDelete))
	}

	idx, err := validate.ParseIndex(t.Input.Token(), len(sess.Tasks))
	if err != nil {
		return e.gateway.Prompt(ctx, t.ParticipantID, render.Retry(validate.Reason(err)), render.SelectionChoices(sess.Tasks))
	}

	selected := sess.Tasks[idx-1]
	sess.Selected = &selected
	sess.State = domain.StateDeleteAwaitingConfirmation
	e.sessions.Put(t.key, sess)
	return e.gateway.Prompt(ctx, t.ParticipantID, render.ConfirmDeletion(selected), render.ConfirmChoices())
}

func (e *Engine) onConfirmation(ctx context.Context, t turn, sess domain.Session) error {
	if sess.Selected == nil || sess.Selected.ID == "" {
		e.sessions.Clear(t.key)
		e.log.Warn("delete session has no selection", "participant", t.key)
		return e.gateway.Send(ctx, t.ParticipantID, render.SessionLost(domain.CommandDelete))
	}

	confirmed, err := validate.ParseConfirmation(t.Input.Token())
	if err != nil {
		return e.gateway.Prompt(ctx, t.ParticipantID, render.Retry(validate.Reason(err)), render.ConfirmChoices())
	}

	e.sessions.Clear(t.key)
	selected := *sess.Selected

	if !confirmed {
		return e.gateway.Prompt(ctx, t.ParticipantID, render.DeletionCancelled(), render.MenuChoices())
	}

	deleted, err := e.store.DeleteTaskIfOwned(ctx, t.owner(), selected.ID)
	if err != nil {
		return e.failure(ctx, t, "delete_task", selected.ID, err)
	}
	if !deleted {
		e.log.Info("task already gone at delete", "participant", t.key, "task_id", selected.ID)
		return e.gateway.Send(ctx, t.ParticipantID, render.DeleteFailed())
	}

	e.log.Info("task deleted", "participant", t.key, "task_id", selected.ID)
	return e.gateway.Prompt(ctx, t.ParticipantID, render.TaskDeleted(selected), render.MenuChoices())
}
