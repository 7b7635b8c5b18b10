package dialog

import (
	"context"

	"github.com/xiaot623/studybuddy/internal/clock"
	"github.com/xiaot623/studybuddy/internal/domain"
	"github.com/xiaot623/studybuddy/internal/policy"
	"github.com/xiaot623/studybuddy/internal/render"
	"github.com/xiaot623/studybuddy/internal/validate"
)

func (e *Engine) startCreate(ctx context.Context, t turn) error {
	if e.policy != nil {
		open, err := e.store.CountOpenTasks(ctx, t.owner())
		if err != nil {
			return e.failure(ctx, t, "count_open_tasks", "", err)
		}
		decision, err := e.policy.Evaluate(ctx, policy.Input{
			Action:         "create",
			UserID:         t.owner(),
			OpenTasks:      open,
			MaxOpenTasks:   e.opts.MaxOpenTasks,
			TitleMaxLength: e.opts.MaxTitleLength,
		})
		if err != nil {
			return e.failure(ctx, t, "evaluate_policy", "", err)
		}
		if !decision.Allowed() {
			e.log.Info("task creation blocked by policy", "participant", t.key, "reason", decision.Reason)
			return e.gateway.Send(ctx, t.ParticipantID, decision.Reason)
		}
	}

	e.sessions.Put(t.key, domain.Session{State: domain.StateCreateAwaitingKind})
	return e.gateway.Prompt(ctx, t.ParticipantID, render.AskKind(), render.KindChoices())
}

func (e *Engine) onKind(ctx context.Context, t turn, sess domain.Session) error {
	kind, err := validate.ParseKind(t.Input.Token())
	if err != nil {
		return e.gateway.Prompt(ctx, t.ParticipantID, render.Retry(validate.Reason(err)), render.KindChoices())
	}

	sess.Kind = kind
	sess.State = domain.StateCreateAwaitingTitle
	e.sessions.Put(t.key, sess)
	return e.gateway.Send(ctx, t.ParticipantID, render.AskTitle(kind))
}

func (e *Engine) onTitle(ctx context.Context, t turn, sess domain.Session) error {
	title, err := validate.NormalizeTitle(t.Input.Token(), e.opts.MaxTitleLength)
	if err != nil {
		return e.gateway.Send(ctx, t.ParticipantID, render.Retry(validate.Reason(err)))
	}

	sess.Title = title
	sess.State = domain.StateCreateAwaitingDate
	e.sessions.Put(t.key, sess)
	return e.gateway.Send(ctx, t.ParticipantID, render.AskDate())
}

func (e *Engine) onDate(ctx context.Context, t turn, sess domain.Session) error {
	if !sess.Kind.Valid() || sess.Title == "" {
		e.sessions.Clear(t.key)
		e.log.Warn("create session missing data", "participant", t.key, "kind", string(sess.Kind))
		return e.gateway.Send(ctx, t.ParticipantID, render.SessionLost(domain.CommandAdd))
	}

	due, err := validate.ParseDueDate(t.Input.Token(), clock.Today(e.clock.Now()))
	if err != nil {
		return e.gateway.Send(ctx, t.ParticipantID, render.Retry(validate.Reason(err)))
	}

	e.sessions.Clear(t.key)

	id, err := e.store.CreateTask(ctx, t.owner(), sess.Kind, sess.Title, due)
	if err != nil {
		e.log.Error("failed to create task", "participant", t.key, "op", "create_task", "error", err)
		return e.gateway.Prompt(ctx, t.ParticipantID, render.CreateFailed(), render.MenuChoices())
	}

	e.log.Info("task created", "participant", t.key, "task_id", id, "kind", string(sess.Kind), "due_date", due.Format("2006-01-02"))
	return e.gateway.Prompt(ctx, t.ParticipantID, render.TaskCreated(sess.Kind, sess.Title, due), render.MenuChoices())
}
