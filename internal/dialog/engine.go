// Package dialog drives the multi-turn create and delete conversations.
//
// Each call to HandleTurn applies exactly one user turn: it reads the
// participant's session, validates the input for the current state, calls the
// task store when a flow completes, writes the session back and replies
// through the gateway. Turns of one participant are serialized with the
// session store's per-key lock.
package dialog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/xiaot623/studybuddy/internal/clock"
	"github.com/xiaot623/studybuddy/internal/domain"
	"github.com/xiaot623/studybuddy/internal/observability"
	"github.com/xiaot623/studybuddy/internal/policy"
	"github.com/xiaot623/studybuddy/internal/render"
	"github.com/xiaot623/studybuddy/internal/repository"
	"github.com/xiaot623/studybuddy/internal/session"
	"github.com/xiaot623/studybuddy/internal/validate"
)

// Gateway delivers replies to a participant.
type Gateway interface {
	Send(ctx context.Context, recipient, text string) error
	Prompt(ctx context.Context, recipient, text string, choices []domain.Choice) error
}

// Policy decides whether a participant may start creating a task.
type Policy interface {
	Evaluate(ctx context.Context, input policy.Input) (policy.Decision, error)
}

// Options tunes the engine. Zero values fall back to defaults.
type Options struct {
	MaxTitleLength int
	MaxOpenTasks   int
	Logger         *slog.Logger
}

// Engine is the dialog state machine.
type Engine struct {
	store    repository.Store
	sessions session.Store
	gateway  Gateway
	policy   Policy
	clock    clock.Clock
	opts     Options
	log      *slog.Logger
}

// New creates an engine. pol may be nil, in which case creation is never gated.
func New(store repository.Store, sessions session.Store, gw Gateway, pol Policy, c clock.Clock, opts Options) *Engine {
	if opts.MaxTitleLength <= 0 {
		opts.MaxTitleLength = validate.DefaultMaxTitleLength
	}
	if c == nil {
		c = clock.New(nil)
	}
	l := opts.Logger
	if l == nil {
		l = observability.Logger()
	}
	return &Engine{
		store:    store,
		sessions: sessions,
		gateway:  gw,
		policy:   pol,
		clock:    c,
		opts:     opts,
		log:      l.With("component", "dialog"),
	}
}

// turn bundles the per-call values handlers need.
type turn struct {
	domain.Turn
	key string
}

func (t turn) owner() string {
	if t.OwnerID != "" {
		return t.OwnerID
	}
	return t.ParticipantID
}

// HandleTurn processes one incoming turn. Store and policy failures are
// reported to the participant and logged; the returned error is only set when
// the reply itself could not be delivered.
func (e *Engine) HandleTurn(ctx context.Context, in domain.Turn) error {
	t := turn{Turn: in, key: in.ParticipantID}

	unlock := e.sessions.Lock(t.key)
	defer unlock()

	if isCancel(in.Input) {
		return e.cancel(ctx, t)
	}

	if cmd, ok := command(in.Input); ok {
		e.touchUser(ctx, t)
		// Triggers always start from a clean slate.
		e.sessions.Clear(t.key)
		switch cmd {
		case domain.CommandStart:
			return e.gateway.Prompt(ctx, t.ParticipantID, render.Welcome(validate.SanitizeText(t.FirstName)), render.MenuChoices())
		case domain.CommandHelp:
			return e.gateway.Prompt(ctx, t.ParticipantID, render.Help(e.opts.MaxTitleLength), render.MenuChoices())
		case domain.CommandAdd:
			return e.startCreate(ctx, t)
		case domain.CommandList:
			return e.list(ctx, t)
		case domain.CommandDelete:
			return e.startDelete(ctx, t)
		}
	}

	sess := e.sessions.Get(t.key)
	switch sess.State {
	case domain.StateIdle:
		return e.gateway.Prompt(ctx, t.ParticipantID, render.UnknownInput(), render.MenuChoices())
	case domain.StateCreateAwaitingKind:
		return e.onKind(ctx, t, sess)
	case domain.StateCreateAwaitingTitle:
		return e.onTitle(ctx, t, sess)
	case domain.StateCreateAwaitingDate:
		return e.onDate(ctx, t, sess)
	case domain.StateDeleteAwaitingSelection:
		return e.onSelection(ctx, t, sess)
	case domain.StateDeleteAwaitingConfirmation:
		return e.onConfirmation(ctx, t, sess)
	}

	e.log.Warn("unknown dialog state, resetting", "participant", t.key, "state", string(sess.State))
	e.sessions.Clear(t.key)
	return e.gateway.Prompt(ctx, t.ParticipantID, render.UnknownInput(), render.MenuChoices())
}

func isCancel(in domain.Input) bool {
	if in.IsCallback() {
		return in.Callback == domain.CallbackCancel
	}
	text := strings.ToLower(strings.TrimSpace(in.Text))
	if text == strings.ToLower(render.LabelCancel) {
		return true
	}
	return slashWord(text) == string(domain.CommandCancel)
}

// slashWord strips a "@botname" suffix and any arguments from a slash command.
func slashWord(text string) string {
	if strings.HasPrefix(text, "/") {
		if i := strings.IndexAny(text, "@ "); i > 0 {
			return text[:i]
		}
	}
	return text
}

var commandAliases = map[string]domain.Command{
	string(domain.CommandStart):  domain.CommandStart,
	string(domain.CommandHelp):   domain.CommandHelp,
	string(domain.CommandAdd):    domain.CommandAdd,
	string(domain.CommandList):   domain.CommandList,
	string(domain.CommandDelete): domain.CommandDelete,
	render.LabelHelp:             domain.CommandHelp,
	render.LabelAdd:              domain.CommandAdd,
	render.LabelList:             domain.CommandList,
	render.LabelDelete:           domain.CommandDelete,
}

// command recognizes slash commands (optionally suffixed with "@name") and
// menu button labels, typed or pressed.
func command(in domain.Input) (domain.Command, bool) {
	raw := strings.TrimSpace(in.Token())
	if cmd, ok := commandAliases[raw]; ok {
		return cmd, true
	}
	cmd, ok := commandAliases[slashWord(strings.ToLower(raw))]
	return cmd, ok
}

func (e *Engine) cancel(ctx context.Context, t turn) error {
	sess := e.sessions.Get(t.key)
	if !sess.Active() {
		return e.gateway.Send(ctx, t.ParticipantID, render.NothingToCancel())
	}
	e.sessions.Clear(t.key)
	e.log.Debug("flow cancelled", "participant", t.key, "state", string(sess.State))
	return e.gateway.Prompt(ctx, t.ParticipantID, render.Cancelled(), render.MenuChoices())
}

func (e *Engine) touchUser(ctx context.Context, t turn) {
	user := &domain.User{
		UserID:    t.owner(),
		Username:  validate.SanitizeText(t.Username),
		FirstName: validate.SanitizeText(t.FirstName),
	}
	if err := e.store.UpsertUser(ctx, user); err != nil {
		e.log.Warn("failed to upsert user", "participant", t.key, "op", "upsert_user", "error", err)
	}
}

func (e *Engine) failure(ctx context.Context, t turn, op, taskID string, err error) error {
	e.log.Error("dialog operation failed", "participant", t.key, "op", op, "task_id", taskID, "error", err)
	return e.gateway.Send(ctx, t.ParticipantID, render.GenericFailure())
}
