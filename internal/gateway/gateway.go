// Package gateway delivers outgoing chat messages through the connection hub.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/xiaot623/studybuddy/internal/clock"
	"github.com/xiaot623/studybuddy/internal/domain"
	"github.com/xiaot623/studybuddy/internal/protocol"
)

// ErrNotConnected is returned when the recipient has no live connection.
var ErrNotConnected = errors.New("recipient not connected")

// Deliverer is the part of the hub the gateway needs.
type Deliverer interface {
	DeliverJSON(participantID string, v interface{}) (int, error)
}

// Gateway sends protocol message frames to participants.
type Gateway struct {
	hub   Deliverer
	clock clock.Clock
}

func New(h Deliverer, c clock.Clock) *Gateway {
	if c == nil {
		c = clock.New(nil)
	}
	return &Gateway{hub: h, clock: c}
}

// Send delivers plain text.
func (g *Gateway) Send(ctx context.Context, recipient, text string) error {
	return g.Prompt(ctx, recipient, text, nil)
}

// Prompt delivers text with selectable choices.
func (g *Gateway) Prompt(ctx context.Context, recipient, text string, choices []domain.Choice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := protocol.TextMessage{
		BaseMessage: protocol.BaseMessage{
			Type: protocol.TypeMessage,
			Ts:   g.clock.Now().UnixMilli(),
		},
		Text:    text,
		Choices: choices,
	}
	n, err := g.hub.DeliverJSON(recipient, msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to deliver to %s: %w", recipient, ErrNotConnected)
	}
	return nil
}

// LogOnly is a gateway for processes without a chat listener. Every send
// fails with ErrNotConnected after logging, so reminders stay pending.
type LogOnly struct {
	Log func(recipient, text string)
}

func (l LogOnly) Send(ctx context.Context, recipient, text string) error {
	if l.Log != nil {
		l.Log(recipient, text)
	}
	return ErrNotConnected
}

func (l LogOnly) Prompt(ctx context.Context, recipient, text string, _ []domain.Choice) error {
	return l.Send(ctx, recipient, text)
}

