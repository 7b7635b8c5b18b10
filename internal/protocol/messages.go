// Package protocol defines the WebSocket frames exchanged between chat clients
// and the server.
package protocol

import (
	"encoding/json"

	"github.com/xiaot623/studybuddy/internal/domain"
)

// Frame types from client to server
const (
	TypeHello    = "hello"
	TypeMessage  = "message"
	TypeCallback = "callback"
)

// Frame types from server to client
const (
	TypeHelloAck = "hello_ack"
	TypeError    = "error"
	// TypeMessage is also used for server to client text.
)

// BaseMessage contains common fields for all frames.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
}

// HelloMessage identifies the participant. It must be the first frame.
type HelloMessage struct {
	BaseMessage
	UserID    string `json:"user_id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
}

// HelloAckMessage is sent after a successful hello.
type HelloAckMessage struct {
	BaseMessage
	UserID string `json:"user_id"`
}

// TextMessage carries free text in either direction. Choices are only set on
// server frames.
type TextMessage struct {
	BaseMessage
	Text    string          `json:"text"`
	Choices []domain.Choice `json:"choices,omitempty"`
}

// CallbackMessage is sent when the user picks one of the offered choices.
type CallbackMessage struct {
	BaseMessage
	Data string `json:"data"`
}

// ErrorMessage is sent by the server when a frame cannot be handled.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeUnauthorized    = "unauthorized"
	ErrorCodeSessionRequired = "session_required"
	ErrorCodeInternalError   = "internal_error"
)

// RawMessage is used for parsing incoming frames before type dispatch.
type RawMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"-"`
}
