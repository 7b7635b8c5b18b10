// Package chatclient is a terminal client for the chat WebSocket protocol.
package chatclient

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/studybuddy/internal/domain"
	"github.com/xiaot623/studybuddy/internal/protocol"
)

// Client represents a WebSocket chat client.
type Client struct {
	conn   *websocket.Conn
	userID string

	mu      sync.Mutex
	choices []domain.Choice
}

// Dial connects to the server.
func Dial(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Hello identifies the user and waits for hello_ack.
func (c *Client) Hello(userID, firstName, apiKey string) error {
	msg := protocol.HelloMessage{
		BaseMessage: protocol.BaseMessage{
			Type: protocol.TypeHello,
			Ts:   time.Now().UnixMilli(),
		},
		UserID:    userID,
		FirstName: firstName,
		APIKey:    apiKey,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}

	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}
	if base.Type == protocol.TypeError {
		var errMsg protocol.ErrorMessage
		_ = json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	}
	if base.Type != protocol.TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", base.Type)
	}

	c.userID = userID
	return nil
}

// Send turns a typed line into a frame. "#n" presses the n-th choice of the
// last prompt; anything else is sent as text.
func (c *Client) Send(line string) error {
	if data, ok := c.choice(line); ok {
		return c.conn.WriteJSON(protocol.CallbackMessage{
			BaseMessage: c.base(protocol.TypeCallback),
			Data:        data,
		})
	}
	return c.conn.WriteJSON(protocol.TextMessage{
		BaseMessage: c.base(protocol.TypeMessage),
		Text:        line,
	})
}

func (c *Client) base(typ string) protocol.BaseMessage {
	return protocol.BaseMessage{
		Type:      typ,
		Ts:        time.Now().UnixMilli(),
		RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
	}
}

func (c *Client) choice(line string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "#")
	if !ok {
		return "", false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 || n > len(c.choices) {
		return "", false
	}
	return c.choices[n-1].Data, true
}

// ReadLoop prints server frames to w until the connection closes.
func (c *Client) ReadLoop(w io.Writer) error {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		choices, text := Format(data)
		if choices != nil {
			c.mu.Lock()
			c.choices = choices
			c.mu.Unlock()
		}
		fmt.Fprintln(w, text)
	}
}

// Format renders a server frame for the terminal and returns the choices it
// offered, if any.
func Format(data []byte) ([]domain.Choice, string) {
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, "[invalid frame] " + string(data)
	}

	switch base.Type {
	case protocol.TypeMessage:
		var msg protocol.TextMessage
		_ = json.Unmarshal(data, &msg)
		var b strings.Builder
		b.WriteString("\n")
		b.WriteString(msg.Text)
		for i, ch := range msg.Choices {
			fmt.Fprintf(&b, "\n  #%d %s", i+1, ch.Label)
		}
		return msg.Choices, b.String()
	case protocol.TypeError:
		var msg protocol.ErrorMessage
		_ = json.Unmarshal(data, &msg)
		return nil, fmt.Sprintf("[error] %s: %s", msg.Code, msg.Message)
	}
	return nil, fmt.Sprintf("[%s] %s", base.Type, string(data))
}
