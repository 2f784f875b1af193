// Package webchat serves the intake questionnaire over a websocket.
package webchat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/dietbot/internal/model/intake"
)

// ErrNotConnected is returned when the user has no open websocket.
var ErrNotConnected = errors.New("user is not connected")

const writeWait = 10 * time.Second

// Outbound frame types.
const (
	TypeConnected = "connected"
	TypeMessage   = "message"
	TypeEdit      = "edit"
	TypeTyping    = "typing"
	TypeError     = "error"
)

type outgoingMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	User      intake.UserID   `json:"user,omitempty"`
	Text      string          `json:"text,omitempty"`
	Buttons   []intake.Button `json:"buttons,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(msg outgoingMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	msg.Timestamp = time.Now().Unix()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Hub tracks open connections and implements the engine's messenger on top
// of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[intake.UserID]*client
	logger  *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[intake.UserID]*client),
		logger:  logger.Named("webchat"),
	}
}

// Connected reports the number of open connections.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SendMessage writes a message frame with a fresh id.
func (h *Hub) SendMessage(_ context.Context, userID intake.UserID, text string, buttons ...intake.Button) (intake.MessageRef, error) {
	ref := intake.MessageRef{UserID: userID, ID: uuid.NewString()}
	err := h.send(userID, outgoingMessage{Type: TypeMessage, ID: ref.ID, Text: text, Buttons: buttons})
	if err != nil {
		return intake.MessageRef{}, err
	}
	return ref, nil
}

// EditMessage asks the client to replace the text of a shown message.
func (h *Hub) EditMessage(_ context.Context, ref intake.MessageRef, text string) error {
	return h.send(ref.UserID, outgoingMessage{Type: TypeEdit, ID: ref.ID, Text: text})
}

// SendTyping shows a typing indicator on the client.
func (h *Hub) SendTyping(_ context.Context, userID intake.UserID) error {
	return h.send(userID, outgoingMessage{Type: TypeTyping})
}

func (h *Hub) send(userID intake.UserID, msg outgoingMessage) error {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, userID)
	}
	if err := c.write(msg); err != nil {
		return fmt.Errorf("write %s frame to %s: %w", msg.Type, userID, err)
	}
	return nil
}

// register makes c the connection of userID, closing any previous one.
func (h *Hub) register(userID intake.UserID, c *client) {
	h.mu.Lock()
	previous := h.clients[userID]
	h.clients[userID] = c
	h.mu.Unlock()

	if previous != nil {
		h.logger.Info("replacing connection", zap.String("user", string(userID)))
		_ = previous.conn.Close()
	}
}

func (h *Hub) unregister(userID intake.UserID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == c {
		delete(h.clients, userID)
	}
}
