package webchat

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/dietbot/internal/model/intake"
	intakesvc "github.com/zhouzirui/dietbot/internal/service/intake"
)

// UserPrefix namespaces web chat users away from Telegram ids.
const UserPrefix = "web:"

const (
	readWait     = 60 * time.Second
	pingInterval = 54 * time.Second
)

// Inbound frame types.
const (
	TypeCommand = "command"
	TypeSelect  = "select"
	TypeText    = "text"
)

type inboundMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
	// Ref is the id of the message whose button was pressed.
	Ref string `json:"ref,omitempty"`
}

// Handler upgrades HTTP requests and feeds inbound frames to the engine.
type Handler struct {
	hub      *Hub
	engine   intakesvc.Handler
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates the websocket handler. The engine must be built with hub
// as its messenger.
func NewHandler(hub *Hub, engine intakesvc.Handler, logger *zap.Logger) *Handler {
	return &Handler{
		hub:    hub,
		engine: engine,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.Named("webchat"),
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("user"))
	if name == "" {
		name = uuid.NewString()
	}
	userID := intake.UserID(UserPrefix + name)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &client{conn: conn}
	h.hub.register(userID, c)
	defer h.hub.unregister(userID, c)
	h.logger.Info("connection opened", zap.String("user", string(userID)))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
	go h.pingLoop(ctx, c)

	if err := c.write(outgoingMessage{Type: TypeConnected, User: userID}); err != nil {
		return
	}

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("read failed", zap.String("user", string(userID)), zap.Error(err))
			}
			h.logger.Info("connection closed", zap.String("user", string(userID)))
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		event, ok := toEvent(userID, msg)
		if !ok {
			_ = c.write(outgoingMessage{Type: TypeError, Text: "unsupported message type " + msg.Type})
			continue
		}
		if err := h.engine.Handle(ctx, event); err != nil {
			h.logger.Error("handle message failed", zap.String("user", string(userID)), zap.Error(err))
			_ = c.write(outgoingMessage{Type: TypeError, Text: "internal error"})
		}
	}
}

func (h *Handler) pingLoop(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func toEvent(userID intake.UserID, msg inboundMessage) (intake.Event, bool) {
	switch msg.Type {
	case TypeCommand:
		return intake.NewCommand(userID, msg.Data), true
	case TypeSelect:
		var ref intake.MessageRef
		if msg.Ref != "" {
			ref = intake.MessageRef{UserID: userID, ID: msg.Ref}
		}
		return intake.NewSelection(userID, intake.Selection(msg.Data), ref), true
	case TypeText:
		return intake.NewText(userID, msg.Data), true
	default:
		return intake.Event{}, false
	}
}
