// internal/handlers/chat_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/trainwreck-game/trainwreck/internal/game"
	"github.com/trainwreck-game/trainwreck/internal/middleware"
)

// inboundFrame is one message from a connected chat.
type inboundFrame struct {
	Type string `json:"type"` // "command" | "callback"
	Text string `json:"text,omitempty"`
	Data string `json:"data,omitempty"` // encoded callback data
}

// outboundFrame carries the controller's sends back to the chat.
type outboundFrame struct {
	Type      string        `json:"type"` // "text" | "image" | "prompt" | "remove_keyboard"
	Text      string        `json:"text,omitempty"`
	Image     string        `json:"image,omitempty"`
	MessageID int64         `json:"messageId,omitempty"`
	Buttons   []buttonFrame `json:"buttons,omitempty"`
}

type buttonFrame struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

type chatConn struct {
	mu            sync.Mutex
	conn          *websocket.Conn
	nextMessageID int64
}

func (cc *chatConn) send(ctx context.Context, frame outboundFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.conn.Write(ctx, websocket.MessageText, data)
}

// Hub tracks connected chats and implements game.Messenger over them.
// Sends to a chat that is not connected are dropped; delivery guarantees
// belong to the real bot platform, not this gateway.
type Hub struct {
	mu     sync.Mutex
	conns  map[int64]*chatConn
	logger *logrus.Logger
}

// NewHub builds an empty connection hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{conns: make(map[int64]*chatConn), logger: logger}
}

func (h *Hub) register(chatID int64, conn *websocket.Conn) *chatConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	cc := &chatConn{conn: conn}
	h.conns[chatID] = cc
	return cc
}

func (h *Hub) unregister(chatID int64, cc *chatConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[chatID] == cc {
		delete(h.conns, chatID)
	}
}

func (h *Hub) lookup(chatID int64) *chatConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[chatID]
}

func (h *Hub) deliver(ctx context.Context, chatID int64, frame outboundFrame) error {
	cc := h.lookup(chatID)
	if cc == nil {
		h.logger.WithField("chat", chatID).Debug("dropping send to disconnected chat")
		return nil
	}
	return cc.send(ctx, frame)
}

// SendText implements game.Messenger.
func (h *Hub) SendText(ctx context.Context, chatID int64, text string) error {
	return h.deliver(ctx, chatID, outboundFrame{Type: "text", Text: text})
}

// SendImage implements game.Messenger.
func (h *Hub) SendImage(ctx context.Context, chatID int64, image string) error {
	return h.deliver(ctx, chatID, outboundFrame{Type: "image", Image: image})
}

// Prompt implements game.Messenger. The returned message id is scoped to the
// chat connection and referenced by RemoveKeyboard.
func (h *Hub) Prompt(ctx context.Context, chatID int64, text string, buttons []game.Button) (int64, error) {
	cc := h.lookup(chatID)
	if cc == nil {
		h.logger.WithField("chat", chatID).Debug("dropping prompt to disconnected chat")
		return 0, nil
	}
	cc.mu.Lock()
	cc.nextMessageID++
	messageID := cc.nextMessageID
	cc.mu.Unlock()

	frames := make([]buttonFrame, len(buttons))
	for i, b := range buttons {
		frames[i] = buttonFrame{Label: b.Label, Data: b.Data}
	}
	err := cc.send(ctx, outboundFrame{
		Type:      "prompt",
		Text:      text,
		MessageID: messageID,
		Buttons:   frames,
	})
	return messageID, err
}

// RemoveKeyboard implements game.Messenger.
func (h *Hub) RemoveKeyboard(ctx context.Context, chatID int64, messageID int64) error {
	return h.deliver(ctx, chatID, outboundFrame{Type: "remove_keyboard", MessageID: messageID})
}

// ChatWSHandler upgrades /chat/ws?chat_id=<id> and pumps the chat's inbound
// frames through the router. Frames from one connection are handled strictly
// in order, matching the per-chat ordering the platform guarantees.
func ChatWSHandler(logger *logrus.Logger, hub *Hub, router *Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, err := strconv.ParseInt(r.URL.Query().Get("chat_id"), 10, 64)
		if err != nil {
			http.Error(w, "Missing or invalid chat_id query parameter", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"chat"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.WithError(err).Warn("websocket accept")
			return
		}
		defer conn.Close(websocket.StatusInternalError, "handler exit")

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, chatID)
		cc := hub.register(chatID, conn)
		defer hub.unregister(chatID, cc)

		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, chatID, err)
				return
			}
			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				logger.WithError(err).WithField("chat", chatID).Warn("malformed inbound frame")
				continue
			}

			switch frame.Type {
			case "command":
				if err := router.HandleCommand(ctx, chatID, frame.Text); err != nil {
					logger.WithError(err).WithField("chat", chatID).Error("command handler")
				}
			case "callback":
				if err := router.HandleCallback(ctx, chatID, frame.Data); err != nil {
					logger.WithError(err).WithField("chat", chatID).Error("callback handler")
				}
			default:
				logger.WithField("chat", chatID).Warnf("unknown frame type %q", frame.Type)
			}
		}
	}
}
