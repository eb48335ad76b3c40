package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Zwubman/software-company-sub002/internal/config"
	"github.com/Zwubman/software-company-sub002/internal/domain"
	"github.com/Zwubman/software-company-sub002/internal/hub"
	"github.com/Zwubman/software-company-sub002/internal/service"
	"github.com/Zwubman/software-company-sub002/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler terminates the bidirectional chat channel.
type WSHandler struct {
	hub     *hub.Hub
	service service.ChatService
	wsCfg   config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc service.ChatService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
	}
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l := log.Ctx(r.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ch := hub.NewChannel(uuid.New().String(), h.hub, conn, h.wsCfg)

	h.hub.Register(ch)

	go ch.WritePump()
	go func() {
		ch.ReadPump(h.handleMessage)
		// ReadPump returns on transport loss or close; the channel is gone
		// either way, only the presence bookkeeping remains.
		h.service.HandleDisconnect(context.Background(), ch)
	}()
}

func (h *WSHandler) handleMessage(ch *hub.Channel, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		ch.SendControl(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid message format"))
		return
	}

	ctx := context.Background()
	l := log.L()

	switch base.Type {
	case domain.MsgTypeAuth:
		var msg domain.AuthMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			ch.SendControl(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid auth message"))
			return
		}
		if err := h.service.HandleAuth(ctx, ch, msg.Token); err != nil {
			l.Debug().Str(log.FieldChannelID, ch.ID).Err(err).Msg("auth failed")
		}

	case domain.MsgTypeJoin:
		var msg domain.JoinMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			ch.SendControl(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid join message"))
			return
		}
		if err := h.service.HandleJoin(ctx, ch, msg.ConversationID); err != nil {
			l.Debug().Str(log.FieldChannelID, ch.ID).Err(err).Msg("join failed")
		}

	case domain.MsgTypeChatMessage:
		var msg domain.ChatMessageIn
		if err := json.Unmarshal(message, &msg); err != nil {
			ch.SendControl(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid chat_message"))
			return
		}
		if err := h.service.HandleSubmit(ctx, ch, msg.Body, msg.Nonce); err != nil {
			// A validation failure is the client's mistake; anything else is
			// worth operator attention.
			if domain.IsValidation(err) {
				l.Debug().Str(log.FieldChannelID, ch.ID).Err(err).Msg("submission rejected")
			} else {
				l.Warn().Str(log.FieldChannelID, ch.ID).Err(err).Msg("submit failed")
			}
		}

	case domain.MsgTypeAck:
		var msg domain.AckMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			ch.SendControl(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid ack"))
			return
		}
		if err := h.service.HandleAck(ctx, ch, msg.Sequence); err != nil {
			l.Debug().Str(log.FieldChannelID, ch.ID).Err(err).Msg("ack failed")
		}

	case domain.MsgTypeRead:
		var msg domain.ReadMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			ch.SendControl(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid read"))
			return
		}
		if err := h.service.HandleRead(ctx, ch, msg.UpToSequence); err != nil {
			l.Debug().Str(log.FieldChannelID, ch.ID).Err(err).Msg("read failed")
		}

	case domain.MsgTypeReplay:
		var msg domain.ReplayMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			ch.SendControl(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid replay"))
			return
		}
		if err := h.service.HandleReplay(ctx, ch, msg.SinceSequence); err != nil {
			l.Debug().Str(log.FieldChannelID, ch.ID).Err(err).Msg("replay failed")
		}

	case domain.MsgTypePing:
		ch.SendControl(map[string]string{"type": domain.MsgTypePong})

	default:
		ch.SendControl(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown message type"))
	}
}
