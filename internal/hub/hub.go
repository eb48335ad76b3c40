package hub

import (
	"encoding/json"
	"sync"

	"github.com/Zwubman/software-company-sub002/internal/config"
	"github.com/Zwubman/software-company-sub002/pkg/log"
)

// Hub owns every live channel and the conversation fan-out sets. Register,
// unregister and broadcast requests are serialized through the run loop, so
// fan-out for a conversation preserves the enqueue order. A channel whose send
// queue is full is evicted rather than waited on; the client recovers through
// replay on its next connect.
type Hub struct {
	channels      map[string]*Channel            // channel id -> channel
	conversations map[string]map[string]*Channel // conversation id -> channel id -> channel
	register      chan *Channel
	unregister    chan *Channel
	broadcast     chan *conversationFrame
	mu            sync.RWMutex
	config        config.WebSocketConfig
}

type conversationFrame struct {
	ConversationID string
	Sequence       int64
	Data           []byte
	Exclude        string // channel id to skip
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		channels:      make(map[string]*Channel),
		conversations: make(map[string]map[string]*Channel),
		register:      make(chan *Channel),
		unregister:    make(chan *Channel),
		broadcast:     make(chan *conversationFrame, 256),
		config:        cfg,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case ch := <-h.register:
			h.mu.Lock()
			h.channels[ch.ID] = ch
			h.mu.Unlock()
			l := log.L()
			l.Debug().Str(log.FieldChannelID, ch.ID).Msg("channel registered")

		case ch := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.channels[ch.ID]; ok {
				for convID, set := range h.conversations {
					delete(set, ch.ID)
					if len(set) == 0 {
						delete(h.conversations, convID)
					}
				}
				delete(h.channels, ch.ID)
				ch.CloseSend()
			}
			h.mu.Unlock()
			l := log.L()
			l.Debug().Str(log.FieldChannelID, ch.ID).Msg("channel unregistered")

		case frame := <-h.broadcast:
			h.mu.RLock()
			if set, ok := h.conversations[frame.ConversationID]; ok {
				for id, ch := range set {
					if id == frame.Exclude {
						continue
					}
					if !ch.Deliver(frame.Sequence, frame.Data) {
						go h.evict(ch)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) Register(ch *Channel) {
	h.register <- ch
}

func (h *Hub) Unregister(ch *Channel) {
	h.unregister <- ch
}

// JoinConversation adds a channel to a conversation's fan-out set.
func (h *Hub) JoinConversation(ch *Channel, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conversations[conversationID]; !ok {
		h.conversations[conversationID] = make(map[string]*Channel)
	}
	h.conversations[conversationID][ch.ID] = ch
	l := log.L()
	l.Info().Str(log.FieldChannelID, ch.ID).Str(log.FieldConversationID, conversationID).Msg("channel joined conversation")
}

// LeaveConversation removes a channel from a conversation's fan-out set.
func (h *Hub) LeaveConversation(ch *Channel, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.conversations[conversationID]; ok {
		delete(set, ch.ID)
		if len(set) == 0 {
			delete(h.conversations, conversationID)
		}
	}
	l := log.L()
	l.Info().Str(log.FieldChannelID, ch.ID).Str(log.FieldConversationID, conversationID).Msg("channel left conversation")
}

// BroadcastToConversation fans a frame out to every channel attached to the
// conversation. An empty fan-out set is not an error: the message is already
// durable and reaches absent participants through replay. Pass sequence 0 for
// frames that carry no conversation sequence.
func (h *Hub) BroadcastToConversation(conversationID string, sequence int64, message interface{}, exclude string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.broadcast <- &conversationFrame{
		ConversationID: conversationID,
		Sequence:       sequence,
		Data:           data,
		Exclude:        exclude,
	}
	return nil
}

// ConversationChannelCount reports how many channels are attached to a
// conversation.
func (h *Hub) ConversationChannelCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if set, ok := h.conversations[conversationID]; ok {
		return len(set)
	}
	return 0
}

func (h *Hub) evict(ch *Channel) {
	l := log.L()
	l.Warn().Str(log.FieldChannelID, ch.ID).Msg("send queue full, evicting channel")
	h.unregister <- ch
}
