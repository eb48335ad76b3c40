package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Zwubman/software-company-sub002/internal/config"
	"github.com/Zwubman/software-company-sub002/internal/domain"
	"github.com/Zwubman/software-company-sub002/pkg/log"
)

// Channel is one live transport session: a single WebSocket connection bound
// to one participant. A participant may hold several channels at once (one per
// browser tab); each is registered with the hub independently.
//
// Outbound frames pass through a bounded Send queue so one slow peer never
// blocks the write path of the conversation. While a replay is in progress,
// live frames are parked in a buffer and flushed afterwards; frames whose
// sequence was already covered by the replay are dropped, which keeps the
// sequence order seen by the client strictly ascending across the reconnect
// seam.
type Channel struct {
	ID      string
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	Session *domain.Session
	config  config.WebSocketConfig

	mu          sync.Mutex
	closed      bool
	replaying   bool
	replayFloor int64 // lastSent captured at BeginReplay
	parked      []outboundFrame
	lastSent    int64 // highest message sequence handed to Send
	lastAck     int64 // highest sequence acknowledged by the client
}

type outboundFrame struct {
	sequence int64 // 0 for frames that carry no conversation sequence
	data     []byte
}

func NewChannel(id string, h *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Channel {
	return &Channel{
		ID:      id,
		Hub:     h,
		Conn:    conn,
		Send:    make(chan []byte, cfg.SendQueueSize),
		Session: domain.NewSession(id),
		config:  cfg,
	}
}

func (c *Channel) ReadPump(handler func(*Channel, []byte)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxFrameSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Debug().Str(log.FieldChannelID, c.ID).Err(err).Msg("websocket read error")
			}
			break
		}

		c.Session.UpdateActivity()
		handler(c, message)
	}
}

func (c *Channel) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendControl marshals and queues a frame that carries no conversation
// sequence (auth results, acks, errors, pongs). Returns false when the send
// queue is full.
func (c *Channel) SendControl(message interface{}) bool {
	data, err := json.Marshal(message)
	if err != nil {
		return false
	}
	return c.Deliver(0, data)
}

// Deliver queues an outbound frame. Frames with a sequence are deduplicated
// against what this channel has already been sent; frames arriving during a
// replay are parked. Returns false when the queue is full, in which case the
// caller should evict the channel. The queue attempt runs under the channel
// mutex so it never races with CloseSend.
func (c *Channel) Deliver(sequence int64, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		// The channel is being torn down; the client catches up via replay
		// on its next connect.
		return true
	}
	if c.replaying {
		c.parked = append(c.parked, outboundFrame{sequence: sequence, data: data})
		return true
	}
	if sequence > 0 {
		if sequence <= c.lastSent {
			return true
		}
		c.lastSent = sequence
	}

	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// BeginReplay switches the channel into replay mode: live frames park until
// FinishReplay, and the sent watermark is captured so the replay can skip
// messages the channel already received live.
func (c *Channel) BeginReplay() {
	c.mu.Lock()
	c.replaying = true
	c.replayFloor = c.lastSent
	c.mu.Unlock()
}

// PushReplay queues one replayed message. Sequences at or below the watermark
// captured by BeginReplay were already delivered live and are skipped, so the
// client never sees the order regress across the seam.
func (c *Channel) PushReplay(sequence int64, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}
	if sequence > 0 && sequence <= c.replayFloor {
		return true
	}
	if sequence > c.lastSent {
		c.lastSent = sequence
	}

	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// FinishReplay flushes parked frames, dropping any message the replay already
// covered. Returns false when the queue overflowed during the flush.
func (c *Channel) FinishReplay() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	parked := c.parked
	c.parked = nil
	c.replaying = false

	for _, f := range parked {
		if f.sequence > 0 {
			if f.sequence <= c.lastSent {
				continue
			}
			c.lastSent = f.sequence
		}
		if c.closed {
			continue
		}
		select {
		case c.Send <- f.data:
		default:
			return false
		}
	}
	return true
}

// CloseSend closes the send queue exactly once. Later Deliver and PushReplay
// calls become no-ops instead of panicking on the closed channel; the hub
// calls this when it unregisters the channel.
func (c *Channel) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// AckUpTo records a client acknowledgment. Returns the previous watermark and
// whether the ack advanced it; a stale or repeated ack is a no-op.
func (c *Channel) AckUpTo(sequence int64) (prev int64, advanced bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev = c.lastAck
	if sequence <= c.lastAck {
		return prev, false
	}
	c.lastAck = sequence
	return prev, true
}

// LastAck returns the highest sequence the client has acknowledged.
func (c *Channel) LastAck() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAck
}
