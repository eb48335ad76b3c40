package domain

import "time"

// WebSocket message types from client.
const (
	MsgTypeAuth        = "auth"
	MsgTypeJoin        = "join"
	MsgTypeChatMessage = "chat_message"
	MsgTypeAck         = "ack"
	MsgTypeRead        = "read"
	MsgTypeReplay      = "replay"
	MsgTypePing        = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeAuthResult  = "auth_result"
	MsgTypeJoined      = "joined"
	MsgTypeMessageAck  = "message_ack"
	MsgTypeReadReceipt = "read_receipt"
	MsgTypeReplayDone  = "replay_done"
	MsgTypeError       = "error"
	MsgTypePong        = "pong"
)

// Error codes
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeNotJoined     = "NOT_JOINED"
	ErrCodeNotSent       = "NOT_SENT"
	ErrCodeRetryable     = "RETRYABLE"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// JoinMessage attaches an agent channel to a conversation.
type JoinMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

// ChatMessageIn carries a new message submission. The nonce is generated by
// the client and makes retries idempotent.
type ChatMessageIn struct {
	Type  string `json:"type"`
	Body  string `json:"body"`
	Nonce string `json:"nonce"`
}

// AckMessage acknowledges receipt of a fanned-out message.
type AckMessage struct {
	Type     string `json:"type"`
	Sequence int64  `json:"sequence"`
}

// ReadMessage advances the sender's read watermark.
type ReadMessage struct {
	Type         string `json:"type"`
	UpToSequence int64  `json:"up_to_sequence"`
}

// ReplayMessage requests every persisted message after SinceSequence.
type ReplayMessage struct {
	Type          string `json:"type"`
	SinceSequence int64  `json:"since_sequence"`
}

// Server -> Client messages

type AuthResultMessage struct {
	Type           string `json:"type"`
	Success        bool   `json:"success"`
	ParticipantID  string `json:"participant_id,omitempty"`
	Role           Role   `json:"role,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message,omitempty"`
}

type JoinedMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

// ChatMessageOut is a persisted message pushed to a channel, either live or
// during replay.
type ChatMessageOut struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	Sequence       int64     `json:"sequence"`
	SenderID       string    `json:"sender_id"`
	SenderRole     Role      `json:"sender_role"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageAckOut tells the sender its submission was durably stored and which
// sequence number it received. A resubmitted nonce gets the original sequence.
type MessageAckOut struct {
	Type     string `json:"type"`
	Nonce    string `json:"nonce"`
	Sequence int64  `json:"sequence"`
}

type ReadReceiptOut struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	ParticipantID  string `json:"participant_id"`
	UpToSequence   int64  `json:"up_to_sequence"`
}

type ReplayDoneMessage struct {
	Type         string `json:"type"`
	LastSequence int64  `json:"last_sequence"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	// Nonce is set when the error concerns a specific submission, so the
	// client can mark that message as not sent.
	Nonce string `json:"nonce,omitempty"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}

// NewMessageOut converts a persisted message to its wire form.
func NewMessageOut(m *Message) *ChatMessageOut {
	return &ChatMessageOut{
		Type:           MsgTypeChatMessage,
		ConversationID: m.ConversationID,
		Sequence:       m.Sequence,
		SenderID:       m.SenderID,
		SenderRole:     m.SenderRole,
		Body:           m.Body,
		CreatedAt:      m.CreatedAt,
	}
}
