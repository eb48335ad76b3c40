package store

import (
	"time"

	"github.com/Zwubman/software-company-sub002/internal/domain"
)

// ConversationModel is the GORM model for the conversations table. The
// last_sequence column is the conversation's sequence counter; it is only
// touched inside the append transaction, under a row lock.
type ConversationModel struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	UserID       string    `gorm:"type:varchar(36);uniqueIndex;not null"`
	LastSequence int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (ConversationModel) TableName() string {
	return "conversations"
}

func (m *ConversationModel) ToDomain() *domain.Conversation {
	return &domain.Conversation{
		ID:           m.ID,
		UserID:       m.UserID,
		LastSequence: m.LastSequence,
		CreatedAt:    m.CreatedAt,
	}
}

// MessageModel is the GORM model for the append-only messages table.
type MessageModel struct {
	ConversationID string    `gorm:"type:varchar(36);primaryKey;uniqueIndex:idx_messages_sender_nonce"`
	Sequence       int64     `gorm:"primaryKey;autoIncrement:false"`
	SenderID       string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_messages_sender_nonce"`
	SenderRole     string    `gorm:"type:varchar(10);not null"`
	Body           string    `gorm:"type:text;not null"`
	Nonce          string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_messages_sender_nonce"`
	DeliveryState  string    `gorm:"type:varchar(10);not null;default:'persisted'"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (MessageModel) TableName() string {
	return "messages"
}

func (m *MessageModel) ToDomain() *domain.Message {
	return &domain.Message{
		ConversationID: m.ConversationID,
		Sequence:       m.Sequence,
		SenderID:       m.SenderID,
		SenderRole:     domain.Role(m.SenderRole),
		Body:           m.Body,
		Nonce:          m.Nonce,
		DeliveryState:  domain.DeliveryState(m.DeliveryState),
		CreatedAt:      m.CreatedAt,
	}
}

// WatermarkModel is the GORM model for per-participant read watermarks.
type WatermarkModel struct {
	ConversationID string    `gorm:"type:varchar(36);primaryKey"`
	ParticipantID  string    `gorm:"type:varchar(36);primaryKey"`
	Sequence       int64     `gorm:"not null;default:0"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (WatermarkModel) TableName() string {
	return "watermarks"
}

// Models returns every GORM model for auto-migration.
func Models() []interface{} {
	return []interface{}{
		&ConversationModel{},
		&MessageModel{},
		&WatermarkModel{},
	}
}
