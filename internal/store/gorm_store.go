package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Zwubman/software-company-sub002/internal/domain"
	"github.com/Zwubman/software-company-sub002/pkg/log"
)

// GormStore implements MessageStore on a relational database. Sequence
// assignment happens inside a transaction holding the conversation row lock,
// so appends on one conversation are serialized while independent
// conversations proceed in parallel.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates the conversations, messages and watermarks tables.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(Models()...)
}

func (s *GormStore) EnsureConversation(ctx context.Context, userID string) (*domain.Conversation, error) {
	l := log.Ctx(ctx)

	var model ConversationModel
	err := s.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error
	if err == nil {
		return model.ToDomain(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storageErr("lookup conversation", err)
	}

	model = ConversationModel{
		ID:     uuid.New().String(),
		UserID: userID,
	}
	// Another channel of the same user may create the row concurrently; the
	// unique index on user_id decides the winner and we re-read.
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
	if res.Error != nil {
		return nil, storageErr("create conversation", res.Error)
	}
	if res.RowsAffected == 0 {
		if err := s.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error; err != nil {
			return nil, storageErr("re-read conversation", err)
		}
	} else {
		l.Info().Str(log.FieldConversationID, model.ID).Str(log.FieldParticipantID, userID).Msg("conversation created")
	}

	return model.ToDomain(), nil
}

func (s *GormStore) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var model ConversationModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", conversationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, storageErr("get conversation", err)
	}
	return model.ToDomain(), nil
}

func (s *GormStore) Append(ctx context.Context, conversationID, senderID string, senderRole domain.Role, body, nonce string) (*domain.Message, bool, error) {
	var (
		out *domain.Message
		dup bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv ConversationModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&conv, "id = ?", conversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrConversationNotFound
			}
			return err
		}

		var existing MessageModel
		err := tx.First(&existing, "conversation_id = ? AND sender_id = ? AND nonce = ?",
			conversationID, senderID, nonce).Error
		if err == nil {
			out = existing.ToDomain()
			dup = true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		model := MessageModel{
			ConversationID: conversationID,
			Sequence:       conv.LastSequence + 1,
			SenderID:       senderID,
			SenderRole:     string(senderRole),
			Body:           body,
			Nonce:          nonce,
			DeliveryState:  string(domain.DeliveryPersisted),
		}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if err := tx.Model(&ConversationModel{}).
			Where("id = ?", conversationID).
			Update("last_sequence", model.Sequence).Error; err != nil {
			return err
		}

		out = model.ToDomain()
		return nil
	})

	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			return nil, false, err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, false, fmt.Errorf("%w: append timed out: %v", domain.ErrTransient, err)
		}
		return nil, false, storageErr("append message", err)
	}

	return out, dup, nil
}

func (s *GormStore) ListSince(ctx context.Context, conversationID string, sinceSequence int64, limit int) ([]domain.Message, error) {
	query := s.db.WithContext(ctx).
		Where("conversation_id = ? AND sequence > ?", conversationID, sinceSequence).
		Order("sequence ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []MessageModel
	if err := query.Find(&models).Error; err != nil {
		return nil, storageErr("list messages", err)
	}

	messages := make([]domain.Message, 0, len(models))
	for i := range models {
		messages = append(messages, *models[i].ToDomain())
	}
	return messages, nil
}

func (s *GormStore) GetAll(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return s.ListSince(ctx, conversationID, 0, 0)
}

func (s *GormStore) MarkDelivered(ctx context.Context, conversationID string, upToSequence int64) error {
	err := s.db.WithContext(ctx).Model(&MessageModel{}).
		Where("conversation_id = ? AND sequence <= ? AND delivery_state = ?",
			conversationID, upToSequence, string(domain.DeliveryPersisted)).
		Update("delivery_state", string(domain.DeliveryDelivered)).Error
	if err != nil {
		return storageErr("mark delivered", err)
	}
	return nil
}

func (s *GormStore) MarkRead(ctx context.Context, conversationID, participantID string, upToSequence int64) (int64, error) {
	effective := upToSequence

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wm WatermarkModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&wm, "conversation_id = ? AND participant_id = ?", conversationID, participantID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			wm = WatermarkModel{
				ConversationID: conversationID,
				ParticipantID:  participantID,
				Sequence:       upToSequence,
			}
			if err := tx.Create(&wm).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		case upToSequence <= wm.Sequence:
			// Watermarks never regress.
			effective = wm.Sequence
			return nil
		default:
			if err := tx.Model(&WatermarkModel{}).
				Where("conversation_id = ? AND participant_id = ?", conversationID, participantID).
				Update("sequence", upToSequence).Error; err != nil {
				return err
			}
		}

		// Messages from the other side up to the watermark are now read.
		return tx.Model(&MessageModel{}).
			Where("conversation_id = ? AND sequence <= ? AND sender_id <> ? AND delivery_state <> ?",
				conversationID, effective, participantID, string(domain.DeliveryRead)).
			Update("delivery_state", string(domain.DeliveryRead)).Error
	})

	if err != nil {
		return 0, storageErr("mark read", err)
	}
	return effective, nil
}

func (s *GormStore) GetWatermark(ctx context.Context, conversationID, participantID string) (int64, error) {
	var wm WatermarkModel
	err := s.db.WithContext(ctx).
		First(&wm, "conversation_id = ? AND participant_id = ?", conversationID, participantID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, storageErr("get watermark", err)
	}
	return wm.Sequence, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStorage, op, err)
}
