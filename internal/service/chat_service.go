package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Zwubman/software-company-sub002/internal/audit"
	"github.com/Zwubman/software-company-sub002/internal/config"
	"github.com/Zwubman/software-company-sub002/internal/domain"
	"github.com/Zwubman/software-company-sub002/internal/events"
	"github.com/Zwubman/software-company-sub002/internal/hub"
	"github.com/Zwubman/software-company-sub002/internal/identity"
	"github.com/Zwubman/software-company-sub002/internal/registry"
	"github.com/Zwubman/software-company-sub002/internal/store"
	"github.com/Zwubman/software-company-sub002/pkg/log"
)

type chatService struct {
	hub       *hub.Hub
	store     store.MessageStore
	validator identity.Validator
	publisher events.Publisher
	registry  registry.Registry
	cfg       config.ChatConfig

	// One mutex per conversation serializes the submit path, so sequence
	// assignment and persistence for a conversation never interleave.
	submitLocks sync.Map // conversation id -> *sync.Mutex
}

func NewChatService(
	h *hub.Hub,
	st store.MessageStore,
	validator identity.Validator,
	publisher events.Publisher,
	reg registry.Registry,
	cfg config.ChatConfig,
) ChatService {
	return &chatService{
		hub:       h,
		store:     st,
		validator: validator,
		publisher: publisher,
		registry:  reg,
		cfg:       cfg,
	}
}

func (s *chatService) HandleAuth(ctx context.Context, ch *hub.Channel, token string) error {
	ident, err := s.validator.Validate(ctx, token)
	if err != nil {
		ch.SendControl(&domain.AuthResultMessage{
			Type:    domain.MsgTypeAuthResult,
			Success: false,
			Message: "invalid or expired credential",
		})
		audit.Log(ctx, audit.ActionAuthFailed, "", "channel auth rejected")
		return err
	}

	ch.Session.Authenticate(ident.ParticipantID, ident.DisplayName, ident.Role)

	result := &domain.AuthResultMessage{
		Type:          domain.MsgTypeAuthResult,
		Success:       true,
		ParticipantID: ident.ParticipantID,
		Role:          ident.Role,
	}

	// A user channel is bound to its own conversation immediately; the
	// conversation is created on first contact. Agents attach via join.
	if ident.Role == domain.RoleUser {
		conv, err := s.store.EnsureConversation(ctx, ident.ParticipantID)
		if err != nil {
			ch.SendControl(domain.NewErrorMessage(domain.ErrCodeInternalError, "failed to open conversation"))
			return err
		}
		s.attach(ctx, ch, conv.ID)
		result.ConversationID = conv.ID
	}

	audit.Log(ctx, audit.ActionAuth, ident.ParticipantID, "channel authenticated")
	ch.SendControl(result)
	return nil
}

func (s *chatService) HandleJoin(ctx context.Context, ch *hub.Channel, conversationID string) error {
	if !ch.Session.IsAuthenticated() {
		ch.SendControl(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "not authenticated"))
		return domain.ErrInvalidCredential
	}
	if ch.Session.GetRole() != domain.RoleAgent {
		ch.SendControl(domain.NewErrorMessage(domain.ErrCodeBadRequest, "only agents join by conversation id"))
		return domain.ErrNotParticipant
	}

	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			ch.SendControl(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown conversation"))
			return err
		}
		ch.SendControl(domain.NewErrorMessage(domain.ErrCodeInternalError, "failed to load conversation"))
		return err
	}

	// An agent channel serves one conversation at a time; re-join switches.
	if current := ch.Session.GetConversation(); current != "" && current != conversationID {
		s.detach(ctx, ch, current)
	}
	s.attach(ctx, ch, conversationID)

	audit.LogWithDetail(ctx, audit.ActionJoin, ch.Session.GetParticipantID(), conversationID, "agent joined conversation")
	ch.SendControl(&domain.JoinedMessage{
		Type:           domain.MsgTypeJoined,
		ConversationID: conversationID,
	})
	return nil
}

func (s *chatService) HandleSubmit(ctx context.Context, ch *hub.Channel, body, nonce string) error {
	conversationID, err := s.requireAttached(ch)
	if err != nil {
		return err
	}

	if err := s.validateSubmission(body, nonce); err != nil {
		ch.SendControl(&domain.ErrorMessage{
			Type:    domain.MsgTypeError,
			Code:    domain.ErrCodeBadRequest,
			Message: err.Error(),
			Nonce:   nonce,
		})
		return err
	}

	senderID := ch.Session.GetParticipantID()
	senderRole := ch.Session.GetRole()

	// Persist before acknowledging. The timeout bounds the suspension; a
	// timed-out append surfaces as retryable, never as silence.
	persistCtx, cancel := context.WithTimeout(context.Background(), s.cfg.PersistTimeout)
	defer cancel()
	persistCtx = log.WithLogger(persistCtx, log.Ctx(ctx))

	// The lock covers the broadcast enqueue, not just the append. Frames must
	// enter the fan-out queue in sequence order: a concurrent submit's higher
	// sequence would otherwise raise every recipient's sent watermark first,
	// and the earlier message would be dropped as already seen.
	mu := s.lockConversation(conversationID)
	msg, duplicate, err := s.store.Append(persistCtx, conversationID, senderID, senderRole, body, nonce)
	if err != nil {
		mu.Unlock()
		code := domain.ErrCodeNotSent
		if errors.Is(err, domain.ErrTransient) {
			code = domain.ErrCodeRetryable
		}
		ch.SendControl(&domain.ErrorMessage{
			Type:    domain.MsgTypeError,
			Code:    code,
			Message: "message was not sent",
			Nonce:   nonce,
		})
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldConversationID, conversationID).Str(log.FieldNonce, nonce).Msg("append failed")
		return err
	}

	ch.SendControl(&domain.MessageAckOut{
		Type:     domain.MsgTypeMessageAck,
		Nonce:    nonce,
		Sequence: msg.Sequence,
	})

	// A replayed nonce means this message was already persisted and fanned
	// out; repeating the fan-out would only create duplicate frames. The
	// sender's channel gets the ack above; its other tabs and the other
	// side's channels get the message. An empty set is fine, replay covers
	// absent participants.
	var fanoutErr error
	if !duplicate {
		fanoutErr = s.hub.BroadcastToConversation(conversationID, msg.Sequence, domain.NewMessageOut(msg), ch.ID)
	}
	mu.Unlock()

	if duplicate {
		return nil
	}

	audit.LogWithDetail(ctx, audit.ActionSubmit, senderID, strconv.FormatInt(msg.Sequence, 10), "message persisted")

	if err := s.publisher.PublishMessagePersisted(ctx, msg); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to publish persisted-message event")
	}

	return fanoutErr
}

func (s *chatService) HandleAck(ctx context.Context, ch *hub.Channel, sequence int64) error {
	conversationID, err := s.requireAttached(ch)
	if err != nil {
		return err
	}

	if _, advanced := ch.AckUpTo(sequence); !advanced {
		return nil // duplicate or stale ack
	}

	if err := s.store.MarkDelivered(ctx, conversationID, sequence); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldConversationID, conversationID).Msg("failed to mark delivered")
	}
	return nil
}

func (s *chatService) HandleRead(ctx context.Context, ch *hub.Channel, upToSequence int64) error {
	conversationID, err := s.requireAttached(ch)
	if err != nil {
		return err
	}
	participantID := ch.Session.GetParticipantID()

	effective, err := s.store.MarkRead(ctx, conversationID, participantID, upToSequence)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldConversationID, conversationID).Msg("failed to mark read")
		return err
	}
	if effective != upToSequence {
		return nil // watermark did not move
	}

	audit.LogWithDetail(ctx, audit.ActionRead, participantID, strconv.FormatInt(effective, 10), "read watermark advanced")

	wm := &domain.Watermark{
		ConversationID: conversationID,
		ParticipantID:  participantID,
		Sequence:       effective,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := s.publisher.PublishRead(ctx, wm); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to publish read event")
	}

	// Let the other side render "seen" without polling.
	return s.hub.BroadcastToConversation(conversationID, 0, &domain.ReadReceiptOut{
		Type:           domain.MsgTypeReadReceipt,
		ConversationID: conversationID,
		ParticipantID:  participantID,
		UpToSequence:   effective,
	}, ch.ID)
}

func (s *chatService) HandleReplay(ctx context.Context, ch *hub.Channel, sinceSequence int64) error {
	conversationID, err := s.requireAttached(ch)
	if err != nil {
		return err
	}

	ch.BeginReplay()

	last := sinceSequence
	for {
		page, err := s.store.ListSince(ctx, conversationID, last, s.cfg.ReplayPageSize)
		if err != nil {
			ch.FinishReplay()
			ch.SendControl(domain.NewErrorMessage(domain.ErrCodeInternalError, "replay failed"))
			return err
		}
		for i := range page {
			data, merr := marshalMessageOut(&page[i])
			if merr != nil {
				ch.FinishReplay()
				return merr
			}
			if !ch.PushReplay(page[i].Sequence, data) {
				s.hub.Unregister(ch)
				return fmt.Errorf("replay overflow on channel %s", ch.ID)
			}
			last = page[i].Sequence
		}
		if len(page) < s.cfg.ReplayPageSize {
			break
		}
	}

	done, err := marshalReplayDone(last)
	if err != nil {
		ch.FinishReplay()
		return err
	}
	if !ch.PushReplay(0, done) {
		s.hub.Unregister(ch)
		return fmt.Errorf("replay overflow on channel %s", ch.ID)
	}

	if !ch.FinishReplay() {
		s.hub.Unregister(ch)
		return fmt.Errorf("replay flush overflow on channel %s", ch.ID)
	}

	audit.LogWithDetail(ctx, audit.ActionReplay, ch.Session.GetParticipantID(), strconv.FormatInt(last, 10), "replay completed")
	return nil
}

func (s *chatService) HandleDisconnect(ctx context.Context, ch *hub.Channel) error {
	if !ch.Session.IsAttached() {
		return nil
	}
	s.detach(ctx, ch, ch.Session.GetConversation())
	audit.Log(ctx, audit.ActionDisconnect, ch.Session.GetParticipantID(), "channel disconnected")
	return nil
}

func (s *chatService) Start(ctx context.Context) error {
	if err := s.registry.StartHeartbeat(ctx); err != nil {
		return fmt.Errorf("failed to start registry heartbeat: %w", err)
	}
	l := log.L()
	l.Info().Msg("chat service started")
	return nil
}

func (s *chatService) Stop() error {
	s.registry.StopHeartbeat()
	if err := s.publisher.Close(); err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("failed to close event publisher")
	}
	return nil
}

func (s *chatService) attach(ctx context.Context, ch *hub.Channel, conversationID string) {
	s.hub.JoinConversation(ch, conversationID)
	ch.Session.AttachConversation(conversationID)

	if err := s.registry.Register(ctx, conversationID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldConversationID, conversationID).Msg("failed to register conversation")
	}
}

func (s *chatService) detach(ctx context.Context, ch *hub.Channel, conversationID string) {
	s.hub.LeaveConversation(ch, conversationID)
	ch.Session.DetachConversation()

	if s.hub.ConversationChannelCount(conversationID) == 0 {
		if err := s.registry.Deregister(ctx, conversationID); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldConversationID, conversationID).Msg("failed to deregister conversation")
		}
	}
}

func (s *chatService) requireAttached(ch *hub.Channel) (string, error) {
	if !ch.Session.IsAuthenticated() {
		ch.SendControl(domain.NewErrorMessage(domain.ErrCodeUnauthorized, "not authenticated"))
		return "", domain.ErrInvalidCredential
	}
	conversationID := ch.Session.GetConversation()
	if conversationID == "" {
		ch.SendControl(domain.NewErrorMessage(domain.ErrCodeNotJoined, "no conversation attached"))
		return "", domain.ErrNotParticipant
	}
	return conversationID, nil
}

func (s *chatService) validateSubmission(body, nonce string) error {
	if body == "" {
		return domain.ErrEmptyBody
	}
	if len(body) > s.cfg.MaxBodyBytes {
		return domain.ErrBodyTooLarge
	}
	if nonce == "" {
		return domain.ErrMissingNonce
	}
	return nil
}

func (s *chatService) lockConversation(conversationID string) *sync.Mutex {
	v, _ := s.submitLocks.LoadOrStore(conversationID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu
}
