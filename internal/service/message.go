package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"chatcore/internal/domain"
	"chatcore/internal/events"
	"chatcore/internal/rooms"
	"chatcore/internal/security"
)

const (
	editWindow   = 24 * time.Hour
	deleteWindow = 90 * 24 * time.Hour

	defaultListLimit = 50
	maxListLimit     = 200
)

// MessageService implements the Message Pipeline: every
// send/edit/delete goes through authorize -> validate -> persist -> publish
// in that order. Publish failures never unwind a successful persist.
type MessageService struct {
	store     domain.Store
	encryptor *security.Encryptor
	publisher events.Publisher
	registry  *rooms.Registry
	log       *logrus.Entry
}

func NewMessageService(store domain.Store, encryptor *security.Encryptor, publisher events.Publisher, registry *rooms.Registry, log *logrus.Entry) *MessageService {
	return &MessageService{store: store, encryptor: encryptor, publisher: publisher, registry: registry, log: log}
}

// SendInput is the input to Send.
type SendInput struct {
	ConversationID string
	SenderID       string
	Content        string
	Kind           string // optional, defaults to "text"
}

// Send authorizes, validates, persists, and publishes a new message.
func (s *MessageService) Send(ctx context.Context, in SendInput) (*domain.Message, error) {
	if err := s.requireActiveParticipant(ctx, in.ConversationID, in.SenderID); err != nil {
		return nil, err
	}

	kind, err := domain.ParseMessageKind(in.Kind)
	if err != nil {
		return nil, err
	}
	if kind == domain.MessageSystem {
		return nil, fmt.Errorf("%w: clients cannot send system messages", domain.ErrKindInvalid)
	}
	content, err := domain.NewMessageContent(in.Content)
	if err != nil {
		return nil, err
	}

	encrypted, err := s.encryptor.Encrypt(content)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}

	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Kind:           kind,
		Content:        encrypted,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	out := *msg
	out.Content = content
	s.publishAsync(ctx, events.MessageCreated, &out)
	s.broadcastNewMessage(&out)
	return &out, nil
}

func (s *MessageService) createSystemMessage(ctx context.Context, conversationID, text string) (*domain.Message, error) {
	encrypted, err := s.encryptor.Encrypt(text)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}
	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       domain.SystemSenderID,
		Kind:           domain.MessageSystem,
		Content:        encrypted,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create system message: %w", err)
	}
	out := *msg
	out.Content = text
	s.publishAsync(ctx, events.MessageCreated, &out)
	s.broadcastNewMessage(&out)
	return &out, nil
}

// Edit replaces the content of a message the caller sent, within the
// 24-hour edit window, provided it is not deleted and not a system message.
func (s *MessageService) Edit(ctx context.Context, callerID, messageID, newContent string) (*domain.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted() {
		return nil, domain.ErrAlreadyDeleted
	}
	if msg.SenderID != callerID {
		return nil, domain.ErrNotAuthorized
	}
	if msg.Kind == domain.MessageSystem {
		return nil, domain.ErrEditForbiddenKind
	}
	if time.Since(msg.CreatedAt) > editWindow {
		return nil, domain.ErrEditWindowExpired
	}

	content, err := domain.NewMessageContent(newContent)
	if err != nil {
		return nil, err
	}
	encrypted, err := s.encryptor.Encrypt(content)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}

	now := time.Now()
	if err := s.store.EditMessage(ctx, messageID, encrypted, now); err != nil {
		return nil, err
	}
	msg.Content = content
	msg.EditedAt = &now
	s.publishAsync(ctx, events.MessageEdited, msg)
	s.broadcastEdited(msg)
	return msg, nil
}

// Delete soft-deletes a message the caller sent, within the 90-day delete
// window. Deletion never repoints the
// conversation's last-message pointer.
func (s *MessageService) Delete(ctx context.Context, callerID, messageID string) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.IsDeleted() {
		return domain.ErrAlreadyDeleted
	}
	if msg.SenderID != callerID {
		return domain.ErrNotAuthorized
	}
	if time.Since(msg.CreatedAt) > deleteWindow {
		return domain.ErrDeleteWindowExpired
	}

	if err := s.store.SoftDeleteMessage(ctx, messageID); err != nil {
		return err
	}
	s.publishAsync(ctx, events.MessageDeleted, msg)
	s.broadcastDeleted(msg)
	return nil
}

// List returns messages in a conversation in chronological order, with
// optional cursor-based pagination via beforeMessageID.
func (s *MessageService) List(ctx context.Context, conversationID, userID, beforeMessageID string, limit int) ([]*domain.Message, error) {
	if err := s.requireActiveParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	msgs, err := s.store.ListMessages(ctx, conversationID, beforeMessageID, limit)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		s.decryptInPlace(m)
	}
	return msgs, nil
}

func (s *MessageService) requireActiveParticipant(ctx context.Context, conversationID, userID string) error {
	p, err := s.store.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !p.Active() {
		return domain.ErrNotAuthorized
	}
	return nil
}

func (s *MessageService) decryptInPlace(m *domain.Message) {
	if m.IsDeleted() {
		return
	}
	if plain, err := s.encryptor.Decrypt(m.Content); err == nil {
		m.Content = plain
	}
}

// broadcastFrame is the wire shape of a room broadcast, matching the
// outbound socket frame the Connection Supervisor emits so HTTP-originated
// sends, edits, and deletes reach connected clients identically to
// socket-originated ones.
type broadcastFrame struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	MessageID      string    `json:"message_id,omitempty"`
	SenderID       string    `json:"sender_id,omitempty"`
	Content        string    `json:"content,omitempty"`
	Kind           string    `json:"kind,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

func (s *MessageService) broadcastNewMessage(msg *domain.Message) {
	s.broadcast(broadcastFrame{
		Type:           "new_message",
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Kind:           string(msg.Kind),
		CreatedAt:      msg.CreatedAt,
	})
}

func (s *MessageService) broadcastEdited(msg *domain.Message) {
	s.broadcast(broadcastFrame{
		Type:           "message_edited",
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Kind:           string(msg.Kind),
	})
}

func (s *MessageService) broadcastDeleted(msg *domain.Message) {
	// The message content is not decrypted on the delete path, so the
	// frame carries no content field.
	s.broadcast(broadcastFrame{
		Type:           "message_deleted",
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
	})
}

func (s *MessageService) broadcast(f broadcastFrame) {
	if s.registry == nil {
		return
	}
	frame, err := json.Marshal(f)
	if err != nil {
		s.log.WithError(err).Warn("failed to encode broadcast frame")
		return
	}
	s.registry.Broadcast(f.ConversationID, frame)
}

func (s *MessageService) publishAsync(ctx context.Context, kind events.DomainEventKind, msg *domain.Message) {
	if s.publisher == nil {
		return
	}
	evt := events.DomainEvent{
		Kind:           kind,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		OccurredAt:     time.Now(),
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.WithError(err).Warn("failed to publish domain event")
	}
}
