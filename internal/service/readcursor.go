package service

import (
	"context"

	"chatcore/internal/domain"
)

// ReadCursorService implements the Read-Cursor Service:
// each participant's read position is a message ID that only moves
// forward, and unread counts are derived from it on demand.
type ReadCursorService struct {
	store domain.Store
}

func NewReadCursorService(store domain.Store) *ReadCursorService {
	return &ReadCursorService{store: store}
}

// MarkRead advances userID's read cursor in conversationID to messageID.
// The store enforces monotonicity: a cursor never moves backward.
func (s *ReadCursorService) MarkRead(ctx context.Context, conversationID, userID, messageID string) error {
	if _, err := s.store.GetParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.ConversationID != conversationID {
		return domain.ErrMessageNotFound
	}
	return s.store.MarkRead(ctx, conversationID, userID, messageID)
}

// UnreadFor returns the number of messages in conversationID sent by
// someone other than userID, after userID's current read cursor.
func (s *ReadCursorService) UnreadFor(ctx context.Context, conversationID, userID string) (int, error) {
	return s.store.UnreadCount(ctx, conversationID, userID)
}
