package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"chatcore/internal/domain"
)

// ConversationService implements the Conversation Service:
// creation, membership management, and the invariants that bind
// conversation kind to participant count and role.
type ConversationService struct {
	store    domain.Store
	messages *MessageService // injected after construction to emit system messages
}

func NewConversationService(store domain.Store) *ConversationService {
	return &ConversationService{store: store}
}

// SetMessageService wires the Message Pipeline in after construction, to
// avoid a circular constructor dependency between the two services.
func (s *ConversationService) SetMessageService(messages *MessageService) {
	s.messages = messages
}

// CreateDirectInput is the input to CreateDirect.
type CreateDirectInput struct {
	CreatorID string
	OtherID   string
}

// CreateDirect creates or returns the existing direct conversation between
// two users.
func (s *ConversationService) CreateDirect(ctx context.Context, in CreateDirectInput) (*domain.ConversationSummary, error) {
	if in.CreatorID == in.OtherID {
		return nil, domain.ErrSelfConversation
	}

	existing, err := s.store.FindDirectConversation(ctx, in.CreatorID, in.OtherID)
	if err != nil {
		return nil, fmt.Errorf("find direct conversation: %w", err)
	}
	if existing != nil {
		return s.toSummary(ctx, existing)
	}

	conv := &domain.Conversation{
		ID:   uuid.NewString(),
		Kind: domain.ConversationDirect,
	}
	participants := []domain.Participant{
		{ConversationID: conv.ID, UserID: in.CreatorID, Role: domain.RoleMember},
		{ConversationID: conv.ID, UserID: in.OtherID, Role: domain.RoleMember},
	}
	if err := s.store.CreateConversation(ctx, conv, participants); err != nil {
		return nil, fmt.Errorf("create direct conversation: %w", err)
	}
	return s.toSummary(ctx, conv)
}

// CreateGroupInput is the input to CreateGroup.
type CreateGroupInput struct {
	CreatorID  string
	MemberIDs  []string
	Metadata   domain.ConversationMetadata
}

// CreateGroup creates a group conversation with 2..8 members, the creator
// as admin.
func (s *ConversationService) CreateGroup(ctx context.Context, in CreateGroupInput) (*domain.ConversationSummary, error) {
	uniqueIDs := dedupeWithFirst(in.CreatorID, in.MemberIDs)
	if len(uniqueIDs) < domain.MinParticipantsForKind(domain.ConversationGroup) {
		return nil, fmt.Errorf("%w: group requires at least %d members", domain.ErrParticipantCountInvalid, domain.MinParticipantsForKind(domain.ConversationGroup))
	}
	if len(uniqueIDs) > domain.MaxParticipantsForKind(domain.ConversationGroup) {
		return nil, fmt.Errorf("%w: group allows at most %d members", domain.ErrParticipantCountInvalid, domain.MaxParticipantsForKind(domain.ConversationGroup))
	}

	conv := &domain.Conversation{
		ID:       uuid.NewString(),
		Kind:     domain.ConversationGroup,
		Metadata: in.Metadata,
	}
	participants := make([]domain.Participant, 0, len(uniqueIDs))
	for _, id := range uniqueIDs {
		role := domain.RoleMember
		if id == in.CreatorID {
			role = domain.RoleAdmin
		}
		participants = append(participants, domain.Participant{ConversationID: conv.ID, UserID: id, Role: role})
	}
	if err := s.store.CreateConversation(ctx, conv, participants); err != nil {
		return nil, fmt.Errorf("create group conversation: %w", err)
	}
	s.emitSystemMessage(ctx, conv.ID, "group conversation created")
	return s.toSummary(ctx, conv)
}

// CreateBusinessInput is the input to CreateBusiness.
type CreateBusinessInput struct {
	CustomerID  string
	AgentIDs    []string
	BusinessIDs []string
}

// CreateBusiness creates a business conversation: at least one customer and
// at least one business-side participant.
func (s *ConversationService) CreateBusiness(ctx context.Context, in CreateBusinessInput) (*domain.ConversationSummary, error) {
	if len(in.AgentIDs)+len(in.BusinessIDs) == 0 {
		return nil, fmt.Errorf("%w: business conversation requires at least one agent or business participant", domain.ErrParticipantCountInvalid)
	}

	conv := &domain.Conversation{
		ID:   uuid.NewString(),
		Kind: domain.ConversationBusiness,
	}
	participants := []domain.Participant{
		{ConversationID: conv.ID, UserID: in.CustomerID, Role: domain.RoleCustomer},
	}
	for _, id := range in.AgentIDs {
		participants = append(participants, domain.Participant{ConversationID: conv.ID, UserID: id, Role: domain.RoleAgent})
	}
	for _, id := range in.BusinessIDs {
		participants = append(participants, domain.Participant{ConversationID: conv.ID, UserID: id, Role: domain.RoleBusiness})
	}
	if err := s.store.CreateConversation(ctx, conv, participants); err != nil {
		return nil, fmt.Errorf("create business conversation: %w", err)
	}
	return s.toSummary(ctx, conv)
}

// Get returns the conversation summary for userID, which must be an active
// participant.
func (s *ConversationService) Get(ctx context.Context, conversationID, userID string) (*domain.ConversationSummary, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.requireActiveParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.toSummary(ctx, conv)
}

// ListForUser returns the conversations userID actively participates in,
// most recently updated first, paginated by limit and offset.
func (s *ConversationService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*domain.ConversationSummary, error) {
	convs, err := s.store.ListConversationsForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		summary, err := s.toSummary(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// AddParticipant adds userID to a conversation. actorID must hold a role
// that can manage participants in that conversation. Direct conversations can never gain participants.
func (s *ConversationService) AddParticipant(ctx context.Context, conversationID, actorID, newUserID string, role domain.ParticipantRole) error {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Kind == domain.ConversationDirect {
		return fmt.Errorf("%w: direct conversations have a fixed membership", domain.ErrParticipantCountInvalid)
	}
	actor, err := s.store.GetParticipant(ctx, conversationID, actorID)
	if err != nil {
		return err
	}
	if !actor.Active() || !actor.Role.CanManageParticipants() {
		return domain.ErrNotAuthorized
	}
	if !domain.RoleAllowedForKind(conv.Kind, role) {
		return domain.ErrRoleInvalidForKind
	}
	existing, err := s.store.ListParticipants(ctx, conversationID)
	if err != nil {
		return err
	}
	activeCount := 0
	for _, p := range existing {
		if p.Active() {
			activeCount++
		}
	}
	if activeCount+1 > domain.MaxParticipantsForKind(conv.Kind) {
		return fmt.Errorf("%w: conversation is at capacity", domain.ErrParticipantCountInvalid)
	}

	if err := s.store.AddParticipant(ctx, &domain.Participant{
		ConversationID: conversationID,
		UserID:         newUserID,
		Role:           role,
	}); err != nil {
		return err
	}
	s.emitSystemMessage(ctx, conversationID, fmt.Sprintf("%s joined the conversation", newUserID))
	return nil
}

// RemoveParticipant removes userID from a conversation. A user may always
// remove themselves (leave); removing someone else requires management
// privilege.
func (s *ConversationService) RemoveParticipant(ctx context.Context, conversationID, actorID, targetUserID string) error {
	if actorID != targetUserID {
		actor, err := s.store.GetParticipant(ctx, conversationID, actorID)
		if err != nil {
			return err
		}
		if !actor.Active() || !actor.Role.CanManageParticipants() {
			return domain.ErrNotAuthorized
		}
	}
	if err := s.store.RemoveParticipant(ctx, conversationID, targetUserID); err != nil {
		return err
	}
	verb := "left"
	if actorID != targetUserID {
		verb = "was removed from"
	}
	s.emitSystemMessage(ctx, conversationID, fmt.Sprintf("%s %s the conversation", targetUserID, verb))
	return nil
}

func (s *ConversationService) requireActiveParticipant(ctx context.Context, conversationID, userID string) error {
	p, err := s.store.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !p.Active() {
		return domain.ErrNotAuthorized
	}
	return nil
}

func (s *ConversationService) toSummary(ctx context.Context, conv *domain.Conversation) (*domain.ConversationSummary, error) {
	participants, err := s.store.ListParticipants(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	var lastMessage *domain.Message
	if conv.LastMessageID != nil {
		lastMessage, err = s.store.GetMessage(ctx, *conv.LastMessageID)
		if err != nil {
			lastMessage = nil
		} else if s.messages != nil {
			s.messages.decryptInPlace(lastMessage)
		}
	}

	return &domain.ConversationSummary{
		Conversation: *conv,
		Participants: participants,
		LastMessage:  lastMessage,
	}, nil
}

func (s *ConversationService) emitSystemMessage(ctx context.Context, conversationID, text string) {
	if s.messages == nil {
		return
	}
	if _, err := s.messages.createSystemMessage(ctx, conversationID, text); err != nil {
		s.messages.log.WithError(err).Warn("failed to emit system message")
	}
}

func dedupeWithFirst(first string, rest []string) []string {
	seen := map[string]struct{}{first: {}}
	out := []string{first}
	for _, id := range rest {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
