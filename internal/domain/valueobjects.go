package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ConversationKind is a closed set of conversation topologies.
type ConversationKind string

const (
	ConversationDirect   ConversationKind = "direct"
	ConversationGroup    ConversationKind = "group"
	ConversationBusiness ConversationKind = "business"
)

// ParseConversationKind validates a raw string against the closed set.
func ParseConversationKind(raw string) (ConversationKind, error) {
	switch ConversationKind(raw) {
	case ConversationDirect, ConversationGroup, ConversationBusiness:
		return ConversationKind(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown conversation kind %q", ErrKindInvalid, raw)
	}
}

// ParticipantRole is a closed set of roles a participant may hold.
type ParticipantRole string

const (
	RoleCustomer ParticipantRole = "customer"
	RoleAgent    ParticipantRole = "agent"
	RoleBusiness ParticipantRole = "business"
	RoleMember   ParticipantRole = "member"
	RoleAdmin    ParticipantRole = "admin"
)

// ParseParticipantRole validates a raw string against the closed set.
func ParseParticipantRole(raw string) (ParticipantRole, error) {
	switch ParticipantRole(raw) {
	case RoleCustomer, RoleAgent, RoleBusiness, RoleMember, RoleAdmin:
		return ParticipantRole(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown participant role %q", ErrRoleInvalidForKind, raw)
	}
}

// CanManageParticipants reports whether the role may add/remove other participants.
func (r ParticipantRole) CanManageParticipants() bool {
	return r == RoleAdmin || r == RoleBusiness
}

// RoleAllowedForKind enforces which roles a conversation kind accepts.
func RoleAllowedForKind(kind ConversationKind, role ParticipantRole) bool {
	switch kind {
	case ConversationDirect:
		return role == RoleMember
	case ConversationGroup:
		return role == RoleMember || role == RoleAdmin
	case ConversationBusiness:
		return role == RoleCustomer || role == RoleAgent || role == RoleBusiness
	default:
		return false
	}
}

// MessageKind is a closed set of message payload shapes.
type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageImage  MessageKind = "image"
	MessageFile   MessageKind = "file"
	MessageSystem MessageKind = "system"
)

// ParseMessageKind validates a raw string against the closed set. An empty
// string defaults to MessageText, matching the transports' `kind?` optional field.
func ParseMessageKind(raw string) (MessageKind, error) {
	if raw == "" {
		return MessageText, nil
	}
	switch MessageKind(raw) {
	case MessageText, MessageImage, MessageFile, MessageSystem:
		return MessageKind(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown message kind %q", ErrKindInvalid, raw)
	}
}

const (
	minMessageContentLen = 1
	maxMessageContentLen = 10_000
)

// NewMessageContent trims raw input and validates it against the 1..10000
// character bound. The returned string is the trimmed content.
func NewMessageContent(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(trimmed)
	if n < minMessageContentLen {
		return "", fmt.Errorf("%w: content is empty after trimming", ErrContentInvalid)
	}
	if n > maxMessageContentLen {
		return "", fmt.Errorf("%w: content exceeds %d characters", ErrContentInvalid, maxMessageContentLen)
	}
	return trimmed, nil
}

// ConversationMetadata is an optional adjunct carrying display/lifecycle
// settings for a conversation.
type ConversationMetadata struct {
	Title           *string
	Description     *string
	MaxParticipants int
	AutoDeleteDays  int
}

// NewConversationMetadata validates bounds at construction time; once built
// the value is treated as immutable by callers.
func NewConversationMetadata(title, description *string, maxParticipants, autoDeleteDays int) (ConversationMetadata, error) {
	if title != nil && utf8.RuneCountInString(*title) > 100 {
		return ConversationMetadata{}, fmt.Errorf("%w: title exceeds 100 characters", ErrContentInvalid)
	}
	if description != nil && utf8.RuneCountInString(*description) > 500 {
		return ConversationMetadata{}, fmt.Errorf("%w: description exceeds 500 characters", ErrContentInvalid)
	}
	if maxParticipants < 2 || maxParticipants > 8 {
		return ConversationMetadata{}, fmt.Errorf("%w: max participants must be 2..8", ErrParticipantCountInvalid)
	}
	if autoDeleteDays < 1 || autoDeleteDays > 365 {
		return ConversationMetadata{}, fmt.Errorf("%w: auto-delete-days must be 1..365", ErrContentInvalid)
	}
	return ConversationMetadata{
		Title:           title,
		Description:     description,
		MaxParticipants: maxParticipants,
		AutoDeleteDays:  autoDeleteDays,
	}, nil
}

// MinParticipantsForKind and MaxParticipantsForKind bound participant counts
// per conversation kind.
func MinParticipantsForKind(kind ConversationKind) int {
	if kind == ConversationBusiness {
		return 2
	}
	return 2
}

func MaxParticipantsForKind(kind ConversationKind) int {
	switch kind {
	case ConversationDirect:
		return 2
	case ConversationGroup:
		return 8
	default:
		return 8
	}
}

// SystemSenderID is the distinguished synthetic sender for system messages.
// It never corresponds to a real participant row.
const SystemSenderID = "system"
