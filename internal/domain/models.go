package domain

import "time"

// User is an identity resolved via the Token Verifier. Display metadata
// (name, avatar) is never stored here — it is fetched on demand from the
// Profile Directory Client and decorates responses at the edges, never
// the persisted domain model.
type User struct {
	ID        string    `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	LastSeen  time.Time `db:"last_seen" json:"last_seen"`
}

// Conversation is one of direct, group, or business.
type Conversation struct {
	ID            string               `db:"id" json:"id"`
	Kind          ConversationKind     `db:"kind" json:"kind"`
	Metadata      ConversationMetadata `db:"-" json:"metadata,omitempty"`
	LastMessageID *string              `db:"last_message_id" json:"last_message_id,omitempty"`
	CreatedAt     time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time            `db:"updated_at" json:"updated_at"`
}

// Participant is a user's membership in a conversation, scoped by role and
// carrying the read cursor used by the Read-Cursor Service.
type Participant struct {
	ConversationID     string     `db:"conversation_id" json:"conversation_id"`
	UserID             string     `db:"user_id" json:"user_id"`
	Role               ParticipantRole `db:"role" json:"role"`
	LastReadMessageID  *string    `db:"last_read_message_id" json:"last_read_message_id,omitempty"`
	IsMuted            bool       `db:"is_muted" json:"is_muted"`
	JoinedAt           time.Time  `db:"joined_at" json:"joined_at"`
	RemovedAt          *time.Time `db:"removed_at" json:"removed_at,omitempty"`
}

// Active reports whether the participant currently belongs to the
// conversation (has not been removed).
func (p Participant) Active() bool {
	return p.RemovedAt == nil
}

// Message is a single append-only, soft-deletable unit of conversation
// content. Seq is the internal monotonic
// ordering key; it is never serialized to clients — ID is the opaque
// public identifier.
type Message struct {
	ID             string      `db:"id" json:"id"`
	Seq            int64       `db:"seq" json:"-"`
	ConversationID string      `db:"conversation_id" json:"conversation_id"`
	SenderID       string      `db:"sender_id" json:"sender_id"`
	Kind           MessageKind `db:"kind" json:"kind"`
	Content        string      `db:"content" json:"content"` // encrypted at rest, decrypted before serialization
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	EditedAt       *time.Time  `db:"edited_at" json:"edited_at,omitempty"`
	DeletedAt      *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the message has been soft-deleted.
func (m Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

// IsEdited reports whether the message has been edited at least once.
func (m Message) IsEdited() bool {
	return m.EditedAt != nil
}

// ConversationSummary is the rich DTO returned by conversation list/detail
// endpoints, decorating the stored Conversation with participant and
// unread-count data that never lives on the row itself.
type ConversationSummary struct {
	Conversation
	Participants []Participant `json:"participants"`
	LastMessage  *Message      `json:"last_message,omitempty"`
	UnreadCount  int           `json:"unread_count"`
}
