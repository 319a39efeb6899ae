package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatcore/internal/domain"
)

// Store implements domain.Store against a PostgreSQL database.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ domain.Store = (*Store)(nil)

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Users ---

func (s *Store) UpsertUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, created_at, last_seen) VALUES ($1, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET last_seen = NOW()
	`, u.ID)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRowContext(ctx, `SELECT id, created_at, last_seen FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.CreatedAt, &u.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, ids []string) ([]*domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT id, created_at, last_seen FROM users WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u := &domain.User{}
		if err := rows.Scan(&u.ID, &u.CreatedAt, &u.LastSeen); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) ListAllUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at, last_seen FROM users ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("list all users: %w", err)
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u := &domain.User{}
		if err := rows.Scan(&u.ID, &u.CreatedAt, &u.LastSeen); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) TouchLastSeen(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_seen = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}
	return nil
}

// --- Conversations ---

func (s *Store) CreateConversation(ctx context.Context, c *domain.Conversation, participants []domain.Participant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO conversations (id, kind, title, description, max_participants, auto_delete_days, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`, c.ID, string(c.Kind), c.Metadata.Title, c.Metadata.Description, metaOrDefault(c.Metadata.MaxParticipants, 8), metaOrDefault(c.Metadata.AutoDeleteDays, 365)).
		Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}

	for _, p := range participants {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO participants (conversation_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT DO NOTHING
		`, c.ID, p.UserID, string(p.Role)); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func metaOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (s *Store) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	var kind string
	var title, description, lastMessageID sql.NullString
	var maxParticipants, autoDeleteDays int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, title, description, max_participants, auto_delete_days, last_message_id, created_at, updated_at
		FROM conversations WHERE id = $1
	`, id).Scan(&c.ID, &kind, &title, &description, &maxParticipants, &autoDeleteDays, &lastMessageID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	c.Kind = domain.ConversationKind(kind)
	c.Metadata = domain.ConversationMetadata{MaxParticipants: maxParticipants, AutoDeleteDays: autoDeleteDays}
	if title.Valid {
		c.Metadata.Title = &title.String
	}
	if description.Valid {
		c.Metadata.Description = &description.String
	}
	if lastMessageID.Valid {
		c.LastMessageID = &lastMessageID.String
	}
	return c, nil
}

func (s *Store) ListConversationsForUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.kind, c.title, c.description, c.max_participants, c.auto_delete_days, c.last_message_id, c.created_at, c.updated_at
		FROM conversations c
		JOIN participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1 AND p.removed_at IS NULL
		ORDER BY c.updated_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*domain.Conversation
	for rows.Next() {
		c := &domain.Conversation{}
		var kind string
		var title, description, lastMessageID sql.NullString
		var maxParticipants, autoDeleteDays int
		if err := rows.Scan(&c.ID, &kind, &title, &description, &maxParticipants, &autoDeleteDays, &lastMessageID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.Kind = domain.ConversationKind(kind)
		c.Metadata = domain.ConversationMetadata{MaxParticipants: maxParticipants, AutoDeleteDays: autoDeleteDays}
		if title.Valid {
			c.Metadata.Title = &title.String
		}
		if description.Valid {
			c.Metadata.Description = &description.String
		}
		if lastMessageID.Valid {
			c.LastMessageID = &lastMessageID.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) FindDirectConversation(ctx context.Context, userA, userB string) (*domain.Conversation, error) {
	id := ""
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id
		FROM conversations c
		JOIN participants p1 ON p1.conversation_id = c.id AND p1.user_id = $1
		JOIN participants p2 ON p2.conversation_id = c.id AND p2.user_id = $2
		WHERE c.kind = 'direct'
		LIMIT 1
	`, userA, userB).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find direct conversation: %w", err)
	}
	return s.GetConversation(ctx, id)
}

func (s *Store) SetConversationLastMessage(ctx context.Context, conversationID, messageID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET last_message_id = $1, updated_at = NOW() WHERE id = $2
	`, messageID, conversationID)
	if err != nil {
		return fmt.Errorf("set last message: %w", err)
	}
	return nil
}

// --- Participants ---

func (s *Store) ListParticipants(ctx context.Context, conversationID string) ([]domain.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, user_id, role, last_read_message_id, is_muted, joined_at, removed_at
		FROM participants WHERE conversation_id = $1
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetParticipant(ctx context.Context, conversationID, userID string) (*domain.Participant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT conversation_id, user_id, role, last_read_message_id, is_muted, joined_at, removed_at
		FROM participants WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrParticipantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (domain.Participant, error) {
	var p domain.Participant
	var role string
	var lastRead sql.NullString
	var removedAt sql.NullTime
	err := row.Scan(&p.ConversationID, &p.UserID, &role, &lastRead, &p.IsMuted, &p.JoinedAt, &removedAt)
	if err != nil {
		return domain.Participant{}, err
	}
	p.Role = domain.ParticipantRole(role)
	if lastRead.Valid {
		p.LastReadMessageID = &lastRead.String
	}
	if removedAt.Valid {
		p.RemovedAt = &removedAt.Time
	}
	return p, nil
}

func (s *Store) AddParticipant(ctx context.Context, p *domain.Participant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (conversation_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (conversation_id, user_id) DO UPDATE SET role = EXCLUDED.role, removed_at = NULL
	`, p.ConversationID, p.UserID, string(p.Role))
	if err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

func (s *Store) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE participants SET removed_at = NOW() WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	return nil
}

func (s *Store) SetParticipantMuted(ctx context.Context, conversationID, userID string, muted bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE participants SET is_muted = $1 WHERE conversation_id = $2 AND user_id = $3
	`, muted, conversationID, userID)
	if err != nil {
		return fmt.Errorf("set participant muted: %w", err)
	}
	return nil
}

// --- Messages ---

func (s *Store) CreateMessage(ctx context.Context, m *domain.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, kind, content, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING seq, created_at
	`, m.ID, m.ConversationID, m.SenderID, string(m.Kind), m.Content).Scan(&m.Seq, &m.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET last_message_id = $1, updated_at = NOW() WHERE id = $2
	`, m.ID, m.ConversationID); err != nil {
		return fmt.Errorf("update last message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	m, err := scanMessageRow(s.db.QueryRowContext(ctx, `
		SELECT seq, id, conversation_id, sender_id, kind, content, created_at, edited_at, deleted_at
		FROM messages WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func scanMessageRow(row rowScanner) (*domain.Message, error) {
	m := &domain.Message{}
	var kind string
	var editedAt, deletedAt sql.NullTime
	if err := row.Scan(&m.Seq, &m.ID, &m.ConversationID, &m.SenderID, &kind, &m.Content, &m.CreatedAt, &editedAt, &deletedAt); err != nil {
		return nil, err
	}
	m.Kind = domain.MessageKind(kind)
	if editedAt.Valid {
		m.EditedAt = &editedAt.Time
	}
	if deletedAt.Valid {
		m.DeletedAt = &deletedAt.Time
	}
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string, beforeMessageID string, limit int) ([]*domain.Message, error) {
	query := `
		SELECT seq, id, conversation_id, sender_id, kind, content, created_at, edited_at, deleted_at
		FROM messages
		WHERE conversation_id = $1
	`
	args := []any{conversationID}
	if beforeMessageID != "" {
		query += ` AND seq < (SELECT seq FROM messages WHERE id = $2)`
		args = append(args, beforeMessageID)
	}
	query += fmt.Sprintf(` ORDER BY seq DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		m, err := scanMessageRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func (s *Store) EditMessage(ctx context.Context, id string, newContent string, editedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET content = $1, edited_at = $2 WHERE id = $3 AND deleted_at IS NULL
	`, newContent, editedAt, id)
	if err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (s *Store) SoftDeleteMessage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("soft delete message: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrAlreadyDeleted
	}
	return nil
}

func (s *Store) HardDeleteTombstonesOlderThan(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE deleted_at IS NOT NULL AND deleted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("hard delete tombstones: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// --- Read cursors ---

func (s *Store) MarkRead(ctx context.Context, conversationID, userID, messageID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE participants
		SET last_read_message_id = $1
		WHERE conversation_id = $2 AND user_id = $3
		AND (last_read_message_id IS NULL OR
			(SELECT seq FROM messages WHERE id = $1) > (SELECT seq FROM messages WHERE id = last_read_message_id))
	`, messageID, conversationID, userID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (s *Store) UnreadCount(ctx context.Context, conversationID, userID string) (int, error) {
	var lastRead sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT last_read_message_id FROM participants WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID).Scan(&lastRead)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrParticipantNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get read cursor: %w", err)
	}

	query := `SELECT COUNT(*) FROM messages WHERE conversation_id = $1 AND sender_id <> $2 AND deleted_at IS NULL`
	args := []any{conversationID, userID}
	if lastRead.Valid {
		query += ` AND seq > (SELECT seq FROM messages WHERE id = $3)`
		args = append(args, lastRead.String)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}
