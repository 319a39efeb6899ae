package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"chatcore/internal/domain"
	"chatcore/internal/store/postgres"
)

// startPostgres brings up a disposable Postgres container, applies the
// embedded golang-migrate migrations, and returns a connected Store. Skipped
// in -short mode; otherwise it needs a working Docker daemon.
func startPostgres(t *testing.T) domain.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping testcontainers-backed postgres test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("chatcore"),
		tcpostgres.WithUsername("chatcore"),
		tcpostgres.WithPassword("chatcore"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var db *sql.DB
	require.Eventually(t, func() bool {
		db, err = postgres.Open(dsn)
		return err == nil
	}, 30*time.Second, time.Second)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, postgres.Migrate(db))
	return postgres.NewStore(db)
}

func TestPostgresStore_CreateConversationAndSendMessage(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertUser(ctx, &domain.User{ID: "alice"}))
	require.NoError(t, store.UpsertUser(ctx, &domain.User{ID: "bob"}))

	conv := &domain.Conversation{ID: "conv-1", Kind: domain.ConversationDirect}
	require.NoError(t, store.CreateConversation(ctx, conv, []domain.Participant{
		{ConversationID: conv.ID, UserID: "alice", Role: domain.RoleMember},
		{ConversationID: conv.ID, UserID: "bob", Role: domain.RoleMember},
	}))

	msg := &domain.Message{ID: "msg-1", ConversationID: conv.ID, SenderID: "alice", Kind: domain.MessageText, Content: "hello"}
	require.NoError(t, store.CreateMessage(ctx, msg))
	require.Greater(t, msg.Seq, int64(0))

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessageID)
	require.Equal(t, msg.ID, *got.LastMessageID)
}

func TestPostgresStore_UnreadCountAndMarkRead(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertUser(ctx, &domain.User{ID: "alice"}))
	require.NoError(t, store.UpsertUser(ctx, &domain.User{ID: "bob"}))

	conv := &domain.Conversation{ID: "conv-1", Kind: domain.ConversationDirect}
	require.NoError(t, store.CreateConversation(ctx, conv, []domain.Participant{
		{ConversationID: conv.ID, UserID: "alice", Role: domain.RoleMember},
		{ConversationID: conv.ID, UserID: "bob", Role: domain.RoleMember},
	}))

	msg := &domain.Message{ID: "msg-1", ConversationID: conv.ID, SenderID: "alice", Kind: domain.MessageText, Content: "hi"}
	require.NoError(t, store.CreateMessage(ctx, msg))

	n, err := store.UnreadCount(ctx, conv.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, store.MarkRead(ctx, conv.ID, "bob", msg.ID))
	n, err = store.UnreadCount(ctx, conv.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

