package service_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcore/internal/domain"
	"chatcore/internal/service"
)

func TestRetentionSweeper_HardDeletesOldTombstones(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, db := newTestStoreWithDB(t)
	conv := seedDirectConversation(t, ctx, store, "alice", "bob")
	messages := newTestMessageService(t, store)

	stale, err := messages.Send(ctx, service.SendInput{ConversationID: conv.ID, SenderID: "alice", Content: "stale"})
	require.NoError(t, err)
	fresh, err := messages.Send(ctx, service.SendInput{ConversationID: conv.ID, SenderID: "alice", Content: "fresh"})
	require.NoError(t, err)

	require.NoError(t, messages.Delete(ctx, "alice", stale.ID))
	require.NoError(t, messages.Delete(ctx, "alice", fresh.ID))

	_, err = db.ExecContext(ctx, `UPDATE messages SET deleted_at = ? WHERE id = ?`, time.Now().Add(-8*24*time.Hour), stale.ID)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `UPDATE messages SET deleted_at = ? WHERE id = ?`, time.Now().Add(-1*time.Hour), fresh.ID)
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	sweeper := service.NewRetentionSweeper(store, 10*time.Millisecond, logrus.NewEntry(log))

	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, err := store.GetMessage(ctx, stale.ID)
		return err == domain.ErrMessageNotFound
	}, time.Second, 10*time.Millisecond, "stale tombstone should be hard-deleted")

	_, err = store.GetMessage(ctx, fresh.ID)
	assert.NoError(t, err, "fresh tombstone must survive the sweep")

	cancel()
	<-done
}
