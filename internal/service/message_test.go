package service_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcore/internal/domain"
	"chatcore/internal/events"
	"chatcore/internal/rooms"
	"chatcore/internal/security"
	"chatcore/internal/service"
)

func newTestMessageService(t *testing.T, store domain.Store) *service.MessageService {
	t.Helper()
	return newTestMessageServiceWithRegistry(t, store, nil)
}

func newTestMessageServiceWithRegistry(t *testing.T, store domain.Store, registry *rooms.Registry) *service.MessageService {
	t.Helper()
	encryptor, err := security.NewEncryptor([]byte("test-encryption-key"))
	require.NoError(t, err)
	log := logrus.New()
	log.SetOutput(io.Discard)
	return service.NewMessageService(store, encryptor, events.NoopPublisher{}, registry, logrus.NewEntry(log))
}

func seedDirectConversation(t *testing.T, ctx context.Context, store domain.Store, userA, userB string) *domain.ConversationSummary {
	t.Helper()
	seedUsers(t, store, userA, userB)
	summary, err := service.NewConversationService(store).CreateDirect(ctx, service.CreateDirectInput{CreatorID: userA, OtherID: userB})
	require.NoError(t, err)
	return summary
}

func TestMessageService_Send(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	conv := seedDirectConversation(t, ctx, store, "alice", "bob")
	svc := newTestMessageService(t, store)

	t.Run("persists and decrypts round trip", func(t *testing.T) {
		msg, err := svc.Send(ctx, service.SendInput{ConversationID: conv.ID, SenderID: "alice", Content: "hello bob"})
		require.NoError(t, err)
		assert.Equal(t, "hello bob", msg.Content)
		assert.Equal(t, domain.MessageText, msg.Kind)
	})

	t.Run("rejects a non-participant sender", func(t *testing.T) {
		seedUsers(t, store, "mallory")
		_, err := svc.Send(ctx, service.SendInput{ConversationID: conv.ID, SenderID: "mallory", Content: "hi"})
		assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
	})

	t.Run("rejects empty content", func(t *testing.T) {
		_, err := svc.Send(ctx, service.SendInput{ConversationID: conv.ID, SenderID: "alice", Content: "   "})
		assert.ErrorIs(t, err, domain.ErrContentInvalid)
	})

	t.Run("rejects client-sent system kind", func(t *testing.T) {
		_, err := svc.Send(ctx, service.SendInput{ConversationID: conv.ID, SenderID: "alice", Content: "hi", Kind: "system"})
		assert.ErrorIs(t, err, domain.ErrKindInvalid)
	})
}

func TestMessageService_Edit(t *testing.T) {
	ctx := context.Background()
	store, db := newTestStoreWithDB(t)
	conv := seedDirectConversation(t, ctx, store, "alice", "bob")
	svc := newTestMessageService(t, store)

	msg, err := svc.Send(ctx, service.SendInput{ConversationID: conv.ID, SenderID: "alice", Content: "original"})
	require.NoError(t, err)

	t.Run("sender can edit within the window", func(t *testing.T) {
		edited, err := svc.Edit(ctx, "alice", msg.ID, "corrected")
		require.NoError(t, err)
		assert.Equal(t, "corrected", edited.Content)
		assert.NotNil(t, edited.EditedAt)
	})

	t.Run("a different user cannot edit", func(t *testing.T) {
		_, err := svc.Edit(ctx, "bob", msg.ID, "hijack")
		assert.ErrorIs(t, err, domain.ErrNotAuthorized)
	})

	t.Run("expired edit window is rejected", func(t *testing.T) {
		_, err := db.ExecContext(ctx, `UPDATE messages SET created_at = ? WHERE id = ?`, time.Now().Add(-25*time.Hour), msg.ID)
		require.NoError(t, err)
		_, err = svc.Edit(ctx, "alice", msg.ID, "too late")
		assert.ErrorIs(t, err, domain.ErrEditWindowExpired)
	})
}

func TestMessageService_Delete(t *testing.T) {
	ctx := context.Background()
	store, db := newTestStoreWithDB(t)
	conv := seedDirectConversation(t, ctx, store, "alice", "bob")
	svc := newTestMessageService(t, store)

	msg, err := svc.Send(ctx, service.SendInput{ConversationID: conv.ID, SenderID: "alice", Content: "oops"})
	require.NoError(t, err)

	t.Run("cannot delete twice", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, "alice", msg.ID))
		err := svc.Delete(ctx, "alice", msg.ID)
		assert.ErrorIs(t, err, domain.ErrAlreadyDeleted)
	})

	t.Run("expired delete window is rejected", func(t *testing.T) {
		second, err := svc.Send(ctx, service.SendInput{ConversationID: conv.ID, SenderID: "alice", Content: "old message"})
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, `UPDATE messages SET created_at = ? WHERE id = ?`, time.Now().Add(-91*24*time.Hour), second.ID)
		require.NoError(t, err)
		err = svc.Delete(ctx, "alice", second.ID)
		assert.ErrorIs(t, err, domain.ErrDeleteWindowExpired)
	})
}

func TestMessageService_BroadcastsToRoomRegistry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	conv := seedDirectConversation(t, ctx, store, "alice", "bob")
	registry := rooms.NewRegistry(events.NewLocalBroadcaster(), nil)
	svc := newTestMessageServiceWithRegistry(t, store, registry)

	sub := rooms.NewSubscriber("bob-conn", "bob")
	registry.Join(conv.ID, sub)

	t.Run("send fans out a new_message frame", func(t *testing.T) {
		msg, err := svc.Send(ctx, service.SendInput{ConversationID: conv.ID, SenderID: "alice", Content: "hi bob"})
		require.NoError(t, err)

		select {
		case frame := <-sub.Outbound:
			var decoded map[string]any
			require.NoError(t, json.Unmarshal(frame, &decoded))
			assert.Equal(t, "new_message", decoded["type"])
			assert.Equal(t, msg.ID, decoded["message_id"])
			assert.Equal(t, "hi bob", decoded["content"])
		case <-time.After(time.Second):
			t.Fatal("expected a new_message frame")
		}
	})

	t.Run("edit fans out a message_edited frame", func(t *testing.T) {
		msg, err := svc.Send(ctx, service.SendInput{ConversationID: conv.ID, SenderID: "alice", Content: "original"})
		require.NoError(t, err)
		<-sub.Outbound // drain the new_message frame

		_, err = svc.Edit(ctx, "alice", msg.ID, "corrected")
		require.NoError(t, err)

		select {
		case frame := <-sub.Outbound:
			var decoded map[string]any
			require.NoError(t, json.Unmarshal(frame, &decoded))
			assert.Equal(t, "message_edited", decoded["type"])
			assert.Equal(t, "corrected", decoded["content"])
		case <-time.After(time.Second):
			t.Fatal("expected a message_edited frame")
		}
	})

	t.Run("delete fans out a message_deleted frame without content", func(t *testing.T) {
		msg, err := svc.Send(ctx, service.SendInput{ConversationID: conv.ID, SenderID: "alice", Content: "oops"})
		require.NoError(t, err)
		<-sub.Outbound // drain the new_message frame

		require.NoError(t, svc.Delete(ctx, "alice", msg.ID))

		select {
		case frame := <-sub.Outbound:
			var decoded map[string]any
			require.NoError(t, json.Unmarshal(frame, &decoded))
			assert.Equal(t, "message_deleted", decoded["type"])
			assert.Equal(t, msg.ID, decoded["message_id"])
			assert.NotContains(t, decoded, "content")
		case <-time.After(time.Second):
			t.Fatal("expected a message_deleted frame")
		}
	})
}

func TestMessageService_List(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	conv := seedDirectConversation(t, ctx, store, "alice", "bob")
	svc := newTestMessageService(t, store)

	for i := 0; i < 3; i++ {
		_, err := svc.Send(ctx, service.SendInput{ConversationID: conv.ID, SenderID: "alice", Content: "message"})
		require.NoError(t, err)
	}

	msgs, err := svc.List(ctx, conv.ID, "bob", "", 50)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.Less(t, msgs[i-1].Seq, msgs[i].Seq, "messages must be returned in ascending commit order")
	}
}
