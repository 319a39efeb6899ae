package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcore/internal/domain"
	"chatcore/internal/service"
)

func seedUsers(t *testing.T, store domain.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, store.UpsertUser(context.Background(), &domain.User{ID: id}))
	}
}

func TestConversationService_CreateDirect(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedUsers(t, store, "alice", "bob")
	svc := service.NewConversationService(store)

	t.Run("creates a new direct conversation", func(t *testing.T) {
		summary, err := svc.CreateDirect(ctx, service.CreateDirectInput{CreatorID: "alice", OtherID: "bob"})
		require.NoError(t, err)
		assert.Equal(t, domain.ConversationDirect, summary.Kind)
		assert.Len(t, summary.Participants, 2)
	})

	t.Run("is idempotent for the same pair", func(t *testing.T) {
		first, err := svc.CreateDirect(ctx, service.CreateDirectInput{CreatorID: "alice", OtherID: "bob"})
		require.NoError(t, err)
		second, err := svc.CreateDirect(ctx, service.CreateDirectInput{CreatorID: "bob", OtherID: "alice"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("rejects conversation with self", func(t *testing.T) {
		_, err := svc.CreateDirect(ctx, service.CreateDirectInput{CreatorID: "alice", OtherID: "alice"})
		assert.ErrorIs(t, err, domain.ErrSelfConversation)
	})
}

func TestConversationService_CreateGroup(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedUsers(t, store, "alice", "bob", "carol", "dave")
	svc := service.NewConversationService(store)

	t.Run("creator becomes admin", func(t *testing.T) {
		summary, err := svc.CreateGroup(ctx, service.CreateGroupInput{
			CreatorID: "alice",
			MemberIDs: []string{"bob", "carol"},
		})
		require.NoError(t, err)
		assert.Len(t, summary.Participants, 3)
		for _, p := range summary.Participants {
			if p.UserID == "alice" {
				assert.Equal(t, domain.RoleAdmin, p.Role)
			} else {
				assert.Equal(t, domain.RoleMember, p.Role)
			}
		}
	})

	t.Run("rejects fewer than two members total", func(t *testing.T) {
		_, err := svc.CreateGroup(ctx, service.CreateGroupInput{CreatorID: "alice", MemberIDs: nil})
		assert.ErrorIs(t, err, domain.ErrParticipantCountInvalid)
	})

	t.Run("rejects more than eight members", func(t *testing.T) {
		_, err := svc.CreateGroup(ctx, service.CreateGroupInput{
			CreatorID: "alice",
			MemberIDs: []string{"bob", "carol", "dave", "e", "f", "g", "h", "i"},
		})
		assert.ErrorIs(t, err, domain.ErrParticipantCountInvalid)
	})

	t.Run("deduplicates repeated member ids", func(t *testing.T) {
		summary, err := svc.CreateGroup(ctx, service.CreateGroupInput{
			CreatorID: "alice",
			MemberIDs: []string{"bob", "bob", "carol"},
		})
		require.NoError(t, err)
		assert.Len(t, summary.Participants, 3)
	})
}

func TestConversationService_CreateGroupEmitsSystemMessage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedUsers(t, store, "alice", "bob")
	svc := service.NewConversationService(store)
	messages := newTestMessageService(t, store)
	svc.SetMessageService(messages)

	summary, err := svc.CreateGroup(ctx, service.CreateGroupInput{CreatorID: "alice", MemberIDs: []string{"bob"}})
	require.NoError(t, err)

	msgs, err := messages.List(ctx, summary.ID, "alice", "", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageSystem, msgs[0].Kind)
	assert.Equal(t, domain.SystemSenderID, msgs[0].SenderID)
}

func TestConversationService_CreateBusiness(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedUsers(t, store, "customer-1", "agent-1")
	svc := service.NewConversationService(store)

	t.Run("requires at least one agent or business participant", func(t *testing.T) {
		_, err := svc.CreateBusiness(ctx, service.CreateBusinessInput{CustomerID: "customer-1"})
		assert.ErrorIs(t, err, domain.ErrParticipantCountInvalid)
	})

	t.Run("creates with customer and agent", func(t *testing.T) {
		summary, err := svc.CreateBusiness(ctx, service.CreateBusinessInput{
			CustomerID: "customer-1",
			AgentIDs:   []string{"agent-1"},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ConversationBusiness, summary.Kind)
		roles := map[string]domain.ParticipantRole{}
		for _, p := range summary.Participants {
			roles[p.UserID] = p.Role
		}
		assert.Equal(t, domain.RoleCustomer, roles["customer-1"])
		assert.Equal(t, domain.RoleAgent, roles["agent-1"])
	})
}

func TestConversationService_AddRemoveParticipant(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedUsers(t, store, "alice", "bob", "carol")
	svc := service.NewConversationService(store)

	summary, err := svc.CreateGroup(ctx, service.CreateGroupInput{CreatorID: "alice", MemberIDs: []string{"bob"}})
	require.NoError(t, err)

	t.Run("admin can add a participant", func(t *testing.T) {
		err := svc.AddParticipant(ctx, summary.ID, "alice", "carol", domain.RoleMember)
		assert.NoError(t, err)
	})

	t.Run("non-admin cannot add a participant", func(t *testing.T) {
		seedUsers(t, store, "dave")
		err := svc.AddParticipant(ctx, summary.ID, "bob", "dave", domain.RoleMember)
		assert.ErrorIs(t, err, domain.ErrNotAuthorized)
	})

	t.Run("a member may remove themselves", func(t *testing.T) {
		err := svc.RemoveParticipant(ctx, summary.ID, "bob", "bob")
		assert.NoError(t, err)
	})

	t.Run("direct conversations reject new participants", func(t *testing.T) {
		direct, err := svc.CreateDirect(ctx, service.CreateDirectInput{CreatorID: "alice", OtherID: "bob"})
		require.NoError(t, err)
		err = svc.AddParticipant(ctx, direct.ID, "alice", "carol", domain.RoleMember)
		assert.ErrorIs(t, err, domain.ErrParticipantCountInvalid)
	})
}
