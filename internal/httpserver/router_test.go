package httpserver_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"chatcore/internal/domain"
	"chatcore/internal/events"
	"chatcore/internal/httpserver"
	"chatcore/internal/metrics"
	"chatcore/internal/profiledirectory"
	"chatcore/internal/rooms"
	"chatcore/internal/security"
	"chatcore/internal/service"
	"chatcore/internal/store/sqlite"
	"chatcore/internal/ws"
)

// NewCollector registers against the global Prometheus registry, so every
// fixture in this file shares one Collector to avoid a duplicate
// registration panic across test functions.
var routerCollector = metrics.NewCollector()

type routerFixture struct {
	server *httptest.Server
	tokens map[string]string
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	store := sqlite.NewStore(db)

	log := logrus.New()
	log.SetOutput(io.Discard)
	entry := logrus.NewEntry(log)

	encryptor, err := security.NewEncryptor([]byte("router-test-key-01234567890123456"))
	require.NoError(t, err)

	registry := rooms.NewRegistry(events.NewLocalBroadcaster(), nil)

	conversations := service.NewConversationService(store)
	messages := service.NewMessageService(store, encryptor, events.NoopPublisher{}, registry, entry)
	conversations.SetMessageService(messages)
	readCursor := service.NewReadCursorService(store)
	profiles := profiledirectory.NewClient("", entry)
	users := service.NewUserDirectoryService(store, profiles)
	verifier := security.NewTokenVerifier("router-test-secret")

	deps := httpserver.Deps{
		Store:         store,
		Verifier:      verifier,
		Conversations: conversations,
		Messages:      messages,
		ReadCursor:    readCursor,
		Users:         users,
		Profiles:      profiles,
		Metrics:       routerCollector,
		WSDeps: ws.Deps{
			Registry:      registry,
			Conversations: conversations,
			Messages:      messages,
			ReadCursor:    readCursor,
		},
		CORSOrigins: []string{"http://localhost:3000"},
		WSOrigins:   []string{"http://localhost:3000"},
		Log:         log,
	}

	router := httpserver.NewRouter(deps)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	ctx := t.Context()
	require.NoError(t, store.UpsertUser(ctx, &domain.User{ID: "alice"}))
	require.NoError(t, store.UpsertUser(ctx, &domain.User{ID: "bob"}))

	tokens := map[string]string{
		"alice": signRouterToken(t, "alice"),
		"bob":   signRouterToken(t, "bob"),
		"carol": signRouterToken(t, "carol"),
	}
	return &routerFixture{server: server, tokens: tokens}
}

func signRouterToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("router-test-secret"))
	require.NoError(t, err)
	return signed
}

func (f *routerFixture) do(t *testing.T, method, path, asUser string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if asUser != "" {
		req.Header.Set("Authorization", "Bearer "+f.tokens[asUser])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestRouter_HealthEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	decodeBody(t, resp, &body)
	require.Equal(t, "healthy", body["status"])

	resp = f.do(t, http.MethodGet, "/api/health/detailed", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detailed map[string]any
	decodeBody(t, resp, &detailed)
	deps, ok := detailed["dependencies"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, deps, "store")
	require.Contains(t, deps, "profile_directory")
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	resp := f.do(t, http.MethodGet, "/api/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_RequiresAuthOnConversations(t *testing.T) {
	f := newRouterFixture(t)
	resp := f.do(t, http.MethodGet, "/api/conversations/", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_CreateDirectConversationAndSendMessage(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.do(t, http.MethodPost, "/api/conversations/direct", "alice", map[string]string{
		"target_user_id": "bob",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]string
	decodeBody(t, resp, &created)
	conversationID := created["conversation_id"]
	require.NotEmpty(t, conversationID)

	resp = f.do(t, http.MethodPost, "/api/conversations/"+conversationID+"/messages", "alice", map[string]string{
		"content": "hello bob",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var msg map[string]any
	decodeBody(t, resp, &msg)
	require.Equal(t, "hello bob", msg["content"])

	resp = f.do(t, http.MethodGet, "/api/conversations/"+conversationID+"/messages", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list map[string]any
	decodeBody(t, resp, &list)
	msgs, ok := list["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
}

func TestRouter_CreateGroupConversationRejectsTooFewMembers(t *testing.T) {
	f := newRouterFixture(t)
	resp := f.do(t, http.MethodPost, "/api/conversations/group", "alice", map[string]any{
		"name":         "solo",
		"participants": []string{},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_EditAndDeleteMessage(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.do(t, http.MethodPost, "/api/conversations/direct", "alice", map[string]string{
		"target_user_id": "bob",
	})
	var created map[string]string
	decodeBody(t, resp, &created)
	conversationID := created["conversation_id"]

	resp = f.do(t, http.MethodPost, "/api/conversations/"+conversationID+"/messages", "alice", map[string]string{
		"content": "first draft",
	})
	var msg map[string]any
	decodeBody(t, resp, &msg)
	messageID := msg["id"].(string)

	resp = f.do(t, http.MethodPut, "/api/messages/"+messageID, "alice", map[string]string{
		"content": "edited content",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var edited map[string]any
	decodeBody(t, resp, &edited)
	require.Equal(t, "edited content", edited["content"])
	require.Equal(t, true, edited["is_edited"])

	resp = f.do(t, http.MethodDelete, "/api/messages/"+messageID, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/api/messages/"+messageID, "alice", map[string]string{
		"content": "too late",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_MarkConversationReadAndListUsers(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.do(t, http.MethodPost, "/api/conversations/direct", "alice", map[string]string{
		"target_user_id": "bob",
	})
	var created map[string]string
	decodeBody(t, resp, &created)
	conversationID := created["conversation_id"]

	resp = f.do(t, http.MethodPost, "/api/conversations/"+conversationID+"/messages", "alice", map[string]string{
		"content": "ping",
	})
	var msg map[string]any
	decodeBody(t, resp, &msg)
	messageID := msg["id"].(string)

	resp = f.do(t, http.MethodGet, "/api/conversations/"+conversationID, "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var conv map[string]any
	decodeBody(t, resp, &conv)
	require.EqualValues(t, 1, conv["unread_count"])

	resp = f.do(t, http.MethodPost, "/api/conversations/"+conversationID+"/read", "bob", map[string]string{
		"message_id": messageID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/conversations/"+conversationID, "bob", nil)
	decodeBody(t, resp, &conv)
	require.EqualValues(t, 0, conv["unread_count"])

	resp = f.do(t, http.MethodGet, "/api/users?ids=alice,bob", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []map[string]any
	decodeBody(t, resp, &users)
	require.Len(t, users, 2)
}

func TestRouter_ListConversationsHonorsLimitAndOffset(t *testing.T) {
	f := newRouterFixture(t)

	for i := 0; i < 3; i++ {
		resp := f.do(t, http.MethodPost, "/api/conversations/group", "alice", map[string]any{
			"name":         "group",
			"participants": []string{"bob"},
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := f.do(t, http.MethodGet, "/api/conversations/?limit=2", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page []map[string]any
	decodeBody(t, resp, &page)
	require.Len(t, page, 2)

	resp = f.do(t, http.MethodGet, "/api/conversations/?limit=2&offset=2", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rest []map[string]any
	decodeBody(t, resp, &rest)
	require.Len(t, rest, 1)
}

func TestRouter_AccessingOthersConversationIsNotFound(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.do(t, http.MethodPost, "/api/conversations/direct", "alice", map[string]string{
		"target_user_id": "bob",
	})
	var created map[string]string
	decodeBody(t, resp, &created)
	conversationID := created["conversation_id"]

	resp = f.do(t, http.MethodGet, "/api/conversations/"+conversationID, "carol", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode, "carol has no participant row in this conversation")
}
