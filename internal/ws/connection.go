package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"chatcore/internal/domain"
	"chatcore/internal/rooms"
	"chatcore/internal/service"
)

// connState is the Connection Supervisor's state machine:
// Connecting -> Authenticated -> Active -> Closing -> Closed. The token
// handshake happens during the HTTP upgrade in handler.go, so a Connection
// is constructed already Authenticated and moves to Active once its pumps
// start. Frames are only dispatched while the connection is Active.
type connState int32

const (
	stateConnecting connState = iota
	stateAuthenticated
	stateActive
	stateClosing
	stateClosed
)

const (
	writeWait       = 10 * time.Second
	typingCoalesce  = 1 * time.Second
	maxInboundFrame = 32 * 1024
)

// inboundFrame is the envelope for every client->server message.
type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
	Kind           string `json:"kind,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
}

// Connection supervises one authenticated WebSocket's lifecycle: frame
// dispatch, outbound fan-out via the Room Registry, heartbeat, and typing
// coalescing.
type Connection struct {
	id     string
	userID string
	conn   *websocket.Conn
	state  atomic.Int32

	registry    *rooms.Registry
	conversations *service.ConversationService
	messages    *service.MessageService
	readCursor  *service.ReadCursorService
	heartbeat   time.Duration
	log         *logrus.Entry

	sub         *rooms.Subscriber
	connMetrics ConnectionMetrics

	mu      sync.Mutex
	joined  map[string]struct{}
	typedAt map[string]time.Time
}

// ConnectionMetrics tracks the count of open WebSocket connections,
// independent of the Room Registry's per-room Metrics interface.
type ConnectionMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
}

type noopConnMetrics struct{}

func (noopConnMetrics) ConnectionOpened() {}
func (noopConnMetrics) ConnectionClosed() {}

// Deps bundles the collaborators a Connection needs, so handler.go stays a
// thin upgrade-and-construct entry point.
type Deps struct {
	Registry      *rooms.Registry
	Conversations *service.ConversationService
	Messages      *service.MessageService
	ReadCursor    *service.ReadCursorService
	Heartbeat     time.Duration
	Metrics       ConnectionMetrics
}

func newConnection(conn *websocket.Conn, userID string, deps Deps, log *logrus.Entry) *Connection {
	id := uuid.NewString()
	connMetrics := deps.Metrics
	if connMetrics == nil {
		connMetrics = noopConnMetrics{}
	}
	c := &Connection{
		id:            id,
		userID:        userID,
		conn:          conn,
		registry:      deps.Registry,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		readCursor:    deps.ReadCursor,
		heartbeat:     deps.Heartbeat,
		log:           log.WithField("connection_id", id),
		sub:           rooms.NewSubscriber(id, userID),
		connMetrics:   connMetrics,
		joined:        make(map[string]struct{}),
		typedAt:       make(map[string]time.Time),
	}
	c.state.Store(int32(stateAuthenticated))
	return c
}

// Run drives the connection until it closes: a write pump draining the
// subscriber's outbound queue, and a read loop dispatching inbound frames.
// It blocks until the socket closes or ctx is cancelled.
func (c *Connection) Run(ctx context.Context) {
	c.state.Store(int32(stateActive))
	c.connMetrics.ConnectionOpened()
	c.sendFrame(outboundFrame{Type: "connected", ConnectionID: c.id})

	done := make(chan struct{})
	go c.writePump(done)
	c.readLoop(ctx)

	c.state.Store(int32(stateClosing))
	c.registry.LeaveAll(c.id)
	close(done)
	c.conn.Close()
	c.connMetrics.ConnectionClosed()
	c.state.Store(int32(stateClosed))
}

func (c *Connection) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case frame, ok := <-c.sub.Outbound:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (c *Connection) readLoop(ctx context.Context) {
	c.conn.SetReadDeadline(time.Now().Add(2 * c.heartbeat))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * c.heartbeat))
		return nil
	})
	c.conn.SetReadLimit(maxInboundFrame)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.sendError("malformed frame")
			continue
		}
		c.dispatch(ctx, frame)
	}
}

func (c *Connection) dispatch(ctx context.Context, f inboundFrame) {
	if connState(c.state.Load()) != stateActive {
		return
	}
	switch f.Type {
	case "join_conversation":
		c.handleJoin(ctx, f.ConversationID)
	case "leave_conversation":
		c.handleLeave(f.ConversationID)
	case "send_message":
		c.handleSend(ctx, f)
	case "typing_start":
		c.handleTyping(ctx, f.ConversationID, true)
	case "typing_stop":
		c.handleTyping(ctx, f.ConversationID, false)
	case "mark_read":
		c.handleMarkRead(ctx, f)
	default:
		c.sendError("unknown frame type")
	}
}

func (c *Connection) handleJoin(ctx context.Context, conversationID string) {
	if conversationID == "" {
		c.sendError("join_conversation requires conversation_id")
		return
	}
	if _, err := c.conversations.Get(ctx, conversationID, c.userID); err != nil {
		c.sendErrorFor(err)
		return
	}
	c.mu.Lock()
	c.joined[conversationID] = struct{}{}
	c.mu.Unlock()
	c.registry.Join(conversationID, c.sub)
	c.sendFrame(outboundFrame{Type: "joined_conversation", ConversationID: conversationID})
}

func (c *Connection) handleLeave(conversationID string) {
	c.mu.Lock()
	delete(c.joined, conversationID)
	c.mu.Unlock()
	c.registry.Leave(conversationID, c.id)
}

func (c *Connection) handleSend(ctx context.Context, f inboundFrame) {
	// Send broadcasts the new_message frame to the Room Registry itself,
	// so an HTTP-originated send fans out identically.
	if _, err := c.messages.Send(ctx, service.SendInput{
		ConversationID: f.ConversationID,
		SenderID:       c.userID,
		Content:        f.Content,
		Kind:           f.Kind,
	}); err != nil {
		c.sendErrorFor(err)
	}
}

func (c *Connection) handleTyping(ctx context.Context, conversationID string, typing bool) {
	if conversationID == "" {
		return
	}
	c.mu.Lock()
	last, ok := c.typedAt[conversationID]
	now := time.Now()
	if typing && ok && now.Sub(last) < typingCoalesce {
		c.mu.Unlock()
		return
	}
	c.typedAt[conversationID] = now
	c.mu.Unlock()

	c.registry.Broadcast(conversationID, encodeFrame(outboundFrame{
		Type:           "user_typing",
		ConversationID: conversationID,
		SenderID:       c.userID,
		Typing:         typing,
	}))
}

func (c *Connection) handleMarkRead(ctx context.Context, f inboundFrame) {
	if f.ConversationID == "" || f.MessageID == "" {
		c.sendError("mark_read requires conversation_id and message_id")
		return
	}
	if err := c.readCursor.MarkRead(ctx, f.ConversationID, c.userID, f.MessageID); err != nil {
		c.sendErrorFor(err)
	}
}

func (c *Connection) sendErrorFor(err error) {
	c.log.WithError(err).Debug("connection dispatch error")
	c.sendError(classifyError(err))
}

func classifyError(err error) string {
	switch {
	case err == domain.ErrNotAuthorized, err == domain.ErrAccessDenied:
		return "not authorized"
	case err == domain.ErrConversationNotFound, err == domain.ErrMessageNotFound:
		return "not found"
	default:
		return "request failed"
	}
}

func (c *Connection) sendError(msg string) {
	c.sendFrame(outboundFrame{Type: "error", Error: msg})
}

func (c *Connection) sendFrame(f outboundFrame) {
	select {
	case c.sub.Outbound <- encodeFrame(f):
	default:
	}
}

type outboundFrame struct {
	Type           string    `json:"type"`
	ConnectionID   string    `json:"connection_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	MessageID      string    `json:"message_id,omitempty"`
	SenderID       string    `json:"sender_id,omitempty"`
	Content        string    `json:"content,omitempty"`
	Kind           string    `json:"kind,omitempty"`
	Typing         bool      `json:"typing,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	Error          string    `json:"error,omitempty"`
}

func encodeFrame(f outboundFrame) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		return []byte(`{"type":"error","error":"internal encoding failure"}`)
	}
	return b
}
