package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chatcore/internal/domain"
	"chatcore/internal/service"
)

type conversationResponse struct {
	ID           string                `json:"id"`
	Kind         string                `json:"kind"`
	Title        string                `json:"title,omitempty"`
	Participants []participantResponse `json:"participants"`
	LastMessage  *messageResponse      `json:"last_message,omitempty"`
	UnreadCount  int                   `json:"unread_count"`
	IsMuted      bool                  `json:"is_muted"`
	CreatedAt    string                `json:"created_at"`
	UpdatedAt    string                `json:"updated_at"`
}

type participantResponse struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	IsMuted  bool   `json:"is_muted"`
	JoinedAt string `json:"joined_at"`
}

func toConversationResponse(summary *domain.ConversationSummary, callerID string, unread int) conversationResponse {
	resp := conversationResponse{
		ID:          summary.ID,
		Kind:        string(summary.Kind),
		UnreadCount: unread,
		CreatedAt:   summary.CreatedAt.Format(timeLayout),
		UpdatedAt:   summary.UpdatedAt.Format(timeLayout),
	}
	if summary.Metadata.Title != nil {
		resp.Title = *summary.Metadata.Title
	}
	for _, p := range summary.Participants {
		resp.Participants = append(resp.Participants, participantResponse{
			UserID:   p.UserID,
			Role:     string(p.Role),
			IsMuted:  p.IsMuted,
			JoinedAt: p.JoinedAt.Format(timeLayout),
		})
		if p.UserID == callerID {
			resp.IsMuted = p.IsMuted
		}
	}
	if summary.LastMessage != nil {
		mr := toMessageResponse(summary.LastMessage)
		resp.LastMessage = &mr
	}
	return resp
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

type createDirectRequest struct {
	TargetUserID string `json:"target_user_id"`
}

type createGroupRequest struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

type createBusinessRequest struct {
	CustomerID  string   `json:"customer_id"`
	AgentIDs    []string `json:"agent_ids"`
	BusinessIDs []string `json:"business_ids"`
}

func handleCreateDirect(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID := CurrentUserID(r)
		var req createDirectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		summary, err := convSvc.CreateDirect(r.Context(), service.CreateDirectInput{
			CreatorID: callerID,
			OtherID:   req.TargetUserID,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"conversation_id": summary.ID})
	}
}

func handleCreateGroup(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID := CurrentUserID(r)
		var req createGroupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		var title *string
		if req.Name != "" {
			title = &req.Name
		}
		meta, err := domain.NewConversationMetadata(title, nil, 8, 365)
		if err != nil {
			writeError(w, err)
			return
		}
		summary, err := convSvc.CreateGroup(r.Context(), service.CreateGroupInput{
			CreatorID: callerID,
			MemberIDs: req.Participants,
			Metadata:  meta,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"conversation_id": summary.ID})
	}
}

func handleCreateBusiness(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID := CurrentUserID(r)
		var req createBusinessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		summary, err := convSvc.CreateBusiness(r.Context(), service.CreateBusinessInput{
			CustomerID:  callerID,
			AgentIDs:    req.AgentIDs,
			BusinessIDs: req.BusinessIDs,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"conversation_id": summary.ID})
	}
}

const defaultConversationListLimit = 50
const maxConversationListLimit = 200

func handleListConversations(convSvc *service.ConversationService, readCursor *service.ReadCursorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID := CurrentUserID(r)
		limit := parseLimit(r, defaultConversationListLimit, maxConversationListLimit)
		offset := parseOffset(r)
		summaries, err := convSvc.ListForUser(r.Context(), callerID, limit, offset)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]conversationResponse, 0, len(summaries))
		for _, s := range summaries {
			unread, _ := readCursor.UnreadFor(r.Context(), s.ID, callerID)
			out = append(out, toConversationResponse(s, callerID, unread))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleGetConversation(convSvc *service.ConversationService, readCursor *service.ReadCursorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID := CurrentUserID(r)
		conversationID := chi.URLParam(r, "conversationID")
		summary, err := convSvc.Get(r.Context(), conversationID, callerID)
		if err != nil {
			writeError(w, err)
			return
		}
		unread, _ := readCursor.UnreadFor(r.Context(), conversationID, callerID)
		writeJSON(w, http.StatusOK, toConversationResponse(summary, callerID, unread))
	}
}

type markReadRequest struct {
	MessageID string `json:"message_id"`
}

func handleMarkConversationRead(readCursor *service.ReadCursorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID := CurrentUserID(r)
		conversationID := chi.URLParam(r, "conversationID")
		var req markReadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if err := readCursor.MarkRead(r.Context(), conversationID, callerID, req.MessageID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func parseLimit(r *http.Request, def, max int) int {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 || v > max {
		return def
	}
	return v
}

func parseOffset(r *http.Request) int {
	s := r.URL.Query().Get("offset")
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
