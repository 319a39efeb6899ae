package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatcore/internal/domain"
	"chatcore/internal/service"
)

type messageResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Kind           string `json:"kind"`
	Content        string `json:"content"`
	IsDeleted      bool   `json:"is_deleted"`
	IsEdited       bool   `json:"is_edited"`
	CreatedAt      string `json:"created_at"`
}

func toMessageResponse(m *domain.Message) messageResponse {
	resp := messageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Kind:           string(m.Kind),
		Content:        m.Content,
		IsDeleted:      m.IsDeleted(),
		IsEdited:       m.IsEdited(),
		CreatedAt:      m.CreatedAt.Format(timeLayout),
	}
	if resp.IsDeleted {
		resp.Content = ""
	}
	return resp
}

type messageListResponse struct {
	Messages []messageResponse `json:"messages"`
	HasMore  bool              `json:"has_more"`
}

type messageCreateRequest struct {
	Content string `json:"content"`
	Kind    string `json:"message_type"`
}

func handleCreateMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID := CurrentUserID(r)
		conversationID := chi.URLParam(r, "conversationID")
		var req messageCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if req.Kind == "" {
			req.Kind = string(domain.MessageText)
		}
		msg, err := msgSvc.Send(r.Context(), service.SendInput{
			ConversationID: conversationID,
			SenderID:       callerID,
			Content:        req.Content,
			Kind:           req.Kind,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toMessageResponse(msg))
	}
}

const defaultMessageListLimit = 50
const maxMessageListLimit = 200

func handleListMessages(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID := CurrentUserID(r)
		conversationID := chi.URLParam(r, "conversationID")
		limit := parseLimit(r, defaultMessageListLimit, maxMessageListLimit)
		beforeMessageID := r.URL.Query().Get("before_message_id")

		msgs, err := msgSvc.List(r.Context(), conversationID, callerID, beforeMessageID, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]messageResponse, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, toMessageResponse(m))
		}
		writeJSON(w, http.StatusOK, messageListResponse{
			Messages: out,
			HasMore:  len(msgs) == limit,
		})
	}
}

type messageEditRequest struct {
	Content string `json:"content"`
}

func handleEditMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID := CurrentUserID(r)
		messageID := chi.URLParam(r, "messageID")
		var req messageEditRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		msg, err := msgSvc.Edit(r.Context(), callerID, messageID, req.Content)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toMessageResponse(msg))
	}
}

func handleDeleteMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID := CurrentUserID(r)
		messageID := chi.URLParam(r, "messageID")
		if err := msgSvc.Delete(r.Context(), callerID, messageID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
