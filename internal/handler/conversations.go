// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/internal/service"
	"github.com/capitalize-ai/support-chat/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/conversations. It is find-or-create, so an
// existing conversation is returned with 200 as well.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CreateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	conv, created, err := h.service.FindOrCreate(ctx, req.UserID, req.AgentID)
	if err != nil {
		fail(h.logger, w, r, "find or create conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, &model.ConversationResponse{Conversation: conv, Created: created})
}

// List handles GET /api/v1/conversations?userId= or ?agentId=
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	status := model.ConversationStatus(q.Get("status"))

	var (
		convs []model.Conversation
		err   error
	)
	switch {
	case q.Get("userId") != "" && q.Get("agentId") != "":
		err = model.Validationf("specify either userId or agentId, not both")
	case q.Get("userId") != "":
		convs, err = h.service.ListByUser(ctx, q.Get("userId"), status)
	case q.Get("agentId") != "":
		convs, err = h.service.ListByAgent(ctx, q.Get("agentId"), status)
	default:
		err = model.Validationf("userId or agentId is required")
	}
	if err != nil {
		fail(h.logger, w, r, "list conversations", err)
		return
	}

	writeJSON(w, http.StatusOK, &model.ListConversationsResponse{
		Conversations: convs,
		Total:         len(convs),
	})
}

// Get handles GET /api/v1/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(h.logger, w, r, "get conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// UpdateStatus handles PUT /api/v1/conversations/{id}/status
func (h *ConversationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	conv, err := h.service.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		fail(h.logger, w, r, "update conversation status", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}
