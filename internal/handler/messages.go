package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/internal/service"
	"github.com/capitalize-ai/support-chat/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	messageService *service.MessageService
	coordinator    *service.Coordinator
	logger         *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(
	msgSvc *service.MessageService,
	coordinator *service.Coordinator,
	log *logger.Logger,
) *MessageHandler {
	return &MessageHandler{
		messageService: msgSvc,
		coordinator:    coordinator,
		logger:         log,
	}
}

// List handles GET /api/v1/conversations/{id}/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	messages, err := h.messageService.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(h.logger, w, r, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, &model.ListMessagesResponse{Messages: messages})
}

// Send handles POST /api/v1/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.coordinator.Send(r.Context(), service.TransportHTTP, &req)
	if err != nil {
		fail(h.logger, w, r, "send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, &model.SendMessageResponse{
		Message:      result.Message,
		SummaryStale: result.SummaryStale,
	})
}

// MarkRead handles PUT /api/v1/messages/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req model.MarkReadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	n, err := h.messageService.MarkRead(r.Context(), req.ConversationID, req.ReaderRole)
	if err != nil {
		fail(h.logger, w, r, "mark messages read", err)
		return
	}

	writeJSON(w, http.StatusOK, &model.MarkReadResponse{ModifiedCount: n})
}
