package handler

import (
	"net/http"

	"github.com/capitalize-ai/support-chat/internal/identity"
	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/pkg/logger"
)

// PartyHandler serves the agent directory.
type PartyHandler struct {
	resolver *identity.Resolver
	logger   *logger.Logger
}

// NewPartyHandler creates a new party handler.
func NewPartyHandler(resolver *identity.Resolver, log *logger.Logger) *PartyHandler {
	return &PartyHandler{resolver: resolver, logger: log}
}

// Agents handles GET /api/v1/agents
func (h *PartyHandler) Agents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.resolver.Agents(r.Context())
	if err != nil {
		fail(h.logger, w, r, "list agents", err)
		return
	}

	writeJSON(w, http.StatusOK, &model.ListAgentsResponse{Agents: agents})
}
