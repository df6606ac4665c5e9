package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-chat/internal/model"
	"github.com/capitalize-ai/support-chat/internal/realtime"
	"github.com/capitalize-ai/support-chat/internal/service"
	"github.com/capitalize-ai/support-chat/pkg/logger"
	"github.com/capitalize-ai/support-chat/pkg/metrics"
)

const transportSSE = "sse"

// StreamHandler serves room events over server-sent events. It is a
// receive-only member of the room; clients send through POST /messages.
type StreamHandler struct {
	conversationService *service.ConversationService
	hub                 *realtime.Hub
	heartbeat           time.Duration
	sendBuffer          int
	logger              *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(
	convSvc *service.ConversationService,
	hub *realtime.Hub,
	heartbeat time.Duration,
	sendBuffer int,
	log *logger.Logger,
) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &StreamHandler{
		conversationService: convSvc,
		hub:                 hub,
		heartbeat:           heartbeat,
		sendBuffer:          sendBuffer,
		logger:              log,
	}
}

// Stream handles GET /api/v1/conversations/{id}/events
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if _, err := h.conversationService.Get(ctx, conversationID); err != nil {
		fail(h.logger, w, r, "open event stream", err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, model.Internal("streaming not supported", nil))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	conn := realtime.NewConn(h.sendBuffer)
	h.hub.Join(conn, conversationID)
	metrics.ConnectionOpened(transportSSE)
	defer func() {
		h.hub.Disconnect(conn.ID())
		conn.Close()
		metrics.ConnectionClosed(transportSSE)
	}()

	log := h.logger.WithConversation(conversationID).WithConnection(conn.ID())

	sendSSEEvent(w, flusher, model.EventConnected, map[string]string{
		"conversationId": conversationID,
		"connectionId":   conn.ID(),
	})

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("SSE client disconnected")
			return

		case ev := <-conn.Events():
			if err := sendSSEEvent(w, flusher, ev.Type, ev.Data); err != nil {
				log.Warn("failed to write SSE event", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			if err := sendSSEEvent(w, flusher, model.EventHeartbeat, &model.HeartbeatEvent{
				Timestamp: time.Now().UTC(),
			}); err != nil {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event model.EventType, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
