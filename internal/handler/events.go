package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chatrooms/internal/middleware"
	"github.com/capitalize-ai/chatrooms/internal/model"
	"github.com/capitalize-ai/chatrooms/pkg/logger"
)

// EventReader reads a room's event journal.
type EventReader interface {
	ReadEvents(ctx context.Context, roomID string, afterSequence uint64, limit int) ([]model.RoomEvent, error)
}

// EventHandler serves the room event journal.
type EventHandler struct {
	reader EventReader
	logger *logger.Logger
}

// NewEventHandler creates an event handler. A nil reader means the journal
// is disabled.
func NewEventHandler(reader EventReader, log *logger.Logger) *EventHandler {
	return &EventHandler{reader: reader, logger: log}
}

// List handles GET /api/v1/rooms/{id}/events
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		writeError(w, http.StatusNotFound, "events_disabled", "event journal is disabled")
		return
	}

	roomID := chi.URLParam(r, "id")
	if err := middleware.ValidateRoomID(roomID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_room_id", err.Error())
		return
	}

	afterSequence := uint64(0)
	limit := 50
	if seq := r.URL.Query().Get("after_sequence"); seq != "" {
		if parsed, err := strconv.ParseUint(seq, 10, 64); err == nil {
			afterSequence = parsed
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	events, err := h.reader.ReadEvents(r.Context(), roomID, afterSequence, limit)
	if err != nil {
		h.logger.WithRoom(roomID).Error("failed to read events", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "events_unavailable", "failed to read events")
		return
	}

	resp := &model.ListEventsResponse{RoomID: roomID, Events: events, LastSequence: afterSequence}
	if n := len(events); n > 0 {
		resp.LastSequence = events[n-1].Sequence
	}
	writeJSON(w, http.StatusOK, resp)
}
