// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/chatrooms/internal/middleware"
	"github.com/capitalize-ai/chatrooms/internal/model"
	"github.com/capitalize-ai/chatrooms/pkg/logger"
)

// ChatService is the service surface used by the handlers.
type ChatService interface {
	Chat(ctx context.Context, roomID, prompt string) (*model.ChatResult, error)
	GetChatRooms(ctx context.Context) ([]model.RoomSummary, error)
	CreateRoom(ctx context.Context, req *model.CreateRoomRequest) (*model.Room, error)
	GetMessages(ctx context.Context, roomID string) (*model.ListMessagesResponse, error)
}

// RoomHandler handles room and chat endpoints.
type RoomHandler struct {
	service ChatService
	logger  *logger.Logger
}

// NewRoomHandler creates a new room handler.
func NewRoomHandler(svc ChatService, log *logger.Logger) *RoomHandler {
	return &RoomHandler{
		service: svc,
		logger:  log,
	}
}

// List handles GET /api/v1/rooms
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.service.GetChatRooms(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, &model.ListRoomsResponse{
		Rooms: rooms,
		Total: len(rooms),
	})
}

// Create handles POST /api/v1/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.RoomID != "" {
		if err := middleware.ValidateRoomID(req.RoomID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_room_id", err.Error())
			return
		}
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	room, err := h.service.CreateRoom(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, room)
}

// Messages handles GET /api/v1/rooms/{id}/messages
func (h *RoomHandler) Messages(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetMessages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Chat handles POST /api/v1/rooms/{id}/chat
func (h *RoomHandler) Chat(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	if err := middleware.ValidateRoomID(roomID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_room_id", err.Error())
		return
	}

	var req model.ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := middleware.ValidatePrompt(req.Prompt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.service.Chat(r.Context(), roomID, req.Prompt)
	if err != nil {
		writeServiceError(w, h.logger.WithRoom(roomID), err)
		return
	}

	writeJSON(w, http.StatusOK, &model.ChatResponse{
		RoomID:          res.RoomID,
		Reply:           res.Reply,
		PromptTruncated: res.PromptTruncated,
		Sequence:        res.AssistantMessage.Sequence,
		RoomCreated:     res.RoomCreated,
	})
}
